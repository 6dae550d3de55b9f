package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router installs one group of routes onto the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter wires all route groups. Deps is built once by the
// composition root; nothing here reaches for globals.
func InstallRouter(app *fiber.App, deps Deps) {
	setup(app, NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
