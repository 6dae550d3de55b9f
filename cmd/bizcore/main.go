package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/BizCoreHQ/bizcore/app/controllers"
	"github.com/BizCoreHQ/bizcore/app/repository"
	"github.com/BizCoreHQ/bizcore/internal/pkg/billing"
	"github.com/BizCoreHQ/bizcore/internal/pkg/cache"
	"github.com/BizCoreHQ/bizcore/internal/pkg/constants"
	"github.com/BizCoreHQ/bizcore/internal/pkg/database"
	"github.com/BizCoreHQ/bizcore/internal/pkg/env"
	"github.com/BizCoreHQ/bizcore/internal/pkg/metrics/counter"
	"github.com/BizCoreHQ/bizcore/internal/pkg/middleware"
	"github.com/BizCoreHQ/bizcore/internal/pkg/provisioner"
	"github.com/BizCoreHQ/bizcore/internal/pkg/router"
	"github.com/BizCoreHQ/bizcore/internal/pkg/scheduler"
	"github.com/BizCoreHQ/bizcore/internal/pkg/tenantdb"
	"github.com/BizCoreHQ/bizcore/internal/pkg/token"
)

func main() {
	app, lifecycle, pools := NewApplication()

	// Graceful shutdown: stop the scheduler and drain every tenant pool.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		lifecycle.Stop()
		pools.CloseAll()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

// NewApplication is the composition root: every shared component is built
// here and handed down, the pool router included.
func NewApplication() (*fiber.App, *scheduler.Manager, *tenantdb.Router) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	pools := tenantdb.NewRouter(tenantdb.Config{
		Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
		Port:     env.GetEnv("DB_PORT", "3306"),
		User:     env.GetEnv("DB_USER", ""),
		Password: env.GetEnv("DB_PASSWORD", ""),
		MaxConns: envInt("TENANT_POOL_MAX_CONNS", 10),
	})

	prov := provisioner.New(provisioner.Config{
		Host:          env.GetEnv("DB_HOST", "127.0.0.1"),
		Port:          env.GetEnv("DB_PORT", "3306"),
		AdminUser:     env.GetEnv("DB_ADMIN_USER", "root"),
		AdminPassword: env.GetEnv("DB_ADMIN_PASSWORD", ""),
		AppUser:       env.GetEnv("DB_USER", ""),
	})
	runner := provisioner.NewRunner(prov, repos.Tenant)

	signer := token.NewSigner([]byte(env.GetEnv("JWT_SECRET", "")), token.DefaultValidity)
	billingSvc := billing.NewService(repos)
	tenantCache := middleware.NewRedisTenantCache()

	trialDays := envInt("TRIAL_DAYS", 7)
	graceDays := envInt("GRACE_PERIOD_DAYS", scheduler.DefaultGraceDays)
	interval := time.Duration(envInt("SCHEDULER_INTERVAL_HOURS", 24)) * time.Hour

	lifecycle := scheduler.NewManager(repos, interval, graceDays)
	lifecycle.SetNotifier(scheduler.NewMailNotifier())
	lifecycle.Start()

	app := fiber.New(fiber.Config{
		AppName: "BizCore",
	})
	app.Use(recover.New(), logger.New())
	app.Get(constants.MetricsRoute, monitor.New())

	router.InstallRouter(app, router.Deps{
		Repos:   repos,
		Tenants: controllers.NewTenantController(repos, billingSvc, runner, signer, trialDays),
		Admin:   controllers.NewAdminController(repos, billingSvc, prov, runner, pools, tenantCache, trialDays),
		Auth: middleware.AuthDeps{
			Tokens:  signer,
			Users:   repos.TenantUser,
			Tenants: repos.Tenant,
			Pools:   pools,
			Cache:   tenantCache,
			Usage: func(tenantID uint) {
				if err := counter.AddTenantRequest(tenantID); err != nil {
					log.Printf("usage counter failed for tenant %d: %v", tenantID, err)
				}
			},
		},
	})

	return app, lifecycle, pools
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(env.GetEnv(key, "")); err == nil {
		return v
	}
	return def
}
