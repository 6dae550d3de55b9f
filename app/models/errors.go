package models

import "errors"

var (
	// ErrInvalidSlug is returned when a tenant slug fails the allow-list
	// pattern used for database identifier derivation.
	ErrInvalidSlug = errors.New("tenant slug must be lowercase alphanumeric with hyphens, 2-49 characters")
)
