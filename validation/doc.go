// Package validation provides input validation utilities for pipekit
// configuration and user-supplied settings.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection. Struct tag validation is
// recommended for configuration sections.
//
// # Struct Tag Validation
//
//	type PutSettings struct {
//	    MaxAttempts int    `validate:"required,min=1"`
//	    Timeout     string `validate:"required"`
//	}
//	err := validation.Validate(settings)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("name", name).Min("capacity", capacity, 1)
//	err := v.Validate()
package validation
