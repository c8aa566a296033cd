// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs in window math.
//  2. Load a .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigErrorType classifies configuration loading failures.
type ConfigErrorType string

const (
	ConfigErrorProcess  ConfigErrorType = "process"
	ConfigErrorValidate ConfigErrorType = "validate"
)

// ConfigError is a diagnostic error type returned by Load to aid debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load loads and validates the dispatcher configuration from the
// environment (and a local .env file, if present).
func Load() (*Config, error) {
	// Window math and watermark comparisons assume UTC everywhere.
	time.Local = time.UTC

	// godotenv does NOT override variables that are already set.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ConfigErrorProcess,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs struct validation over a populated Config.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return &ConfigError{
			Type:    ConfigErrorValidate,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	// The role bitmaps are free-form strings; check their alphabet here so
	// misconfiguration fails at startup rather than mid-cycle.
	if _, err := RoleBitmap(cfg.Reminders.CourseRoles); err != nil {
		return &ConfigError{Type: ConfigErrorValidate, Message: "REMINDERS_COURSE_ROLES", Err: err}
	}
	if _, err := RoleBitmap(cfg.Reminders.ActivityRoles); err != nil {
		return &ConfigError{Type: ConfigErrorValidate, Message: "REMINDERS_ACTIVITY_ROLES", Err: err}
	}

	return nil
}
