package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Validate performs schema-level checks on the ambient sections, accumulating
// every failure rather than stopping at the first. Strategy itself is
// validated separately by StrategyConfig.ToBacktestInput, since that requires
// converting into the engine's native types first.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateApp()...)
	errs = append(errs, c.validateData()...)
	errs = append(errs, c.validateMetrics()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errs ValidationErrors

	if c.App.Name == "" {
		errs = append(errs, ValidationError{Field: "app.name", Message: "required"})
	}

	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		errs = append(errs, ValidationError{
			Field:   "app.environment",
			Message: fmt.Sprintf("invalid environment %q, must be development, staging, or production", c.App.Environment),
		})
	}

	if c.App.LogLevel == "" {
		errs = append(errs, ValidationError{Field: "app.log_level", Message: "required (debug, info, warn, error)"})
	}

	if c.App.LogFormat != "json" && c.App.LogFormat != "console" {
		errs = append(errs, ValidationError{
			Field:   "app.log_format",
			Message: fmt.Sprintf("invalid log format %q, must be json or console", c.App.LogFormat),
		})
	}

	return errs
}

func (c *Config) validateData() ValidationErrors {
	var errs ValidationErrors

	if c.Data.CandlesPath == "" {
		errs = append(errs, ValidationError{Field: "data.candles_path", Message: "required"})
	}
	if c.Data.ResolutionSeconds <= 0 {
		errs = append(errs, ValidationError{Field: "data.resolution_seconds", Message: "must be positive"})
	}

	return errs
}

func (c *Config) validateMetrics() ValidationErrors {
	var errs ValidationErrors

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		errs = append(errs, ValidationError{
			Field:   "metrics.port",
			Message: fmt.Sprintf("invalid port %d, must be between 1-65535", c.Metrics.Port),
		})
	}

	return errs
}
