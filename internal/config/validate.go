package config

import (
	"fmt"
	"strings"

	"github.com/mmr-tortoise/traffic-board/internal/encode"
	"github.com/mmr-tortoise/traffic-board/internal/model"
)

// ValidationError is one problem found in a configuration.
type ValidationError struct {
	// Field is the dotted path of the offending field (e.g. "north.current.artifacts[1].format").
	Field string

	// Message describes what is wrong with the value.
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration and returns every problem found
// (empty list = valid configuration). The API key is not checked here; see
// RequireAPIKey.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Input == "" {
		add("input", "LED location table path is required")
	}
	if c.OutputDir == "" {
		add("output_dir", "output directory is required")
	}
	if c.Workers < 1 {
		add("workers", "must be at least 1, got %d", c.Workers)
	}
	if c.RequestsPerSecond < 0 {
		add("requests_per_second", "must not be negative, got %v", c.RequestsPerSecond)
	}
	if c.Timeout.Duration <= 0 {
		add("timeout", "must be positive, got %s", c.Timeout.Duration)
	}

	for _, dir := range []model.Direction{model.DirectionNorth, model.DirectionSouth} {
		for _, kind := range []model.MetricKind{model.MetricCurrent, model.MetricTypical} {
			prefix := strings.ToLower(dir.String()) + "." + kind.String()
			run := c.Run(dir, kind)

			for i, a := range run.Artifacts {
				field := fmt.Sprintf("%s.artifacts[%d]", prefix, i)
				if a.Path == "" {
					add(field+".path", "artifact path is required")
				}
				if _, err := encode.ForFormat(a.Format); err != nil {
					add(field+".format", "%v", err)
				}
			}

			for i, a := range run.Addenda {
				errs = append(errs, c.ValidateAddendum(fmt.Sprintf("%s.addenda[%d]", prefix, i), a)...)
			}
		}
	}

	return errs
}

// ValidateAddendum checks one addendum definition. field prefixes the
// Field of every returned problem.
func (c *Config) ValidateAddendum(field string, a Addendum) []ValidationError {
	var errs []ValidationError
	add := func(name, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field + "." + name, Message: fmt.Sprintf(format, args...)})
	}

	if a.Version == "" {
		add("version", "version is required")
	} else if strings.ContainsAny(a.Version, `/\`) {
		add("version", "must not contain path separators, got %q", a.Version)
	}
	if a.Input == "" {
		add("input", "supplementary table path is required")
	}
	if a.Patches == "" {
		add("patches", "path of the patched artifact is required")
	}
	if strings.ContainsAny(c.SupersedesRef(a), "{}\r\n") {
		add("supersedes", "must not contain braces or line breaks")
	}
	return errs
}

// Err runs Validate and folds the problems into one CLIError with
// ExitConfigError, or returns nil.
func (c *Config) Err() error {
	errs := c.Validate()
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, len(errs))
	for i := range errs {
		lines[i] = "  - " + errs[i].Error()
	}
	return model.NewCLIError(
		model.ExitConfigError,
		fmt.Sprintf("invalid configuration:\n%s", strings.Join(lines, "\n")),
	)
}
