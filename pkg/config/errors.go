// Package config parses printer.cfg style files: [section] headers,
// "key: value" options, '#' comments and [include glob] directives.
// Getters are typed, bounds checked and access tracked.
package config

import (
	"fmt"

	"mixing-extruder/pkg/errors"
)

// ConfigError locates a printer.cfg problem. It unwraps to an
// errors.HostError carrying Code, so errors.IsConfig matches it.
type ConfigError struct {
	Section string
	Option  string
	Message string
	Code    errors.ErrorCode
	Cause   error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Option != "":
		return fmt.Sprintf("[%s] %s: %s", e.Section, e.Option, e.Message)
	case e.Section != "":
		return fmt.Sprintf("[%s]: %s", e.Section, e.Message)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	var he *errors.HostError
	switch e.Code {
	case errors.ErrConfigSection:
		he = errors.ConfigSectionError(e.Section, e.Message)
	case errors.ErrConfigOption:
		he = errors.ConfigOptionError(e.Section, e.Option, e.Message)
	default:
		he = errors.ConfigValidationError(e.Section, e.Option, e.Message)
	}
	he.Err = e.Cause
	return he
}

// NewConfigError reports a value that parsed but is not acceptable.
func NewConfigError(section, option, message string) *ConfigError {
	return &ConfigError{
		Section: section,
		Option:  option,
		Message: message,
		Code:    errors.ErrConfigValidation,
	}
}

// ErrMissingOption reports a required option with no value and no default.
func ErrMissingOption(section, option string) *ConfigError {
	return &ConfigError{
		Section: section,
		Option:  option,
		Message: "must be specified",
		Code:    errors.ErrConfigOption,
	}
}

// ErrMissingSection reports a section GetSection could not find.
func ErrMissingSection(section string) *ConfigError {
	return &ConfigError{
		Section: section,
		Message: "section not found",
		Code:    errors.ErrConfigSection,
	}
}

// ErrInvalidValue reports an option that does not parse as the wanted type.
func ErrInvalidValue(section, option, value, expected string) *ConfigError {
	return &ConfigError{
		Section: section,
		Option:  option,
		Message: fmt.Sprintf("%q is not a valid %s", value, expected),
		Code:    errors.ErrConfigOption,
	}
}

// ErrOutOfRange reports a number outside its bounds.
func ErrOutOfRange(section, option string, value float64, constraint string) *ConfigError {
	return &ConfigError{
		Section: section,
		Option:  option,
		Message: fmt.Sprintf("%v %s", value, constraint),
		Code:    errors.ErrConfigValidation,
	}
}
