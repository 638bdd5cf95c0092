// Error categories for the mixing extruder host
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode groups failures by the layer that raised them.
type ErrorCode string

const (
	// printer.cfg problems
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// G-code lines that could not be run
	ErrGCodeParse        ErrorCode = "GCODE_PARSE"
	ErrGCodeUnknownCmd   ErrorCode = "GCODE_UNKNOWN_CMD"
	ErrGCodeInvalidParam ErrorCode = "GCODE_INVALID_PARAM"

	// Engine construction and preset files
	ErrModuleMixing ErrorCode = "MODULE_MIXING"
	ErrPresetIO     ErrorCode = "PRESET_IO"
)

// HostError is a categorized failure. Section and Option locate config
// problems; Context carries whatever else helps when the error is logged.
type HostError struct {
	Code    ErrorCode
	Message string
	Section string
	Option  string
	Err     error
	Context map[string]interface{}
}

func (e *HostError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Section != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Section, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *HostError) Unwrap() error {
	return e.Err
}

// SetSection records the printer.cfg section involved.
func (e *HostError) SetSection(section string) *HostError {
	e.Section = section
	return e
}

// SetOption records the option within the section.
func (e *HostError) SetOption(option string) *HostError {
	e.Option = option
	return e
}

// SetContext attaches a key/value pair for logging.
func (e *HostError) SetContext(key string, value interface{}) *HostError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Wrap categorizes err under code.
func Wrap(err error, code ErrorCode, message string) *HostError {
	return &HostError{Code: code, Message: message, Err: err}
}

// New returns a HostError without an underlying cause.
func New(code ErrorCode, message string) *HostError {
	return &HostError{Code: code, Message: message}
}

// ConfigSectionError reports a printer.cfg section that is missing or unusable.
func ConfigSectionError(section, reason string) *HostError {
	return New(ErrConfigSection, reason).SetSection(section)
}

// ConfigOptionError reports an option that is missing, unread or unparsable.
func ConfigOptionError(section, option, reason string) *HostError {
	return New(ErrConfigOption, reason).SetSection(section).SetOption(option)
}

// ConfigValidationError reports an option whose value parsed but is not allowed.
func ConfigValidationError(section, option, reason string) *HostError {
	return New(ErrConfigValidation, reason).SetSection(section).SetOption(option)
}

// GCodeParseError reports a line that is not G-code at all.
func GCodeParseError(line string, reason string) *HostError {
	return New(ErrGCodeParse, fmt.Sprintf("cannot parse %q: %s", line, reason))
}

// GCodeUnknownCommandError reports a command word nothing is registered for.
func GCodeUnknownCommandError(command string) *HostError {
	return New(ErrGCodeUnknownCmd, fmt.Sprintf("unknown command %s", command))
}

// GCodeInvalidParameterError reports a parameter whose value cannot be used.
func GCodeInvalidParameterError(command, param, value string, reason string) *HostError {
	return New(ErrGCodeInvalidParam, fmt.Sprintf("%s: bad %s=%q (%s)", command, param, value, reason))
}

// MixingConfigError reports a stepper or tool count the engine cannot be built with.
func MixingConfigError(option string, value int, reason string) *HostError {
	return New(ErrModuleMixing, fmt.Sprintf("%s=%d: %s", option, value, reason)).
		SetSection("mixing_extruder").
		SetOption(option).
		SetContext("value", value)
}

// PresetError wraps a failure reading, writing or applying a preset file.
func PresetError(path string, err error) *HostError {
	return Wrap(err, ErrPresetIO, fmt.Sprintf("preset file %s", path)).
		SetContext("path", path)
}

// Is reports whether any HostError in err's chain has the given code.
func Is(err error, code ErrorCode) bool {
	var hostErr *HostError
	if stderrors.As(err, &hostErr) {
		return hostErr.Code == code
	}
	return false
}

// IsConfig reports whether err came from reading printer.cfg.
func IsConfig(err error) bool {
	return Is(err, ErrConfigSection) ||
		Is(err, ErrConfigOption) ||
		Is(err, ErrConfigValidation)
}

// IsGCode reports whether err came from parsing or dispatching G-code.
func IsGCode(err error) bool {
	return Is(err, ErrGCodeParse) ||
		Is(err, ErrGCodeUnknownCmd) ||
		Is(err, ErrGCodeInvalidParam)
}
