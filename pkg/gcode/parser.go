// G-code line parsing
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gcode

import (
	"regexp"
	"strconv"
	"strings"

	"mixing-extruder/pkg/errors"
	"mixing-extruder/pkg/pool"
)

// Command is one parsed G-code line.
type Command struct {
	Name   string
	Params map[string]string
	Raw    string
}

var (
	reParenComment = regexp.MustCompile(`\([^)]*\)`)

	// Firmware-style compact words: "M163S0P1" or "A1B1".
	reCompactCmd    = regexp.MustCompile(`^([A-Za-z][0-9]+(?:\.[0-9]+)?)([A-Za-z].*)$`)
	reCompactParams = regexp.MustCompile(`^(?:[A-Za-z][-+]?(?:[0-9]+\.?[0-9]*|\.[0-9]+))+$`)
	reCompactParam  = regexp.MustCompile(`[A-Za-z][-+]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)`)
)

// ParseLine parses a single G-code line. Blank and comment-only lines
// return a nil command and no error.
//
// Parameters may be written as a letter followed by its value (S0, P1.5),
// as KEY=VALUE, or as a bare letter flag (R). Keys are upper-cased.
// Numbered commands and numeric parameters may be run together without
// spaces, as in M163S0P1 or M165 A1B3.
func ParseLine(line string) (*Command, error) {
	ln := strings.TrimSpace(line)
	if idx := strings.IndexByte(ln, ';'); idx >= 0 {
		ln = strings.TrimSpace(ln[:idx])
	}
	if ln == "" {
		return nil, nil
	}
	if strings.IndexByte(ln, '(') >= 0 {
		ln = strings.TrimSpace(reParenComment.ReplaceAllString(ln, " "))
		if ln == "" {
			return nil, nil
		}
	}

	fields := strings.Fields(ln)
	if m := reCompactCmd.FindStringSubmatch(fields[0]); m != nil {
		fields = append([]string{m[1], m[2]}, fields[1:]...)
	}
	name := strings.ToUpper(fields[0])
	if !validName(name) {
		return nil, errors.GCodeParseError(line, "invalid command word")
	}

	params := pool.GetArgsMap()
	for _, f := range fields[1:] {
		if k, v, ok := strings.Cut(f, "="); ok {
			k = strings.ToUpper(strings.TrimSpace(k))
			if k == "" {
				pool.PutArgsMap(params)
				return nil, errors.GCodeParseError(line, "empty parameter name")
			}
			params[k] = strings.TrimSpace(v)
			continue
		}
		if reCompactParams.MatchString(f) {
			for _, p := range reCompactParam.FindAllString(f, -1) {
				params[strings.ToUpper(p[:1])] = p[1:]
			}
			continue
		}
		params[strings.ToUpper(f[:1])] = f[1:]
	}
	return &Command{Name: name, Params: params, Raw: line}, nil
}

func validName(name string) bool {
	c := name[0]
	return (c >= 'A' && c <= 'Z') || c == '_'
}

// Release hands the parameter map back to the pool. The command must not
// be used afterwards.
func (c *Command) Release() {
	if c == nil {
		return
	}
	pool.PutArgsMap(c.Params)
	c.Params = nil
}

// Has reports whether the parameter appeared on the line, with or without a value.
func (c *Command) Has(key string) bool {
	_, ok := c.Params[strings.ToUpper(key)]
	return ok
}

// HasValue reports whether the parameter appeared with a non-empty value.
func (c *Command) HasValue(key string) bool {
	v, ok := c.Params[strings.ToUpper(key)]
	return ok && v != ""
}

// Float returns the parameter as float64. A missing or valueless
// parameter yields def.
func (c *Command) Float(key string, def float64) (float64, error) {
	key = strings.ToUpper(key)
	raw, ok := c.Params[key]
	if !ok || raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.GCodeInvalidParameterError(c.Name, key, raw, "expected a number")
	}
	return f, nil
}

// Int returns the parameter as int. Fractional values are truncated toward
// zero the way firmware integer parameters are.
func (c *Command) Int(key string, def int) (int, error) {
	key = strings.ToUpper(key)
	raw, ok := c.Params[key]
	if !ok || raw == "" {
		return def, nil
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.GCodeInvalidParameterError(c.Name, key, raw, "expected an integer")
	}
	return int(f), nil
}
