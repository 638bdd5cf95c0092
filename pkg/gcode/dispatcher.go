// Package gcode parses G-code lines and routes them to registered handlers.
package gcode

import (
	"bufio"
	"sort"
	"strings"
	"sync"
	"time"

	"mixing-extruder/pkg/errors"
	"mixing-extruder/pkg/log"
)

// Handler executes one parsed command. The command and its parameter map
// are only valid for the duration of the call.
type Handler func(cmd *Command, r Responder) error

// Observer is told about every dispatched command.
type Observer func(name string, elapsed time.Duration, err error)

type entry struct {
	help    string
	handler Handler
}

// Dispatcher maps command words to handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]entry
	observer Observer
	logger   *log.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]entry),
		logger:   log.GetLogger("gcode"),
	}
}

// Register binds a command word to a handler, replacing any earlier binding.
func (d *Dispatcher) Register(name, help string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[strings.ToUpper(name)] = entry{help: help, handler: h}
}

// SetObserver installs a hook called after every command.
func (d *Dispatcher) SetObserver(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observer = o
}

// Commands returns registered command words with their help text.
func (d *Dispatcher) Commands() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.handlers))
	for name, e := range d.handlers {
		out[name] = e.help
	}
	return out
}

// CommandNames returns registered command words in sorted order.
func (d *Dispatcher) CommandNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run parses and executes a single line.
func (d *Dispatcher) Run(line string, r Responder) error {
	cmd, err := ParseLine(line)
	if err != nil {
		return err
	}
	if cmd == nil {
		return nil
	}
	defer cmd.Release()

	d.mu.RLock()
	e, ok := d.handlers[cmd.Name]
	observer := d.observer
	d.mu.RUnlock()

	if !ok {
		err := errors.GCodeUnknownCommandError(cmd.Name)
		if observer != nil {
			observer(cmd.Name, 0, err)
		}
		return err
	}

	start := time.Now()
	err = e.handler(cmd, r)
	if observer != nil {
		observer(cmd.Name, time.Since(start), err)
	}
	if err != nil {
		d.logger.WithField("cmd", cmd.Name).WithError(err).Debug("command failed")
	}
	return err
}

// RunScript executes a multi-line script, stopping at the first error.
func (d *Dispatcher) RunScript(script string, r Responder) error {
	sc := bufio.NewScanner(strings.NewReader(script))
	for sc.Scan() {
		if err := d.Run(sc.Text(), r); err != nil {
			return err
		}
	}
	return sc.Err()
}
