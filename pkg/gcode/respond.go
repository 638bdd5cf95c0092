package gcode

import (
	"fmt"
	"io"
	"sync"
)

// Responder receives the text a command sends back to its caller.
type Responder interface {
	Respond(msg string)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(msg string)

// Respond implements Responder.
func (f ResponderFunc) Respond(msg string) { f(msg) }

// WriterResponder writes every response as its own line.
type WriterResponder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterResponder creates a responder writing to w.
func NewWriterResponder(w io.Writer) *WriterResponder {
	return &WriterResponder{w: w}
}

// Respond implements Responder.
func (r *WriterResponder) Respond(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, msg)
}

// BufferResponder collects responses in memory.
type BufferResponder struct {
	mu    sync.Mutex
	lines []string
}

// Respond implements Responder.
func (r *BufferResponder) Respond(msg string) {
	r.mu.Lock()
	r.lines = append(r.lines, msg)
	r.mu.Unlock()
}

// Lines returns a copy of everything received so far.
func (r *BufferResponder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// RespondError sends err with the "!! " error prefix.
func RespondError(r Responder, err error) {
	r.Respond("!! " + err.Error())
}

// Discard drops all responses.
var Discard Responder = ResponderFunc(func(string) {})
