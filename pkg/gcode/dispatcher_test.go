package gcode

import (
	"bytes"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixing-extruder/pkg/errors"
)

func TestDispatcherRun(t *testing.T) {
	d := NewDispatcher()
	var got float64
	d.Register("m163", "Set a weight", func(cmd *Command, r Responder) error {
		p, err := cmd.Float("P", 0)
		got = p
		r.Respond("ok")
		return err
	})

	var buf BufferResponder
	require.NoError(t, d.Run("M163 S0 P2.5", &buf))
	assert.Equal(t, 2.5, got)
	assert.Equal(t, []string{"ok"}, buf.Lines())

	// Blank lines are not dispatched.
	require.NoError(t, d.Run("  ; nothing", &buf))
	assert.Len(t, buf.Lines(), 1)
}

func TestDispatcherUnknownCommand(t *testing.T) {
	d := NewDispatcher()
	err := d.Run("G28", Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrGCodeUnknownCmd))
}

func TestDispatcherParseError(t *testing.T) {
	d := NewDispatcher()
	err := d.Run("42", Discard)
	assert.True(t, errors.Is(err, errors.ErrGCodeParse))
}

func TestDispatcherCommands(t *testing.T) {
	d := NewDispatcher()
	noop := func(*Command, Responder) error { return nil }
	d.Register("M165", "Mix and commit", noop)
	d.Register("M163", "Set a weight", noop)

	assert.Equal(t, []string{"M163", "M165"}, d.CommandNames())
	assert.Equal(t, map[string]string{"M163": "Set a weight", "M165": "Mix and commit"}, d.Commands())

	// Registering again replaces the handler.
	d.Register("m163", "Replaced", noop)
	assert.Equal(t, "Replaced", d.Commands()["M163"])
}

func TestDispatcherRunScript(t *testing.T) {
	d := NewDispatcher()
	var seen []string
	d.Register("A1", "", func(cmd *Command, _ Responder) error {
		seen = append(seen, cmd.Name)
		return nil
	})
	failure := stderrors.New("boom")
	d.Register("FAIL", "", func(*Command, Responder) error { return failure })

	require.NoError(t, d.RunScript("A1\n\nA1 ; again\n", Discard))
	assert.Equal(t, []string{"A1", "A1"}, seen)

	seen = nil
	err := d.RunScript("A1\nFAIL\nA1\n", Discard)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, []string{"A1"}, seen)
}

func TestDispatcherObserver(t *testing.T) {
	type call struct {
		name string
		err  error
	}
	var calls []call
	d := NewDispatcher()
	d.SetObserver(func(name string, elapsed time.Duration, err error) {
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
		calls = append(calls, call{name, err})
	})
	d.Register("M164", "", func(*Command, Responder) error { return nil })

	require.NoError(t, d.Run("M164", Discard))
	require.Error(t, d.Run("M999", Discard))

	require.Len(t, calls, 2)
	assert.Equal(t, "M164", calls[0].name)
	assert.NoError(t, calls[0].err)
	assert.Equal(t, "M999", calls[1].name)
	assert.Error(t, calls[1].err)
}

func TestResponders(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterResponder(&buf)
	w.Respond("V0:  A50.0  B50.0")
	RespondError(w, stderrors.New("bad"))
	assert.Equal(t, "V0:  A50.0  B50.0\n!! bad\n", buf.String())

	var got []string
	f := ResponderFunc(func(msg string) { got = append(got, msg) })
	f.Respond("x")
	assert.Equal(t, []string{"x"}, got)

	var br BufferResponder
	br.Respond("a")
	lines := br.Lines()
	lines[0] = "changed"
	assert.Equal(t, []string{"a"}, br.Lines())
}
