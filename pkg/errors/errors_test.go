package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMixingConfigError(t *testing.T) {
	err := MixingConfigError("steppers", 9, "must be between 2 and 8")

	assert.Equal(t, ErrModuleMixing, err.Code)
	assert.Equal(t, "mixing_extruder", err.Section)
	assert.Equal(t, "steppers", err.Option)
	assert.Equal(t, 9, err.Context["value"])
	assert.Contains(t, err.Error(), "steppers=9")
}

func TestIsFollowsWrapping(t *testing.T) {
	inner := GCodeUnknownCommandError("G28")
	wrapped := fmt.Errorf("line 3: %w", inner)

	assert.True(t, Is(wrapped, ErrGCodeUnknownCmd))
	assert.True(t, IsGCode(wrapped))
	assert.False(t, IsConfig(wrapped))
	assert.False(t, Is(io.EOF, ErrGCodeUnknownCmd))
}

func TestPresetErrorUnwrap(t *testing.T) {
	err := PresetError("/tmp/mix.yaml", io.ErrUnexpectedEOF)

	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "/tmp/mix.yaml", err.Context["path"])
	assert.Contains(t, err.Error(), "PRESET_IO")
}

func TestConfigValidationError(t *testing.T) {
	err := ConfigValidationError("mixing_extruder", "virtual_tools", "must be at least 1")

	assert.True(t, IsConfig(err))
	assert.Equal(t, "virtual_tools", err.Option)
}

func TestConfigConstructors(t *testing.T) {
	section := ConfigSectionError("mixing_extruder", "section not found")
	option := ConfigOptionError("mixing_extruder", "steppers", "option not found")

	assert.Equal(t, ErrConfigSection, section.Code)
	assert.Empty(t, section.Option)
	assert.Equal(t, ErrConfigOption, option.Code)
	assert.Equal(t, "steppers", option.Option)
	assert.True(t, IsConfig(fmt.Errorf("load: %w", section)))
	assert.True(t, IsConfig(option))
	assert.False(t, IsGCode(option))
}
