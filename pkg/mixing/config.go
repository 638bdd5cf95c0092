package mixing

import (
	"strconv"
	"strings"

	"mixing-extruder/pkg/config"
)

// SectionName is the printer.cfg section describing the mixing extruder.
const SectionName = "mixing_extruder"

// ConfigFromSection reads a [mixing_extruder] section:
//
//	[mixing_extruder]
//	steppers: 4
//	virtual_tools: 2
//	reset_on_tool_change: false
//	tool1_weights: 1, 1, 0, 0
func ConfigFromSection(sec *config.Section) (Config, error) {
	cfg := DefaultConfig()
	minSteppers, maxSteppers := MinSteppers, MaxSteppers
	minTools := 1

	var err error
	if cfg.Steppers, err = sec.GetIntWithBounds("steppers", &minSteppers, &maxSteppers, cfg.Steppers); err != nil {
		return Config{}, err
	}
	if cfg.Tools, err = sec.GetIntWithBounds("virtual_tools", &minTools, nil, cfg.Tools); err != nil {
		return Config{}, err
	}
	if cfg.ResetOnToolChange, err = sec.GetBool("reset_on_tool_change", false); err != nil {
		return Config{}, err
	}

	for _, opt := range sec.GetPrefixOptions("tool") {
		num, ok := strings.CutSuffix(strings.TrimPrefix(opt, "tool"), "_weights")
		if !ok {
			continue
		}
		tool, convErr := strconv.Atoi(num)
		if convErr != nil || tool < 0 || tool >= cfg.Tools {
			return Config{}, config.ErrInvalidValue(sec.GetName(), opt, num, "tool index below virtual_tools")
		}
		weights, err := sec.GetFloatList(opt, ",")
		if err != nil {
			return Config{}, err
		}
		if len(weights) != cfg.Steppers {
			return Config{}, config.NewConfigError(sec.GetName(), opt,
				"expected "+strconv.Itoa(cfg.Steppers)+" weights, got "+strconv.Itoa(len(weights)))
		}
		if cfg.Mixes == nil {
			cfg.Mixes = make(map[int][]float64)
		}
		cfg.Mixes[tool] = weights
	}
	return cfg, nil
}

// LoadConfig reads the mixing section from a printer config. A missing
// section yields DefaultConfig.
func LoadConfig(c *config.Config) (Config, error) {
	sec := c.GetSectionOptional(SectionName)
	if sec == nil {
		return DefaultConfig(), nil
	}
	return ConfigFromSection(sec)
}
