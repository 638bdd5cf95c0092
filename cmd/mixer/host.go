package main

import (
	stderrors "errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"mixing-extruder/pkg/config"
	"mixing-extruder/pkg/gcode"
	"mixing-extruder/pkg/log"
	"mixing-extruder/pkg/mixing"
	"mixing-extruder/pkg/motion"
	"mixing-extruder/pkg/presets"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath  string
	presetsPath string
	logLevel    string
	logFile     string
	envFile     string

	logWriter *log.RotatingFileWriter
}

// setup loads the env file and configures logging.
func (o *rootOptions) setup() error {
	if o.envFile != "" {
		// Variables already set in the environment win over the file.
		if err := godotenv.Load(o.envFile); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if o.configPath == "" {
		o.configPath = os.Getenv("MIXER_CONFIG")
	}
	if o.presetsPath == "" {
		o.presetsPath = os.Getenv("MIXER_PRESETS")
	}

	root := log.GetLogger("mixer")
	if o.logFile != "" {
		fileLogger, w, err := log.NewFileLogger("mixer", log.RotationConfig{Filename: o.logFile})
		if err != nil {
			return err
		}
		o.logWriter = w
		root = fileLogger
		log.SetDefaultLogger(root)
	}
	log.ConfigureFromEnv(root)
	if o.logLevel != "" {
		root.SetLevel(log.ParseLevel(o.logLevel))
	}
	return nil
}

func (o *rootOptions) teardown() error {
	if o.logWriter != nil {
		return o.logWriter.Close()
	}
	return nil
}

// host is everything a command needs: the mixer, its G-code surface and
// the settings read from printer.cfg.
type host struct {
	opts       *rootOptions
	mixer      *mixing.Mixer
	dispatcher *gcode.Dispatcher
	stepsPerMM float64
	logger     *log.Logger
}

// newHost builds the mixer from --config (defaults when unset) and loads
// the preset file when there is one.
func newHost(opts *rootOptions) (*host, error) {
	logger := log.GetLogger("host")

	cfg := mixing.DefaultConfig()
	stepsPerMM := motion.StepsPerMM(motion.DefaultRotationDistance, motion.DefaultFullSteps, motion.DefaultMicrosteps)
	if opts.configPath != "" {
		c, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		if cfg, err = mixing.LoadConfig(c); err != nil {
			return nil, err
		}
		if sec := c.GetSectionOptional(mixing.SectionName); sec != nil {
			if stepsPerMM, err = motion.StepsPerMMFromSection(sec); err != nil {
				return nil, err
			}
		}
		if err := c.CheckUnusedOptions(); err != nil {
			return nil, err
		}
		logger.WithField("path", opts.configPath).Debug("config loaded")
	}

	m, err := mixing.New(cfg)
	if err != nil {
		return nil, err
	}
	if opts.presetsPath != "" {
		if err := presets.LoadInto(opts.presetsPath, m); err != nil {
			return nil, err
		}
	}

	d := gcode.NewDispatcher()
	mixing.RegisterCommands(d, m)

	logger.WithFields(log.Fields{
		"steppers":      m.Steppers(),
		"virtual_tools": m.Tools(),
		"reset_on_tool": m.ResetOnToolChange(),
	}).Info("mixer ready")

	return &host{
		opts:       opts,
		mixer:      m,
		dispatcher: d,
		stepsPerMM: stepsPerMM,
		logger:     logger,
	}, nil
}

// savePresets writes the tool table back when --presets is set.
func (h *host) savePresets() error {
	if h.opts.presetsPath == "" {
		return nil
	}
	return presets.Save(h.opts.presetsPath, presets.Snapshot(h.mixer))
}
