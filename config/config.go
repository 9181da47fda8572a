// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/language"
	"github.com/sakura/springbreak/motion"
	"github.com/sosodev/duration"
	"gopkg.in/yaml.v3"
)

type (
	// Config is the service configuration.
	Config struct {
		LogLevel string `yaml:"log_level"`

		Motion struct {
			MinSampleInterval Duration `yaml:"min_sample_interval"`
			ShakeThreshold    float64  `yaml:"shake_threshold"`

			// DeviceIdleTimeout drops the filter state of MQTT devices that
			// sent nothing for this long; zero keeps them forever.
			DeviceIdleTimeout Duration `yaml:"device_idle_timeout"`
		} `yaml:"motion"`

		Languages language.Table `yaml:"languages"`

		Translate struct {
			APIKey       string   `yaml:"api_key"`
			Endpoint     string   `yaml:"endpoint"`
			ReadyTimeout Duration `yaml:"ready_timeout"`
		} `yaml:"translate"`

		Places struct {
			APIKey        string   `yaml:"api_key"`
			Endpoint      string   `yaml:"endpoint"`
			SearchTimeout Duration `yaml:"search_timeout"`
		} `yaml:"places"`

		Speech struct {
			APIKey          string `yaml:"api_key"`
			Endpoint        string `yaml:"endpoint"`
			MaxAlternatives int32  `yaml:"max_alternatives"`
			Synthesizer     string `yaml:"synthesizer"`
		} `yaml:"speech"`

		// MQTT connection settings come from the AIO_* environment.
		MQTT struct {
			Enabled     bool `yaml:"enabled"`
			StateStore  bool `yaml:"state_store"`
			Concurrency uint `yaml:"concurrency"`
		} `yaml:"mqtt"`

		HTTP struct {
			// Listen is the WebSocket listener address; empty disables it.
			Listen string `yaml:"listen"`
		} `yaml:"http"`
	}

	// Duration is a time.Duration written as an ISO 8601 duration ("PT30S").
	Duration time.Duration

	// Loader locates and loads the configuration.
	Loader struct {
		// Lookup reads environment overrides. Defaults to os.LookupEnv.
		Lookup func(string) (string, bool)

		// Paths are tried in order when no explicit path is given.
		Paths []string

		Logger *slog.Logger
	}
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SPRINGBREAK_"

// DefaultPaths are searched when no explicit path is given.
var DefaultPaths = []string{
	"springbreak.yaml",
	"/etc/springbreak/config.yaml",
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.LogLevel = "info"

	cfg.Motion.MinSampleInterval = Duration(motion.DefaultMinSampleInterval)
	cfg.Motion.ShakeThreshold = motion.DefaultShakeThreshold
	cfg.Motion.DeviceIdleTimeout = Duration(10 * time.Minute)

	cfg.Languages = language.Default()

	cfg.Translate.ReadyTimeout = Duration(30 * time.Second)
	cfg.Places.SearchTimeout = Duration(10 * time.Second)

	cfg.Speech.MaxAlternatives = 1
	cfg.Speech.Synthesizer = "espeak-ng"

	cfg.MQTT.Enabled = true
	cfg.MQTT.StateStore = true
	cfg.MQTT.Concurrency = 4

	return cfg
}

// Load reads the file over the defaults, applies environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	return Loader{}.Load(path)
}

// LoadWithFallback loads the explicit path if given, else the first of
// DefaultPaths that exists, else the defaults. It returns the path used.
func LoadWithFallback(explicitPath string) (*Config, string, error) {
	return Loader{}.LoadWithFallback(explicitPath)
}

// Load reads the file over the defaults, applies environment overrides, and
// validates the result.
func (l Loader) Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.Error{
			Message:       fmt.Sprintf("failed to read config file: %v", err),
			Kind:          errors.ConfigurationInvalid,
			NestedError:   err,
			PropertyName:  "path",
			PropertyValue: path,
		}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &errors.Error{
			Message:       fmt.Sprintf("failed to parse config file: %v", err),
			Kind:          errors.ConfigurationInvalid,
			NestedError:   err,
			PropertyName:  "path",
			PropertyValue: path,
		}
	}

	return cfg, l.finish(cfg)
}

// LoadWithFallback loads the explicit path if given, else the first of the
// loader's paths that exists, else the defaults. It returns the path used.
func (l Loader) LoadWithFallback(explicitPath string) (*Config, string, error) {
	if explicitPath != "" {
		cfg, err := l.Load(explicitPath)
		return cfg, explicitPath, err
	}

	paths := l.Paths
	if paths == nil {
		paths = DefaultPaths
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			cfg, err := l.Load(path)
			return cfg, path, err
		}
	}

	cfg := DefaultConfig()
	return cfg, "", l.finish(cfg)
}

func (l Loader) finish(cfg *Config) error {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return err
	}
	return cfg.Validate()
}

// Environment overrides; SPRINGBREAK_GOOGLE_API_KEY fills any key left unset.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LOG_LEVEL":          &c.LogLevel,
		"TRANSLATE_API_KEY":  &c.Translate.APIKey,
		"TRANSLATE_ENDPOINT": &c.Translate.Endpoint,
		"PLACES_API_KEY":     &c.Places.APIKey,
		"PLACES_ENDPOINT":    &c.Places.Endpoint,
		"SPEECH_API_KEY":     &c.Speech.APIKey,
		"SPEECH_ENDPOINT":    &c.Speech.Endpoint,
		"SPEECH_SYNTHESIZER": &c.Speech.Synthesizer,
		"HTTP_LISTEN":        &c.HTTP.Listen,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	if key, ok := lookup(EnvPrefix + "GOOGLE_API_KEY"); ok {
		for _, dst := range []*string{
			&c.Translate.APIKey,
			&c.Places.APIKey,
			&c.Speech.APIKey,
		} {
			if *dst == "" {
				*dst = key
			}
		}
	}

	if v, ok := lookup(EnvPrefix + "MOTION_SHAKE_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Config(EnvPrefix+"MOTION_SHAKE_THRESHOLD", v,
				"invalid shake threshold")
		}
		c.Motion.ShakeThreshold = f
	}
	if v, ok := lookup(EnvPrefix + "MOTION_MIN_SAMPLE_INTERVAL"); ok {
		if err := c.Motion.MinSampleInterval.parse(v); err != nil {
			return errors.Config(EnvPrefix+"MOTION_MIN_SAMPLE_INTERVAL", v,
				"invalid min sample interval")
		}
	}
	if v, ok := lookup(EnvPrefix + "MQTT_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Config(EnvPrefix+"MQTT_ENABLED", v, "invalid boolean")
		}
		c.MQTT.Enabled = b
	}
	return nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}

	interval := time.Duration(c.Motion.MinSampleInterval)
	if interval < time.Millisecond {
		return errors.Config("motion.min_sample_interval", interval.String(),
			"min sample interval must be at least 1ms")
	}
	if math.IsNaN(c.Motion.ShakeThreshold) || c.Motion.ShakeThreshold < 0 {
		return errors.Config("motion.shake_threshold", c.Motion.ShakeThreshold,
			"shake threshold must be a non-negative number")
	}

	if err := c.Languages.Validate(); err != nil {
		return err
	}

	for name, d := range map[string]Duration{
		"motion.device_idle_timeout": c.Motion.DeviceIdleTimeout,
		"translate.ready_timeout":     c.Translate.ReadyTimeout,
		"places.search_timeout":       c.Places.SearchTimeout,
	} {
		if d < 0 {
			return errors.Config(name, time.Duration(d).String(),
				"timeout must not be negative")
		}
	}
	if c.Speech.MaxAlternatives < 0 {
		return errors.Config("speech.max_alternatives", c.Speech.MaxAlternatives,
			"max alternatives must not be negative")
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, errors.Config("log_level", c.LogLevel, "invalid log level")
	}
	return level, nil
}

// MotionOptions returns the filter options for new device detectors.
func (c *Config) MotionOptions() *motion.FilterOptions {
	threshold := c.Motion.ShakeThreshold
	return &motion.FilterOptions{
		MinSampleInterval: time.Duration(c.Motion.MinSampleInterval),
		ShakeThreshold:    &threshold,
	}
}

// UnmarshalYAML parses an ISO 8601 duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if err := d.parse(s); err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, s)
	}
	return nil
}

// MarshalYAML formats the duration as ISO 8601.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d Duration) String() string {
	return duration.FromTimeDuration(time.Duration(d)).String()
}

func (d *Duration) parse(s string) error {
	parsed, err := duration.Parse(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*d = Duration(parsed.ToTimeDuration())
	return nil
}
