package cfg

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"speechgen/internal/app/api"
	"speechgen/internal/app/nvidia"
	"speechgen/internal/app/speech"
	"speechgen/pkg/ai"
	"speechgen/pkg/ffmpeg"
	"speechgen/pkg/spectrogram"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override, e.g. SPEECHGEN_API_PORT.
const EnvPrefix = "SPEECHGEN_"

type Config struct {
	Api api.Config `yaml:"api" envPrefix:"API_"`
	Log LogConfig  `yaml:"log" envPrefix:"LOG_"`

	Speech      speech.Config      `yaml:"speech" envPrefix:"SPEECH_"`
	TTS         ai.Config          `yaml:"tts" envPrefix:"TTS_"`
	Spectrogram spectrogram.Config `yaml:"spectrogram" envPrefix:"SPECTROGRAM_"`
	Ffmpeg      ffmpeg.Config      `yaml:"ffmpeg" envPrefix:"FFMPEG_"`
	Nvidia      nvidia.Config      `yaml:"nvidia" envPrefix:"NVIDIA_"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

func (c *LogConfig) Defaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

func (c *LogConfig) Validate() error {
	if _, err := c.level(); err != nil {
		return err
	}

	switch c.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
}

func (c *LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.Level))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", c.Level)
	}

	return lvl, nil
}

// NewLogger builds the process logger. Level and format are validated by Load.
func (c *LogConfig) NewLogger() *slog.Logger {
	lvl, _ := c.level()

	opts := &slog.HandlerOptions{Level: lvl}

	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func (c *Config) Defaults() {
	c.Api.Defaults()
	c.Log.Defaults()
	c.Speech.Defaults()
	c.TTS.Defaults()
	c.Spectrogram.Defaults()
	c.Nvidia.Defaults()
}

func (c *Config) Validate() error {
	return errors.Join(
		c.Api.Validate(),
		c.Log.Validate(),
		c.Speech.Validate(),
		c.TTS.Validate(),
		c.Nvidia.Validate(),
	)
}

// Load reads the yaml file at path, applies a .env file when one is present and
// then SPEECHGEN_* environment overrides. A missing yaml file is fine, every
// field has a default.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("can't open %s file: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("can't unmarshal %s file: %w", path, err)
			}
		}
	}

	_ = godotenv.Load()

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}

	cfg.Defaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
