package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	EngineHTTP = "http"
	EngineCLI  = "cli"
)

const DefaultModel = "tts_models/multilingual/multi-dataset/xtts_v2"

type Config struct {
	Engine    string        `yaml:"engine" env:"ENGINE"`
	Model     string        `yaml:"model" env:"MODEL"`
	URL       string        `yaml:"url" env:"URL"`
	HealthURL string        `yaml:"health_url" env:"HEALTH_URL"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	CLIBin    string        `yaml:"cli_bin" env:"CLI_BIN"`
}

func (c *Config) Defaults() {
	if c.Engine == "" {
		c.Engine = EngineHTTP
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.URL == "" {
		c.URL = "http://127.0.0.1:5002/synthesize"
	}
	if c.CLIBin == "" {
		c.CLIBin = "tts"
	}
}

func (c *Config) Validate() error {
	switch c.Engine {
	case EngineHTTP:
		if strings.TrimSpace(c.URL) == "" {
			return errors.New("tts url must be set for the http engine")
		}
	case EngineCLI:
	default:
		return fmt.Errorf("unknown tts engine %q", c.Engine)
	}

	return nil
}

// SynthesisRequest is everything the model needs for one utterance.
// SpeakerWavPath must point to a readable file for the whole call.
type SynthesisRequest struct {
	Text           string
	Language       string
	SpeakerWavPath string
}

// Synthesizer turns text plus a reference voice into a waveform file on disk.
// On success a playable wav exists at outputPath; on error it does not.
type Synthesizer interface {
	SynthesizeToFile(ctx context.Context, req *SynthesisRequest, outputPath string) error
	Model() string
}

// New builds the engine selected in cfg. Device is fixed for the process
// lifetime and only matters for engines that load the model themselves.
func New(cfg *Config, httpClient HTTPClient, device string) (Synthesizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Engine {
	case EngineCLI:
		return NewCoquiCLI(cfg, device), nil
	default:
		return NewXTTSClient(httpClient, cfg), nil
	}
}

func validateRequest(req *SynthesisRequest, outputPath string) error {
	if req == nil {
		return fmt.Errorf("nil request provided")
	}

	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("text must not be empty")
	}

	if strings.TrimSpace(req.SpeakerWavPath) == "" {
		return fmt.Errorf("speaker wav path must not be empty")
	}

	if outputPath == "" {
		return fmt.Errorf("output path must not be empty")
	}

	return nil
}
