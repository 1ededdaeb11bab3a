package speech

import (
	"errors"
	"time"
)

type Config struct {
	OutputDir         string `yaml:"output_dir" env:"OUTPUT_DIR"`
	DefaultSpeakerWav string `yaml:"default_speaker_wav" env:"DEFAULT_SPEAKER_WAV"`
	DefaultLanguage   string `yaml:"default_language" env:"DEFAULT_LANGUAGE"`
	TmpDir            string `yaml:"tmp_dir" env:"TMP_DIR"`

	MaxTextRunes   int   `yaml:"max_text_runes" env:"MAX_TEXT_RUNES"`
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`

	// MaxReferenceDuration trims uploaded clips with ffmpeg. Zero keeps them as is.
	MaxReferenceDuration time.Duration `yaml:"max_reference_duration" env:"MAX_REFERENCE_DURATION"`
	// SynthesisTimeout bounds a single engine call. Zero waits for the engine.
	SynthesisTimeout time.Duration `yaml:"synthesis_timeout" env:"SYNTHESIS_TIMEOUT"`
}

func (c *Config) Defaults() {
	if c.OutputDir == "" {
		c.OutputDir = "generated_audio"
	}
	if c.DefaultSpeakerWav == "" {
		c.DefaultSpeakerWav = "dataset/wavs/1.wav"
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "en"
	}
	if c.MaxTextRunes == 0 {
		c.MaxTextRunes = 5000
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = 20 << 20
	}
}

func (c *Config) Validate() error {
	if c.MaxTextRunes < 0 {
		return errors.New("max_text_runes must not be negative")
	}
	if c.MaxUploadBytes < 0 {
		return errors.New("max_upload_bytes must not be negative")
	}
	if c.MaxReferenceDuration < 0 || c.SynthesisTimeout < 0 {
		return errors.New("durations must not be negative")
	}

	return nil
}
