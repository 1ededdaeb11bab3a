package ffmpeg

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

type Config struct {
	Bin      string `yaml:"bin" env:"BIN"`
	ProbeBin string `yaml:"probe_bin" env:"PROBE_BIN"`
	TmpDir   string `yaml:"tmp_dir" env:"TMP_DIR"`
}

type Client struct {
	cfg *Config
}

func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}

	return &Client{
		cfg: cfg,
	}
}

func (c *Client) TmpDir() string {
	if c == nil || c.cfg == nil || c.cfg.TmpDir == "" {
		return os.TempDir()
	}
	return c.cfg.TmpDir
}

func (c *Client) bin() string {
	if c.cfg.Bin == "" {
		return "ffmpeg"
	}
	return c.cfg.Bin
}

func (c *Client) probeBin() string {
	if c.cfg.ProbeBin == "" {
		return "ffprobe"
	}
	return c.cfg.ProbeBin
}

// Available reports whether the ffmpeg binary can be resolved.
func (c *Client) Available() bool {
	_, err := exec.LookPath(c.bin())
	return err == nil
}

const prefix = "speechgen_"

// TmpPath returns a fresh, not yet created path in the client tmp dir.
func (c *Client) TmpPath(ext string) string {
	return filepath.Join(c.TmpDir(), prefix+uuid.NewString()+ext)
}
