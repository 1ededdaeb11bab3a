package ai

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"speechgen/pkg/tools"
	"speechgen/pkg/wavinfo"
)

// CoquiCLI runs the Coqui `tts` command once per request. Each call loads the
// model again, which is slow but needs no sidecar.
type CoquiCLI struct {
	cfg    *Config
	device string
}

func NewCoquiCLI(cfg *Config, device string) *CoquiCLI {
	return &CoquiCLI{
		cfg:    cfg,
		device: device,
	}
}

var _ Synthesizer = (*CoquiCLI)(nil)

func (c *CoquiCLI) Model() string {
	return c.cfg.Model
}

func (c *CoquiCLI) args(req *SynthesisRequest, outputPath string) []string {
	args := []string{
		"--text", req.Text,
		"--model_name", c.cfg.Model,
		"--speaker_wav", req.SpeakerWavPath,
		"--language_idx", req.Language,
		"--out_path", outputPath,
	}

	if c.device == "cuda" {
		args = append(args, "--use_cuda", "true")
	}

	return args
}

func (c *CoquiCLI) SynthesizeToFile(ctx context.Context, req *SynthesisRequest, outputPath string) (err error) {
	if err := validateRequest(req, outputPath); err != nil {
		return err
	}

	if tools.FileExists(outputPath) {
		return fmt.Errorf("output file %s already exists", outputPath)
	}

	defer func() {
		if err != nil {
			_ = tools.RemoveIfExists(outputPath)
		}
	}()

	start := time.Now()

	// #nosec G204 -- binary comes from config, text is passed as a single argv entry
	cmd := exec.CommandContext(ctx, c.cfg.CLIBin, c.args(req, outputPath)...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		metrics.TTSErrors.WithLabelValues("exec").Inc()
		return fmt.Errorf("tts cli failed: %w - output: %s", err, lastLines(string(output), 5))
	}

	if _, err = os.Stat(outputPath); err != nil {
		metrics.TTSErrors.WithLabelValues("no_output").Inc()
		return fmt.Errorf("tts cli produced no output file: %w", err)
	}

	if _, err = wavinfo.Inspect(outputPath); err != nil {
		metrics.TTSErrors.WithLabelValues("invalid_output").Inc()
		return fmt.Errorf("engine produced unplayable audio: %w", err)
	}

	metrics.TTSQueryTime.Observe(time.Since(start).Seconds())

	return nil
}

// lastLines keeps the tail of the cli output, which is where python tracebacks
// put the actual exception.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	return strings.Join(lines, "\n")
}
