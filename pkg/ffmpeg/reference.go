package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// TrimToWavPath converts any input ffmpeg understands into a mono 16 bit PCM wav
// no longer than maxDuration. Voice cloning models only look at the first
// seconds of a reference clip anyway.
func (c *Client) TrimToWavPath(ctx context.Context, inputPath, outputPath string, maxDuration time.Duration) error {
	probe, err := c.FfprobePath(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("reference is not readable audio: %w", err)
	}

	if probe.Duration <= 0 {
		return fmt.Errorf("reference has no audio")
	}

	args := []string{
		"-nostats", "-loglevel", "error",
		"-i", inputPath,
	}

	if maxDuration > 0 {
		args = append(args, "-t", strconv.FormatFloat(maxDuration.Seconds(), 'f', 3, 64))
	}

	args = append(args,
		"-vn",
		"-ac", "1",
		"-ar", "24000",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		"-y",
		outputPath,
	)

	cmd := exec.CommandContext(ctx, c.bin(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to run ffmpeg trim: %w\nffmpeg output:\n%s", err, strings.TrimSpace(stderr.String()))
	}

	return nil
}
