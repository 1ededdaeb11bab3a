package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// SpectrogramPath renders a single spectrogram picture of the whole input file.
// Frequency axis is log scaled which reads close to a mel plot for speech.
func (c *Client) SpectrogramPath(ctx context.Context, inputPath, outputPath string, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid spectrogram size %dx%d", width, height)
	}

	filter := fmt.Sprintf("showspectrumpic=s=%dx%d:mode=combined:color=intensity:scale=log:fscale=log:legend=0", width, height)

	cmd := exec.CommandContext(ctx, c.bin(),
		"-nostats", "-loglevel", "error",
		"-i", inputPath,
		"-lavfi", filter,
		"-frames:v", "1",
		"-y",
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to run ffmpeg spectrogram: %w\nffmpeg output:\n%s", err, strings.TrimSpace(stderr.String()))
	}

	return nil
}
