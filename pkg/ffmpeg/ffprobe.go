package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

type FfprobeResult struct {
	Duration time.Duration
}

type ffprobeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (c *Client) FfprobePath(ctx context.Context, path string) (*FfprobeResult, error) {
	cmd := exec.CommandContext(ctx, c.probeBin(), "-v", "quiet", "-print_format", "json", "-show_format", path)

	res, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("exec ffprobe: %w", err)
	}

	var result ffprobeResult
	err = json.Unmarshal(res, &result)
	if err != nil {
		return nil, fmt.Errorf("unmarshal json: %w", err)
	}

	if result.Format.Duration == "" {
		return nil, fmt.Errorf("ffprobe reported no duration for %s", path)
	}

	dur, err := time.ParseDuration(result.Format.Duration + "s")
	if err != nil {
		return nil, fmt.Errorf("parse duration: %w", err)
	}

	return &FfprobeResult{
		Duration: dur,
	}, nil
}
