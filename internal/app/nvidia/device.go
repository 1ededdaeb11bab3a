package nvidia

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const (
	DeviceAuto = "auto"
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

type Config struct {
	Device         string        `yaml:"device" env:"DEVICE"`
	SmiBin         string        `yaml:"smi_bin" env:"SMI_BIN"`
	Monitor        bool          `yaml:"monitor" env:"MONITOR"`
	MonitorEvery   time.Duration `yaml:"monitor_every" env:"MONITOR_EVERY"`
	DetectDeadline time.Duration `yaml:"detect_deadline" env:"DETECT_DEADLINE"`
}

func (c *Config) Defaults() {
	if c.Device == "" {
		c.Device = DeviceAuto
	}
	if c.SmiBin == "" {
		c.SmiBin = "nvidia-smi"
	}
	if c.MonitorEvery == 0 {
		c.MonitorEvery = 5 * time.Second
	}
	if c.DetectDeadline == 0 {
		c.DetectDeadline = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	switch c.Device {
	case DeviceAuto, DeviceCUDA, DeviceCPU:
		return nil
	default:
		return fmt.Errorf("unknown device %q, expected auto, cuda or cpu", c.Device)
	}
}

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var outb, errb bytes.Buffer
	cmd.Stdout = &outb
	cmd.Stderr = &errb

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to %s: %w, errb: %s", name, err, errb.String())
	}

	return outb.Bytes(), nil
}

// Detect decides the device once at startup. A forced value from config wins;
// auto picks cuda when nvidia-smi lists at least one GPU.
func Detect(ctx context.Context, cfg *Config, run Runner, logger *slog.Logger) string {
	switch cfg.Device {
	case DeviceCUDA, DeviceCPU:
		logger.Info("device forced by config", "device", cfg.Device)
		return cfg.Device
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.DetectDeadline)
	defer cancel()

	out, err := run(ctx, cfg.SmiBin, "-L")
	if err != nil {
		logger.Info("no accelerator found, using cpu", "err", err)
		return DeviceCPU
	}

	gpus := 0
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "GPU ") {
			gpus++
		}
	}

	if gpus == 0 {
		logger.Info("nvidia-smi listed no gpus, using cpu")
		return DeviceCPU
	}

	logger.Info("accelerator detected", "device", DeviceCUDA, "gpus", gpus)

	return DeviceCUDA
}
