package nvidia

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	immediateticker "speechgen/pkg/immediate_ticker"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	NvidiaStats *prometheus.GaugeVec
}

var metrics = &Metrics{
	NvidiaStats: prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "system",
		Subsystem: "gpu",
		Name:      "stats_info",
	}, []string{"gpu_id", "stat_name"}),
}

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(metrics.NvidiaStats)
}

type param struct {
	paramName string
	statName  string
}

var params = []param{
	{paramName: "uuid"},
	{paramName: "memory.used", statName: "memory_used"},
	{paramName: "memory.total", statName: "memory_total"},
	{paramName: "temperature.gpu", statName: "temperature_gpu"},
	{paramName: "utilization.gpu", statName: "utilization_gpu"},
	{paramName: "power.draw", statName: "power_draw"},
}

func queryString() string {
	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, p.paramName)
	}

	return strings.Join(names, ",")
}

func collect(ctx context.Context, smiBin string, run Runner) error {
	out, err := run(ctx, smiBin, "--query-gpu", queryString(), "--format", "csv,nounits")
	if err != nil {
		return err
	}

	return parseStats(string(out), metrics.NvidiaStats)
}

// parseStats reads nvidia-smi csv output; the first row is the header.
func parseStats(out string, gauge *prometheus.GaugeVec) error {
	rows := strings.Split(out, "\n")

	for i := 1; i < len(rows); i++ {
		row := strings.TrimSpace(rows[i])
		if len(row) == 0 {
			continue
		}

		stats := strings.Split(row, ",")
		if len(stats) != len(params) {
			return fmt.Errorf("got %d stats, expected %d", len(stats), len(params))
		}

		gpuID := strings.TrimSpace(stats[0])

		for j := 1; j < len(stats); j++ {
			val, err := strconv.ParseFloat(strings.TrimSpace(stats[j]), 64)
			if err != nil {
				// [N/A] on cards without the sensor
				continue
			}

			gauge.WithLabelValues(gpuID, params[j].statName).Set(val)
		}
	}

	return nil
}

func MonitoringLoop(ctx context.Context, cfg *Config, run Runner, logger *slog.Logger) {
	ticker := immediateticker.New(cfg.MonitorEvery)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			if err := collect(ctx, cfg.SmiBin, run); err != nil {
				logger.Error("failed to monitor nvidia", "err", err)
			}
		case <-ctx.Done():
			break loop
		}
	}
}
