package speech

import (
	appmetrics "speechgen/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Requests            *prometheus.CounterVec
	SynthesisTime       prometheus.Histogram
	SpectrogramFailures prometheus.Counter
}

var metrics = &Metrics{
	Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "speech",
		Name:      "requests_total",
	}, []string{"outcome"}),
	SynthesisTime: prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "speech",
		Name:      "synthesis_seconds",
		Buckets:   appmetrics.RequestSecondsBuckets,
	}),
	SpectrogramFailures: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "speech",
		Name:      "spectrogram_failures_total",
	}),
}

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(metrics.Requests)
	reg.MustRegister(metrics.SynthesisTime)
	reg.MustRegister(metrics.SpectrogramFailures)
}
