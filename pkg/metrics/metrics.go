package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once

	// Analysis metrics
	AnalysesTotal  *prometheus.CounterVec
	AnalysisErrors *prometheus.CounterVec
	StageLatency   *prometheus.HistogramVec

	// Biometric metrics
	EnrollmentsTotal   *prometheus.CounterVec
	VerificationsTotal *prometheus.CounterVec
	VerificationScore  prometheus.Histogram
	SignaturesEnrolled prometheus.Gauge
	EmbeddingQuality   prometheus.Histogram
)

// Init initializes all metrics and registers them with a private registry
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		AnalysesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voiceprint_analyses_total",
				Help: "Total number of vocal analyses performed",
			},
			[]string{"category"},
		)

		AnalysisErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voiceprint_analysis_errors_total",
				Help: "Total number of failed analyses",
			},
			[]string{"stage"},
		)

		StageLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "voiceprint_stage_duration_seconds",
				Help:    "Processing time per pipeline stage",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"stage"},
		)

		EnrollmentsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voiceprint_enrollments_total",
				Help: "Total number of enrollment attempts",
			},
			[]string{"result"},
		)

		VerificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voiceprint_verifications_total",
				Help: "Total number of verification attempts",
			},
			[]string{"result"},
		)

		VerificationScore = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "voiceprint_verification_confidence",
				Help:    "Confidence scores of verification decisions",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		)

		SignaturesEnrolled = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "voiceprint_signatures_enrolled",
				Help: "Number of active enrolled voice signatures",
			},
		)

		EmbeddingQuality = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "voiceprint_embedding_quality",
				Help:    "Quality scores of extracted embeddings",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		)

		registry.MustRegister(
			AnalysesTotal,
			AnalysisErrors,
			StageLatency,
			EnrollmentsTotal,
			VerificationsTotal,
			VerificationScore,
			SignaturesEnrolled,
			EmbeddingQuality,
		)

		logger.Debug("Prometheus metrics registered")
	})
}

// Handler returns the HTTP handler exposing the metrics registry
func Handler() http.Handler {
	if registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveStage records the duration of a pipeline stage
func ObserveStage(stage string, start time.Time) {
	if StageLatency != nil {
		StageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
