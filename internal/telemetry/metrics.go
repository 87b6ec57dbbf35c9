package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bhasha"

var (
	// Submissions counts submissions by modality and outcome (accepted, rejected, failed).
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Submissions by modality and outcome.",
	}, []string{"modality", "outcome"})

	PointsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "points_awarded_total",
		Help:      "Points awarded by modality.",
	}, []string{"modality"})

	// DegradedWrites counts writes that only reached the session because the store failed.
	DegradedWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "degraded_writes_total",
		Help:      "Store writes replaced by a local-only update.",
	}, []string{"op"})

	MediaUploadBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "media_upload_bytes",
		Help:      "Size of uploaded media blobs.",
		Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 8),
	}, []string{"kind"})
)
