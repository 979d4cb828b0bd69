package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// baselinesTotal counts processed baselines.
	// Labels: result (success, failure, panic)
	baselinesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rfiflag",
		Name:      "baselines_total",
		Help:      "Baselines processed by the flagging pipeline",
	}, []string{"result"})

	baselineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rfiflag",
		Name:      "baseline_duration_seconds",
		Help:      "Time spent running the strategy on one baseline",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	flaggedRatio = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rfiflag",
		Name:      "flagged_ratio",
		Help:      "Fraction of samples flagged per baseline",
		Buckets:   prometheus.LinearBuckets(0, 0.05, 20),
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rfiflag",
		Name:      "queue_depth",
		Help:      "Baselines loaded and waiting for a worker",
	})
)
