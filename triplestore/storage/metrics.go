package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// layerCommitTotal counts layer persists by result
	layerCommitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triplestore_layer_commit_total",
		Help: "Total layer commits by result",
	}, []string{"result"})

	// layerCommitBytes tracks encoded layer record sizes
	layerCommitBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "triplestore_layer_commit_bytes",
		Help:    "Encoded size of committed layer records",
		Buckets: prometheus.ExponentialBuckets(64, 4, 10), // 64B to ~16MB
	})

	// layerLoadTotal counts layer lookups by source
	layerLoadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triplestore_layer_load_total",
		Help: "Total layer lookups by source (cache, disk, missing)",
	}, []string{"source"})

	// setHeadTotal counts head changes by result
	setHeadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triplestore_set_head_total",
		Help: "Total head changes by result (advanced, rejected, error)",
	}, []string{"result"})

	// setHeadDuration tracks head change latency
	setHeadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "triplestore_set_head_duration_seconds",
		Help:    "Head change duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~400ms
	})
)
