package saltservice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	saltRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zklogin",
		Subsystem: "salt",
		Name:      "requests_total",
		Help:      "Derivation requests by outcome.",
	}, []string{"outcome"})

	derivationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "zklogin",
		Subsystem: "salt",
		Name:      "derivation_seconds",
		Help:      "Wall time of verify-and-derive, successful requests only.",
		Buckets:   prometheus.DefBuckets,
	})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "zklogin",
		Subsystem: "salt",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-client rate limiter.",
	})
)
