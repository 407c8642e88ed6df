package oidc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var keySetLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "zklogin",
	Subsystem: "jwks",
	Name:      "cache_lookups_total",
	Help:      "Key-set cache lookups by result.",
}, []string{"result"})
