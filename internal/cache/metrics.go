package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "esimgate",
	Subsystem: "cache",
	Name:      "lookups_total",
	Help:      "Cache lookups partitioned by outcome.",
}, []string{"outcome"})

func hitMiss(hit bool) {
	if hit {
		lookups.WithLabelValues("hit").Inc()
		return
	}
	lookups.WithLabelValues("miss").Inc()
}
