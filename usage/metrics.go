// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_checks_total",
		Help: "Limit checks by check name and result",
	}, []string{"check", "result"})

	denialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_denials_total",
		Help: "Denied limit checks by reason",
	}, []string{"reason"})

	resetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usage_counter_resets_total",
		Help: "Users whose monthly counters were reset",
	})

	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usage_settings_cache_hits_total",
		Help: "Settings cache hits",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usage_settings_cache_misses_total",
		Help: "Settings cache misses",
	})
)

func observeCheck(check string, d Decision) {
	result := "denied"
	if d.Allowed {
		result = "allowed"
	}
	checksTotal.WithLabelValues(check, result).Inc()
	if !d.Allowed {
		denialsTotal.WithLabelValues(string(d.Kind)).Inc()
	}
}
