// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "govpoll"

// Outcome labels for resolutions.
const (
	OutcomeWinner   = "winner"
	OutcomeNoWinner = "no_winner"
	OutcomeError    = "error"
)

type Metrics struct {
	resolutions *prometheus.CounterVec
	rounds      prometheus.Histogram
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	requests    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "number of poll resolutions by mode and outcome",
		}, []string{"mode", "outcome"}),
		rounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_rounds",
			Help:      "number of tally rounds per resolution",
			Buckets:   []float64{1, 2, 3, 5, 8, 13},
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_cache_hits_total",
			Help:      "resolutions served from the cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_cache_misses_total",
			Help:      "resolutions computed because the cache had no entry",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "handled HTTP requests by method and status code",
		}, []string{"method", "code"}),
	}

	err := errors.Join(
		reg.Register(m.resolutions),
		reg.Register(m.rounds),
		reg.Register(m.cacheHits),
		reg.Register(m.cacheMisses),
		reg.Register(m.requests),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveResolution records one resolution. rounds is ignored for errors.
func (m *Metrics) ObserveResolution(mode, outcome string, rounds int) {
	m.resolutions.WithLabelValues(mode, outcome).Inc()
	if outcome != OutcomeError {
		m.rounds.Observe(float64(rounds))
	}
}

func (m *Metrics) CacheHit()  { m.cacheHits.Inc() }
func (m *Metrics) CacheMiss() { m.cacheMisses.Inc() }

func (m *Metrics) ObserveRequest(method string, code int) {
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
