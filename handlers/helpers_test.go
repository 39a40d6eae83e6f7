// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielhkuo/govpoll/cache"
	"github.com/danielhkuo/govpoll/cliparse"
	"github.com/danielhkuo/govpoll/metrics"
)

// newTestTallier returns a tallier with its own cache and registry.
func newTestTallier(t *testing.T) (*Tallier, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}
	c, err := cache.New(16)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	return NewTallier(c, m), reg
}

func newTestPollHandler(t *testing.T, db *sql.DB, cfg cliparse.Config) *PollHandler {
	t.Helper()
	tallier, _ := newTestTallier(t)
	return NewPollHandler(db, cfg, tallier)
}

// voterHeaders returns the headers a claimed voter sends.
func voterHeaders(token string) map[string]string {
	return map[string]string{"X-Voter-Token": token}
}

// metricValue reads the current value of a counter without labels.
func metricValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var total float64
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}
