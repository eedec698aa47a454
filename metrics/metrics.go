// Package metrics holds the counters of a single run and pushes them to a
// Prometheus Pushgateway.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

type Metrics struct {
	registry *prometheus.Registry

	FeedsSynced      prometheus.Counter
	FeedErrors       *prometheus.CounterVec
	EntriesCreated   prometheus.Counter
	EntriesDelivered prometheus.Counter
	Digests          *prometheus.CounterVec
	LastRun          prometheus.Gauge
}

// New creates the run metrics on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FeedsSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsdigest_feeds_synced_total",
			Help: "Number of feeds synced",
		}),
		FeedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdigest_feed_errors_total",
			Help: "Number of feed sync errors by kind",
		}, []string{"kind"}),
		EntriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsdigest_entries_created_total",
			Help: "Number of new entries stored",
		}),
		EntriesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsdigest_entries_delivered_total",
			Help: "Number of entries delivered in a digest",
		}),
		Digests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdigest_digests_total",
			Help: "Number of digests by outcome",
		}, []string{"outcome"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "newsdigest_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		}),
	}

	m.registry.MustRegister(
		m.FeedsSynced,
		m.FeedErrors,
		m.EntriesCreated,
		m.EntriesDelivered,
		m.Digests,
		m.LastRun,
	)
	return m
}

// Push sends every metric to the Pushgateway at url under job
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("could not push to Pushgateway: %w", err)
	}
	return nil
}
