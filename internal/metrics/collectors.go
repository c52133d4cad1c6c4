package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tripmind/pkg/logger"
)

// SessionLister is satisfied by the session service
type SessionLister interface {
	ListSessions(ctx context.Context) ([]string, error)
}

// InFlightCounter is satisfied by the turn orchestrator
type InFlightCounter interface {
	InFlight() int
}

// CustomCollector reports gauges that are read from live components at scrape time
type CustomCollector struct {
	log      *logger.Logger
	sessions SessionLister
	turns    InFlightCounter

	totalSessions *prometheus.Desc
	activeTurns   *prometheus.Desc
}

// NewCustomCollector creates a new custom metrics collector
func NewCustomCollector(log *logger.Logger, sessions SessionLister, turns InFlightCounter) *CustomCollector {
	return &CustomCollector{
		log:      log,
		sessions: sessions,
		turns:    turns,

		totalSessions: prometheus.NewDesc(
			"tripmind_sessions",
			"Number of live conversation sessions",
			nil, nil,
		),
		activeTurns: prometheus.NewDesc(
			"tripmind_turns_in_flight",
			"Turns currently being processed",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalSessions
	ch <- c.activeTurns
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.sessions != nil {
		ids, err := c.sessions.ListSessions(ctx)
		if err != nil {
			c.log.Warnf("Failed to count sessions: %v", err)
		} else {
			ch <- prometheus.MustNewConstMetric(c.totalSessions, prometheus.GaugeValue, float64(len(ids)))
		}
	}

	if c.turns != nil {
		ch <- prometheus.MustNewConstMetric(c.activeTurns, prometheus.GaugeValue, float64(c.turns.InFlight()))
	}
}

// RegisterCustomCollector registers the collector with the default registry
func RegisterCustomCollector(collector *CustomCollector) {
	prometheus.MustRegister(collector)
}
