package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	RowsIngested   *prometheus.CounterVec
	Posts          *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	PendingRecords *prometheus.GaugeVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RowsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donation_relay",
			Name:      "rows_ingested_total",
			Help:      "Source rows processed by ingestion, by outcome.",
		}, []string{"outcome"}),
		Posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donation_relay",
			Name:      "posts_total",
			Help:      "Publication attempts, by channel and result.",
		}, []string{"channel", "result"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "donation_relay",
			Name:      "task_duration_seconds",
			Help:      "Duration of scheduled tasks.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type", "status"}),
		PendingRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "donation_relay",
			Name:      "pending_donations",
			Help:      "Donations not yet delivered, by channel.",
		}, []string{"channel"}),
	}

	registry.MustRegister(
		m.RowsIngested,
		m.Posts,
		m.TaskDuration,
		m.PendingRecords,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) RecordIngest(created, existing, malformed int) {
	m.RowsIngested.WithLabelValues("created").Add(float64(created))
	m.RowsIngested.WithLabelValues("existing").Add(float64(existing))
	m.RowsIngested.WithLabelValues("malformed").Add(float64(malformed))
}

func (m *Metrics) RecordPublish(channel string, posted, failed, pending int) {
	m.Posts.WithLabelValues(channel, "posted").Add(float64(posted))
	m.Posts.WithLabelValues(channel, "failed").Add(float64(failed))
	m.PendingRecords.WithLabelValues(channel).Set(float64(pending))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
