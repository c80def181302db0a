// Package metrics exposes Prometheus counters for the planner.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services use to report events. A nil Recorder is never passed around;
// use Nop() when metrics are disabled.
type Recorder interface {
	RecordLLMCall(kind, outcome string)
	RecordExtractionTier(tier string)
	RecordNotificationCreated(notificationType string)
	RecordFanOutFailure(reason string)
	SetActiveTripWatches(n int)
	SetActiveNotificationSubscriptions(n int)
}

// Collector is the Prometheus backed Recorder.
type Collector struct {
	llmCalls         *prometheus.CounterVec
	extractionTier   *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	fanOutFailures   *prometheus.CounterVec
	tripWatches      prometheus.Gauge
	notificationSubs prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripplanner_llm_calls_total",
			Help: "Language model calls by kind (itinerary, cost) and outcome.",
		}, []string{"kind", "outcome"}),
		extractionTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripplanner_cost_extraction_total",
			Help: "Cost estimate extractions by the strategy that succeeded (fenced, braces, failed).",
		}, []string{"tier"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripplanner_notifications_created_total",
			Help: "Notifications written, by type.",
		}, []string{"type"}),
		fanOutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripplanner_fanout_failures_total",
			Help: "Notification fan-out writes that failed and were skipped.",
		}, []string{"reason"}),
		tripWatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripplanner_trip_watches_active",
			Help: "Live trip document listeners currently open.",
		}),
		notificationSubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripplanner_notification_subscriptions_active",
			Help: "Live per-user notification listeners currently open.",
		}),
	}

	reg.MustRegister(
		c.llmCalls,
		c.extractionTier,
		c.notifications,
		c.fanOutFailures,
		c.tripWatches,
		c.notificationSubs,
	)
	return c
}

func (c *Collector) RecordLLMCall(kind, outcome string) {
	c.llmCalls.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) RecordExtractionTier(tier string) {
	c.extractionTier.WithLabelValues(tier).Inc()
}

func (c *Collector) RecordNotificationCreated(notificationType string) {
	c.notifications.WithLabelValues(notificationType).Inc()
}

func (c *Collector) RecordFanOutFailure(reason string) {
	c.fanOutFailures.WithLabelValues(reason).Inc()
}

func (c *Collector) SetActiveTripWatches(n int) {
	c.tripWatches.Set(float64(n))
}

func (c *Collector) SetActiveNotificationSubscriptions(n int) {
	c.notificationSubs.Set(float64(n))
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type nop struct{}

func (nop) RecordLLMCall(string, string)           {}
func (nop) RecordExtractionTier(string)            {}
func (nop) RecordNotificationCreated(string)       {}
func (nop) RecordFanOutFailure(string)             {}
func (nop) SetActiveTripWatches(int)               {}
func (nop) SetActiveNotificationSubscriptions(int) {}

// Nop returns a Recorder that discards everything.
func Nop() Recorder { return nop{} }

var _ Recorder = (*Collector)(nil)
