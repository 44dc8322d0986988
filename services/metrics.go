package services

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService handles Prometheus metrics collection and exposition.
// All metrics live in a private registry so tests can construct multiple
// instances without global-registration collisions.
type MetricsService struct {
	eventsProcessedTotal *prometheus.CounterVec
	cursorPosition       *prometheus.GaugeVec
	trackedMessages      prometheus.Gauge
	staleSweepSelected   prometheus.Counter
	staleSweepPushed     prometheus.Counter
	subscribersActive    prometheus.Gauge
	pushesTotal          prometheus.Counter
	pushFailuresTotal    prometheus.Counter

	registry *prometheus.Registry
}

// NewMetricsService creates a metrics service with its own registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	eventsProcessedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapflow_events_processed_total",
			Help: "Total number of lifecycle events decoded and applied, per chain and event",
		},
		[]string{"chain", "event"},
	)

	cursorPosition := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swapflow_watcher_cursor_block",
			Help: "Last fully-processed block number per chain",
		},
		[]string{"chain"},
	)

	trackedMessages := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "swapflow_tracked_messages_active",
			Help: "Number of cross-chain messages currently in the active set",
		},
	)

	staleSweepSelected := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swapflow_stale_intents_selected_total",
			Help: "Total number of stale intents selected by fallback sweeps",
		},
	)

	staleSweepPushed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swapflow_stale_intents_pushed_total",
			Help: "Total number of stale-intent snapshots re-emitted to subscribers",
		},
	)

	subscribersActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "swapflow_subscribers_active",
			Help: "Number of realtime subscriber connections currently registered",
		},
	)

	pushesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swapflow_pushes_total",
			Help: "Total number of status snapshots delivered to subscribers",
		},
	)

	pushFailuresTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swapflow_push_failures_total",
			Help: "Total number of snapshot deliveries dropped due to slow or dead connections",
		},
	)

	registry.MustRegister(eventsProcessedTotal)
	registry.MustRegister(cursorPosition)
	registry.MustRegister(trackedMessages)
	registry.MustRegister(staleSweepSelected)
	registry.MustRegister(staleSweepPushed)
	registry.MustRegister(subscribersActive)
	registry.MustRegister(pushesTotal)
	registry.MustRegister(pushFailuresTotal)

	return &MetricsService{
		eventsProcessedTotal: eventsProcessedTotal,
		cursorPosition:       cursorPosition,
		trackedMessages:      trackedMessages,
		staleSweepSelected:   staleSweepSelected,
		staleSweepPushed:     staleSweepPushed,
		subscribersActive:    subscribersActive,
		pushesTotal:          pushesTotal,
		pushFailuresTotal:    pushFailuresTotal,
		registry:             registry,
	}
}

// RecordEvent counts one applied lifecycle event.
func (m *MetricsService) RecordEvent(chainName, eventName string) {
	m.eventsProcessedTotal.WithLabelValues(chainName, eventName).Inc()
}

// SetCursor records the watcher cursor position for a chain.
func (m *MetricsService) SetCursor(chainName string, blockNumber uint64) {
	m.cursorPosition.WithLabelValues(chainName).Set(float64(blockNumber))
}

// SetTrackedMessages records the current active tracked-message count.
func (m *MetricsService) SetTrackedMessages(count int) {
	m.trackedMessages.Set(float64(count))
}

// RecordStaleSweep counts one fallback sweep's selections and pushes.
func (m *MetricsService) RecordStaleSweep(selected, pushed int) {
	m.staleSweepSelected.Add(float64(selected))
	m.staleSweepPushed.Add(float64(pushed))
}

// SetSubscribers records the current subscriber connection count.
func (m *MetricsService) SetSubscribers(count int) {
	m.subscribersActive.Set(float64(count))
}

// RecordPush counts one delivered snapshot.
func (m *MetricsService) RecordPush() {
	m.pushesTotal.Inc()
}

// RecordPushFailure counts one dropped delivery.
func (m *MetricsService) RecordPushFailure() {
	m.pushFailuresTotal.Inc()
}

// GetMetricsSummary flattens the registry into a JSON-friendly map for
// clients that do not scrape the Prometheus exposition format. Each family
// maps to a list of samples carrying their label values.
func (m *MetricsService) GetMetricsSummary() (map[string]interface{}, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	summary := make(map[string]interface{}, len(families)+1)
	for _, family := range families {
		samples := make([]map[string]interface{}, 0, len(family.GetMetric()))

		for _, metric := range family.GetMetric() {
			sample := make(map[string]interface{})
			for _, label := range metric.GetLabel() {
				sample[label.GetName()] = label.GetValue()
			}

			switch {
			case metric.GetCounter() != nil:
				sample["value"] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				sample["value"] = metric.GetGauge().GetValue()
			}

			samples = append(samples, sample)
		}

		summary[family.GetName()] = samples
	}

	summary["timestamp"] = time.Now()
	return summary, nil
}

// GetHandler returns the Prometheus metrics HTTP handler.
func (m *MetricsService) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
