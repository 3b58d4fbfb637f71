package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service counters and gauges on a private registry so
// the whole set lives in the application context instead of package globals.
type Metrics struct {
	registry *prometheus.Registry

	AlertsSent           prometheus.Counter
	TestMessages         prometheus.Counter
	ChatMessagesReceived prometheus.Counter
	Online               prometheus.Gauge
	LastAlertSuccess     prometheus.Gauge
}

// New creates and registers all service metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skypebot_alerts_sent_total",
			Help: "Alert webhook payloads accepted and relayed to chat.",
		}),
		TestMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skypebot_test_messages_total",
			Help: "Test messages requested via the /test endpoint.",
		}),
		ChatMessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skypebot_chat_messages_received_total",
			Help: "Inbound chat messages seen by the dispatch loop.",
		}),
		Online: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skypebot_online",
			Help: "1 when the chat session is authenticated, 0 otherwise.",
		}),
		LastAlertSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skypebot_last_alert_success",
			Help: "Whether the most recent /alert delivery attempt succeeded.",
		}),
	}
	m.registry.MustRegister(
		m.AlertsSent,
		m.TestMessages,
		m.ChatMessagesReceived,
		m.Online,
		m.LastAlertSuccess,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
