package metrics_test

import (
	"net/http/httptest"
	"testing"

	"skype-alertbot/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersAndGauges(t *testing.T) {
	m := metrics.New()

	m.AlertsSent.Inc()
	m.AlertsSent.Inc()
	m.TestMessages.Inc()
	m.ChatMessagesReceived.Inc()
	m.Online.Set(1)
	m.LastAlertSuccess.Set(0)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.AlertsSent))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TestMessages))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ChatMessagesReceived))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Online))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.LastAlertSuccess))
}

func TestHandlerExposition(t *testing.T) {
	m := metrics.New()
	m.AlertsSent.Inc()
	m.Online.Set(1)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	body := rr.Body.String()
	assert.Contains(t, body, "skypebot_alerts_sent_total 1")
	assert.Contains(t, body, "skypebot_online 1")
	assert.Contains(t, body, "skypebot_test_messages_total 0")
	assert.Contains(t, body, "skypebot_chat_messages_received_total 0")
	assert.Contains(t, body, "skypebot_last_alert_success 0")
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := metrics.New()
	b := metrics.New()

	a.AlertsSent.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(a.AlertsSent))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.AlertsSent))
}
