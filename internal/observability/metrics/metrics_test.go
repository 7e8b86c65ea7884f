package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestChatMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChatMetrics(reg)
	m.ObserveMessage("greeting", "ok")
	m.ObserveReplyLatency("greeting", 0.05)
}

func TestWebhookMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)
	m.ObserveInbound("invitee.created", "processed")
	m.ObserveLatency("invitee.created", 0.2)
}

func TestMetricsNilSafe(t *testing.T) {
	var c *ChatMetrics
	c.ObserveMessage("greeting", "ok")
	c.ObserveReplyLatency("greeting", 0.1)

	var w *WebhookMetrics
	w.ObserveInbound("invitee.created", "processed")
	w.ObserveLatency("invitee.created", 0.1)
}
