package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for dialogue processing.
type ChatMetrics struct {
	messagesTotal *prometheus.CounterVec
	replyLatency  *prometheus.HistogramVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careplus",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Total patient messages processed",
		}, []string{"state", "status"}),
		replyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "careplus",
			Subsystem: "chat",
			Name:      "reply_latency_seconds",
			Help:      "Latency of producing a reply",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.replyLatency)
	return m
}

func (m *ChatMetrics) ObserveMessage(state, status string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(state, status).Inc()
}

func (m *ChatMetrics) ObserveReplyLatency(state string, seconds float64) {
	if m == nil {
		return
	}
	m.replyLatency.WithLabelValues(state).Observe(seconds)
}

// WebhookMetrics exposes counters/histograms for scheduling provider
// webhooks.
type WebhookMetrics struct {
	inboundTotal   *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careplus",
			Subsystem: "webhooks",
			Name:      "inbound_total",
			Help:      "Total inbound scheduling provider webhooks",
		}, []string{"event_type", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "careplus",
			Subsystem: "webhooks",
			Name:      "latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.webhookLatency)
	return m
}

func (m *WebhookMetrics) ObserveInbound(eventType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(eventType, status).Inc()
}

func (m *WebhookMetrics) ObserveLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}
