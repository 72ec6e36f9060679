package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Provider webhook events by type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	webhookSignatureFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_signature_failures_total",
			Help: "Webhook deliveries rejected for a bad signature",
		},
	)

	checkoutsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkouts_started_total",
			Help: "Checkout sessions opened with the payment provider",
		},
	)

	providerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Requests issued to the payment provider API",
		},
		[]string{"operation", "status"},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)

// WebhookEvent counts a processed webhook delivery. Outcome is one of
// applied, deleted, duplicate, stale, orphaned, ignored, malformed.
func WebhookEvent(eventType, outcome string) {
	webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func WebhookSignatureFailure() {
	webhookSignatureFailures.Inc()
}

func CheckoutStarted() {
	checkoutsStarted.Inc()
}

func ProviderRequest(operation, status string) {
	providerRequests.WithLabelValues(operation, status).Inc()
}

func RateLimited(route string) {
	rateLimited.WithLabelValues(route).Inc()
}
