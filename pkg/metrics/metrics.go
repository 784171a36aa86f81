package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RemoteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "cloudsign", Name: "remote_requests_total", Help: "Number of CloudSign API requests by method and outcome."},
		[]string{"method", "outcome"},
	)
	TokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "cloudsign", Name: "token_refreshes_total", Help: "Number of access-token refresh calls by outcome."},
		[]string{"outcome"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "cloudsign", Name: "webhook_events_total", Help: "Number of webhook events received by type."},
		[]string{"event_type"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "cloudsign", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "cloudsign", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RemoteRequests)
	reg.MustRegister(TokenRefreshes)
	reg.MustRegister(WebhookEvents)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
