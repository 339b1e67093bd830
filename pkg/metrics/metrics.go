package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "imaginify", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "imaginify", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "imaginify", Name: "webhook_events_total", Help: "Processed webhook deliveries by event type and response status."},
		[]string{"type", "status"},
	)
	WebhookVerificationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "imaginify", Name: "webhook_verification_failures_total", Help: "Rejected webhook deliveries by reason."},
		[]string{"reason"},
	)
	WebhookDuplicates = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "imaginify", Name: "webhook_duplicates_total", Help: "Webhook deliveries skipped because their message id was already processed."},
	)
	WebhookArchiveFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "imaginify", Name: "webhook_archive_failures_total", Help: "Verified deliveries that could not be archived."},
	)
	MetadataSync = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "imaginify", Name: "metadata_sync_total", Help: "Provider metadata write-backs by result."},
		[]string{"result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(WebhookEvents)
	reg.MustRegister(WebhookVerificationFailures)
	reg.MustRegister(WebhookDuplicates)
	reg.MustRegister(WebhookArchiveFailures)
	reg.MustRegister(MetadataSync)
}
