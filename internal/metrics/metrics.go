package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SecretsCreatedTotal counts secrets accepted by the create operation
	SecretsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "secret_sharing_secrets_created_total",
		Help: "Total number of secrets created",
	})

	// SecretsViewedTotal counts successful one-time retrievals
	SecretsViewedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "secret_sharing_secrets_viewed_total",
		Help: "Total number of secrets successfully retrieved",
	})

	// SecretsReapedTotal counts records removed by expiry sweeps
	SecretsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "secret_sharing_secrets_reaped_total",
		Help: "Total number of expired secrets removed by the reaper",
	})

	// RetrieveFailuresTotal counts failed retrievals by reason
	RetrieveFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secret_sharing_retrieve_failures_total",
		Help: "Total number of failed secret retrievals",
	}, []string{"reason"})

	// IntegrityFailuresTotal counts stored ciphertexts that failed AEAD
	// verification, which should never happen with an intact store
	IntegrityFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "secret_sharing_integrity_failures_total",
		Help: "Total number of stored secrets that failed authenticated decryption",
	})
)

// RecordRetrieveFailure records a failed retrieval with its reason
func RecordRetrieveFailure(reason string) {
	RetrieveFailuresTotal.WithLabelValues(reason).Inc()
}
