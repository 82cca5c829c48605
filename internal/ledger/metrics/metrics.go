// Package metrics holds the Prometheus instruments for ledger operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all ledger Prometheus metrics.
type Metrics struct {
	IdentitiesCreated  prometheus.Counter
	IdentitiesDeleted  prometheus.Counter
	LivenessUpdates    prometheus.Counter
	DocumentReuseBlock prometheus.Counter
	Verifications      *prometheus.CounterVec
}

// New creates and registers all ledger metrics on the given registerer.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in
// tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IdentitiesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "secureid_identities_created_total",
			Help: "Total number of identities stored on the ledger",
		}),
		IdentitiesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "secureid_identities_deleted_total",
			Help: "Total number of identities marked deleted",
		}),
		LivenessUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "secureid_liveness_updates_total",
			Help: "Total number of liveness status updates",
		}),
		DocumentReuseBlock: factory.NewCounter(prometheus.CounterOpts{
			Name: "secureid_document_reuse_rejected_total",
			Help: "Total number of identity creations rejected for document reuse",
		}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "secureid_verifications_total",
			Help: "Total number of code-hash verification checks by outcome",
		}, []string{"outcome"}),
	}
}
