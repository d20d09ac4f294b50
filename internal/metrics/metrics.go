// Package metrics holds the prometheus instrumentation for the billing
// engine. A Metrics value is created against an explicit registerer so
// tests can use throwaway registries and run in parallel.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

type Metrics struct {
	// Charger commands dispatched to the operator, by command and outcome
	Commands *prometheus.CounterVec

	// Webhook events received from the payment gateway, by outcome
	WebhookEvents *prometheus.CounterVec

	// Sessions settled against a balance
	SettledSessions prometheus.Counter

	// Sessions stopped without settlement (session lookup failed)
	PendingSettlements prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chargebill_operator_commands_total",
			Help: "Charger commands dispatched to the operator API.",
		}, []string{"command", "outcome"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chargebill_webhook_events_total",
			Help: "Payment gateway webhook events received.",
		}, []string{"outcome"}),
		SettledSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chargebill_settled_sessions_total",
			Help: "Charging sessions settled against a user balance.",
		}),
		PendingSettlements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chargebill_pending_settlements_total",
			Help: "Stops acknowledged without settlement because no session could be read back.",
		}),
	}

	reg.MustRegister(m.Commands, m.WebhookEvents, m.SettledSessions, m.PendingSettlements)
	return m
}

// NewNop returns metrics bound to a registry nobody scrapes.
// Handy default when a caller doesn't care about instrumentation.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
