package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletcore_ledger_operations_total",
		Help: "Wallet ledger operations by type and result.",
	}, []string{"operation", "result"})

	WebhookOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletcore_webhook_outcomes_total",
		Help: "Gateway webhook deliveries by reconciliation outcome.",
	}, []string{"outcome"})

	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletcore_gateway_requests_total",
		Help: "Outbound gateway payment creations by result.",
	}, []string{"result"})
)
