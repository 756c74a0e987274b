// Package metrics provides Prometheus metrics for the co-processor:
// counters, gauges, and histograms for tasks, verification, settlement,
// and operators.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Tasks ──────────────────────────────────────────────────────────────────

// TasksRequested counts computation requests accepted into escrow.
var TasksRequested = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "coproc",
	Name:      "tasks_requested_total",
	Help:      "Total computation requests accepted.",
})

// TasksSettled counts tasks reaching a terminal state.
var TasksSettled = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "coproc",
	Name:      "tasks_settled_total",
	Help:      "Total tasks reaching a terminal state.",
}, []string{"state"})

// TasksPending tracks tasks currently awaiting a proof.
var TasksPending = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "coproc",
	Name:      "tasks_pending",
	Help:      "Tasks currently in the PENDING state.",
})

// TaskLifetime tracks seconds from request to terminal state.
var TaskLifetime = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "coproc",
	Name:      "task_lifetime_seconds",
	Help:      "Time from computation request to settlement.",
	Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
})

// ─── Verification ───────────────────────────────────────────────────────────

// ProofVerifications counts proof verification outcomes by gateway and result.
var ProofVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "coproc",
	Name:      "proof_verifications_total",
	Help:      "Total proof verification attempts.",
}, []string{"gateway", "result"})

// VerifyLatency tracks proof verification duration in seconds.
var VerifyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "coproc",
	Name:      "proof_verify_latency_seconds",
	Help:      "Proof verification duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"gateway"})

// ─── Settlement ─────────────────────────────────────────────────────────────

// EscrowLocked tracks the total amount currently held in the escrow vault.
var EscrowLocked = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "coproc",
	Name:      "escrow_locked_microunits",
	Help:      "Amount currently locked in the escrow vault.",
})

// RewardsPaid counts reward amounts accrued to operators.
var RewardsPaid = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "coproc",
	Name:      "rewards_paid_microunits_total",
	Help:      "Total reward amount released to operator accruals.",
})

// RewardsClaimed counts reward amounts transferred out by operators.
var RewardsClaimed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "coproc",
	Name:      "rewards_claimed_microunits_total",
	Help:      "Total reward amount claimed by operators.",
})

// RefundsIssued counts escrow refunded to requesters.
var RefundsIssued = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "coproc",
	Name:      "refunds_issued_microunits_total",
	Help:      "Total escrow refunded to requesters.",
})

// ─── Operators ──────────────────────────────────────────────────────────────

// OperatorsRegistered tracks the current registered operator count.
var OperatorsRegistered = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "coproc",
	Name:      "operators_registered",
	Help:      "Currently registered operators.",
})

// StakeSlashed counts stake confiscated from operators.
var StakeSlashed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "coproc",
	Name:      "stake_slashed_microunits_total",
	Help:      "Total stake confiscated from operators.",
})

// ─── API ────────────────────────────────────────────────────────────────────

// HTTPRequests counts API requests by route and status class.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "coproc",
	Name:      "http_requests_total",
	Help:      "Total HTTP API requests.",
}, []string{"route", "status"})

// EventSubscribers tracks live SSE subscriber count.
var EventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "coproc",
	Name:      "event_subscribers",
	Help:      "Currently connected live event subscribers.",
})
