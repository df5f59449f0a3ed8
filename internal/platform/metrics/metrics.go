package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the allocation engine.
type Metrics struct {
	RunsStarted         prometheus.Counter
	RunsCompleted       prometheus.Counter
	RunsLockBusy        prometheus.Counter
	RunsHolidaySkipped  prometheus.Counter
	TransactionsCreated prometheus.Counter
	AmountAllocated     prometheus.Counter
	DonorsSkipped       *prometheus.CounterVec
	PersistenceFailures prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solifund_allocation_runs_started_total",
			Help: "Total number of allocation runs started",
		}),
		RunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solifund_allocation_runs_completed_total",
			Help: "Total number of allocation runs completed normally",
		}),
		RunsLockBusy: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solifund_allocation_runs_lock_busy_total",
			Help: "Total number of allocation runs aborted because the run lock was held",
		}),
		RunsHolidaySkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solifund_allocation_runs_holiday_skipped_total",
			Help: "Total number of allocation runs short-circuited on a holiday",
		}),
		TransactionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solifund_transactions_created_total",
			Help: "Total number of transactions created by the allocation engine",
		}),
		AmountAllocated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solifund_amount_allocated_minor_units_total",
			Help: "Total allocated amount in minor currency units",
		}),
		DonorsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "solifund_donors_skipped_total",
			Help: "Total number of donors skipped during allocation, by reason",
		}, []string{"reason"}),
		PersistenceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solifund_transaction_persistence_failures_total",
			Help: "Total number of failed transaction writes",
		}),
	}
}
