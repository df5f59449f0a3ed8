package models

import (
	"time"

	"github.com/google/uuid"
)

// All monetary values are integers in minor currency units. No floating point
// enters allocation arithmetic at any point.

// TransactionStatus tracks a payment instruction through its lifecycle.
type TransactionStatus string

const (
	TransactionStatusNew                 TransactionStatus = "new"
	TransactionStatusWaitingConfirmation TransactionStatus = "waiting_confirmation"
	TransactionStatusConfirmed           TransactionStatus = "confirmed"
	TransactionStatusCancelled           TransactionStatus = "cancelled"
)

// IsValid checks if the status is one of the supported enum values.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusNew, TransactionStatusWaitingConfirmation,
		TransactionStatusConfirmed, TransactionStatusCancelled:
		return true
	}
	return false
}

// Counted reports whether a transaction in this status counts against pledge
// and ceiling sums. Only cancelled transactions do not.
func (s TransactionStatus) Counted() bool {
	return s != TransactionStatusCancelled
}

// EducatorStatus marks a damaged-educator record as live or withdrawn.
type EducatorStatus string

const (
	EducatorStatusNew     EducatorStatus = "new"
	EducatorStatusDeleted EducatorStatus = "deleted"
)

// IsValid checks if the status is one of the supported enum values.
func (s EducatorStatus) IsValid() bool {
	return s == EducatorStatusNew || s == EducatorStatusDeleted
}

// SchoolType categorizes the institution a damaged educator belongs to. Donors
// may restrict their pledge to university educators only.
type SchoolType string

const (
	SchoolTypePrimary    SchoolType = "primary"
	SchoolTypeSecondary  SchoolType = "secondary"
	SchoolTypeUniversity SchoolType = "university"
)

// IsValid checks if the school type is one of the supported enum values.
func (t SchoolType) IsValid() bool {
	switch t {
	case SchoolTypePrimary, SchoolTypeSecondary, SchoolTypeUniversity:
		return true
	}
	return false
}

// IsUniversity reports whether the type satisfies a university-only pledge.
func (t SchoolType) IsUniversity() bool {
	return t == SchoolTypeUniversity
}

// Donor is an immutable snapshot of a large-pledge donor, populated by a
// provider before a run. The engine never traverses lazily loaded relations;
// everything it needs is on this value.
type Donor struct {
	ID             int64
	Email          string
	Active         bool
	EmailVerified  bool
	PledgeAmount   int64
	OnlyUniversity bool
}

// DamagedEducator is an immutable snapshot of a payee awaiting reimbursement.
// RemainingAmount is derived at load time from the capped requested amount
// minus the educator's confirmed-or-pending transaction sum.
type DamagedEducator struct {
	ID              int64
	Name            string
	AccountNumber   string
	PeriodID        int64
	SchoolID        int64
	SchoolType      SchoolType
	Status          EducatorStatus
	RequestedAmount int64
	RemainingAmount int64
}

// Transaction is a persisted payment instruction. AccountNumber is copied from
// the educator at creation time and never follows later educator edits.
type Transaction struct {
	ID            int64
	RunID         uuid.UUID
	DonorID       int64
	EducatorID    int64
	AccountNumber string
	Amount        int64
	Status        TransactionStatus
	CreatedAt     time.Time
}

// Engine defaults. All values are minor currency units.
const (
	DefaultMinTransactionAmount    int64 = 10000
	DefaultGlobalMaxDonationAmount int64 = 60000
	DefaultAnnualCeiling           int64 = 80000

	// MinEligiblePledge is the floor below which pledges are handled by a
	// separate one-time flow and never reach this engine.
	MinEligiblePledge int64 = 100000

	// CooldownDays is the lookback window during which a donor with an
	// outstanding unconfirmed instruction is skipped.
	CooldownDays = 10

	// AnnualWindowDays is the trailing window for the per-donor-per-account
	// ceiling.
	AnnualWindowDays = 365
)

// RunParams scope and parameterize one allocation run.
type RunParams struct {
	SchoolTypeID            int64
	SchoolIDs               []int64
	MinTransactionAmount    int64
	GlobalMaxDonationAmount int64
	AnnualCeiling           int64
}

// DefaultRunParams returns run parameters with the stated defaults and no
// school filter.
func DefaultRunParams() RunParams {
	return RunParams{
		MinTransactionAmount:    DefaultMinTransactionAmount,
		GlobalMaxDonationAmount: DefaultGlobalMaxDonationAmount,
		AnnualCeiling:           DefaultAnnualCeiling,
	}
}

// Report summarizes one allocation run for logs and callers.
type Report struct {
	RunID               uuid.UUID
	HolidaySkip         bool
	DonorsConsidered    int
	DonorsSkipped       int
	TransactionsCreated int
	AmountAllocated     int64
	StartedAt           time.Time
	FinishedAt          time.Time
}
