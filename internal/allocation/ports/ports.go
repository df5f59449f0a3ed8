// Package ports defines the narrow interfaces through which the allocation
// engine talks to its external collaborators. Production implementations live
// under store/ and notifier/; tests use the in-memory variants.
package ports

import (
	"context"
	"time"

	"solifund/internal/allocation/models"
)

// DonorProvider yields the donors eligible for large-pledge allocation:
// active, email-verified, pledge at or above the eligibility floor, ordered
// by pledge descending with ties broken by ascending id.
type DonorProvider interface {
	EligibleDonors(ctx context.Context) ([]models.Donor, error)
}

// EducatorFilter narrows the educator set for one run.
type EducatorFilter struct {
	// SchoolTypeID restricts to one school type when nonzero.
	SchoolTypeID int64
	// SchoolIDs restricts to specific schools when non-empty.
	SchoolIDs []int64
	// GlobalMaxDonationAmount caps each educator's requested amount before
	// the remaining amount is derived.
	GlobalMaxDonationAmount int64
}

// EducatorProvider yields damaged educators from the active funding period in
// status new, with RemainingAmount already derived from persisted
// transactions (capped request minus confirmed-or-pending sum).
type EducatorProvider interface {
	EligibleEducators(ctx context.Context, filter EducatorFilter) ([]models.DamagedEducator, error)
}

// Ledger persists transactions and answers the sums the engine's caps depend
// on. Every sum treats cancelled transactions as if they never happened.
type Ledger interface {
	// Create persists one transaction synchronously. The engine calls this
	// once per allocation, immediately, so a crash mid-run leaves a
	// consistent partial ledger.
	Create(ctx context.Context, tx *models.Transaction) error

	// AllocatedTotal returns the donor's non-cancelled transaction sum.
	AllocatedTotal(ctx context.Context, donorID int64) (int64, error)

	// HasPendingSince reports whether the donor has any transaction in
	// status new or waiting-confirmation created at or after since.
	HasPendingSince(ctx context.Context, donorID int64, since time.Time) (bool, error)

	// AllocatedToAccountSince returns the donor's non-cancelled sum to one
	// payout account created at or after since.
	AllocatedToAccountSince(ctx context.Context, donorID int64, accountNumber string, since time.Time) (int64, error)
}

// Notifier tells a donor that new payment instructions await them. Failures
// are logged and swallowed; they never affect ledger state.
type Notifier interface {
	TransactionsCreated(ctx context.Context, donor models.Donor, count int, totalAmount int64) error
}

// HolidayCalendar short-circuits a run on configured holidays.
type HolidayCalendar interface {
	IsHoliday(t time.Time) bool
}
