// Package engine implements the batch allocation pass that matches
// large-pledge donors to damaged educators awaiting reimbursement.
//
// One invocation is one sequential pass: the engine snapshots the educator
// pool, walks donors in pledge order, and persists each transaction the
// moment it is created. A crash mid-run therefore leaves a valid partial
// ledger, and the next run recomputes every remaining amount from persisted
// transactions. Note that a re-run after partial completion may allocate
// differently than an uninterrupted run would have: pool ordering is computed
// from remaining amounts at run start. That is accepted behavior, not a bug.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"solifund/internal/allocation/models"
	"solifund/internal/allocation/policy"
	"solifund/internal/allocation/pool"
	"solifund/internal/allocation/ports"
	"solifund/internal/bankaccount"
	"solifund/internal/platform/metrics"
	"solifund/internal/platform/sentinel"
	"solifund/internal/runlock"
)

// Clock returns the current time; injected for testability.
type Clock func() time.Time

// Engine orchestrates one allocation run. It owns no mutable state between
// runs; everything it needs arrives through its collaborator ports.
type Engine struct {
	donors    ports.DonorProvider
	educators ports.EducatorProvider
	ledger    ports.Ledger
	lock      runlock.Locker

	notifier ports.Notifier
	calendar ports.HolidayCalendar
	metrics  *metrics.Metrics
	logger   *slog.Logger
	clock    Clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithNotifier sets the per-donor notifier.
func WithNotifier(n ports.Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithHolidayCalendar sets the holiday short-circuit calendar.
func WithHolidayCalendar(c ports.HolidayCalendar) Option {
	return func(e *Engine) {
		e.calendar = c
	}
}

// WithMetrics sets the Prometheus metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New constructs an Engine. The donor provider, educator provider, ledger and
// run lock are required.
func New(donors ports.DonorProvider, educators ports.EducatorProvider, ledger ports.Ledger, lock runlock.Locker, opts ...Option) (*Engine, error) {
	if donors == nil {
		return nil, fmt.Errorf("donor provider is required")
	}
	if educators == nil {
		return nil, fmt.Errorf("educator provider is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if lock == nil {
		return nil, fmt.Errorf("run lock is required")
	}

	e := &Engine{
		donors:    donors,
		educators: educators,
		ledger:    ledger,
		lock:      lock,
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes one allocation pass under the non-blocking exclusive run lock.
// It returns sentinel.ErrLockBusy, having done nothing, when a concurrent run
// holds the lock for the same filter scope. A holiday is a recognized no-op:
// the returned report has HolidaySkip set and the error is nil.
func (e *Engine) Run(ctx context.Context, params models.RunParams) (*models.Report, error) {
	params = withDefaults(params)
	now := e.clock()

	key := runlock.Key(params.SchoolTypeID, params.SchoolIDs)
	ok, err := e.lock.AcquireNonBlocking(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %q: %w", key, err)
	}
	if !ok {
		if e.metrics != nil {
			e.metrics.RunsLockBusy.Inc()
		}
		return nil, fmt.Errorf("run lock %q: %w", key, sentinel.ErrLockBusy)
	}
	defer func() {
		if err := e.lock.Release(ctx, key); err != nil {
			e.logger.Warn("release run lock failed", "key", key, "error", err)
		}
	}()

	report := &models.Report{
		RunID:     uuid.New(),
		StartedAt: now,
	}
	log := e.logger.With("run_id", report.RunID)

	if e.metrics != nil {
		e.metrics.RunsStarted.Inc()
	}

	if e.calendar != nil && e.calendar.IsHoliday(now) {
		log.Info("holiday, skipping allocation run")
		report.HolidaySkip = true
		report.FinishedAt = e.clock()
		if e.metrics != nil {
			e.metrics.RunsHolidaySkipped.Inc()
		}
		return report, nil
	}

	donors, educatorPool, err := e.gather(ctx, params, log)
	if err != nil {
		return nil, err
	}
	log.Info("allocation run starting",
		"donors", len(donors),
		"pool_size", educatorPool.Len(),
		"school_type_id", params.SchoolTypeID,
		"school_ids", params.SchoolIDs,
	)

	for _, donor := range donors {
		e.allocateForDonor(ctx, donor, educatorPool, params, now, report, log)
	}

	report.FinishedAt = e.clock()
	if e.metrics != nil {
		e.metrics.RunsCompleted.Inc()
	}
	log.Info("allocation run finished",
		"donors_considered", report.DonorsConsidered,
		"donors_skipped", report.DonorsSkipped,
		"transactions_created", report.TransactionsCreated,
		"amount_allocated", report.AmountAllocated,
	)
	return report, nil
}

// gather fetches the donor list and builds the educator pool. The two fetches
// run concurrently; the allocation pass itself stays single-threaded.
func (e *Engine) gather(ctx context.Context, params models.RunParams, log *slog.Logger) ([]models.Donor, *pool.Pool, error) {
	var (
		donors    []models.Donor
		educators []models.DamagedEducator
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		donors, err = e.donors.EligibleDonors(gctx)
		if err != nil {
			return fmt.Errorf("fetch donors: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		educators, err = e.educators.EligibleEducators(gctx, ports.EducatorFilter{
			SchoolTypeID:            params.SchoolTypeID,
			SchoolIDs:               params.SchoolIDs,
			GlobalMaxDonationAmount: params.GlobalMaxDonationAmount,
		})
		if err != nil {
			return fmt.Errorf("fetch educators: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Educators with unusable payout accounts never enter the pool; creating
	// an instruction against them would only bounce at the bank.
	payable := educators[:0]
	for _, ed := range educators {
		if result := bankaccount.Validate(ed.AccountNumber); !result.OK() {
			log.Warn("excluding educator with invalid payout account",
				"educator_id", ed.ID,
				"reason", result.String(),
			)
			continue
		}
		payable = append(payable, ed)
	}

	return donors, pool.New(payable, params.MinTransactionAmount), nil
}

// allocateForDonor walks the pool for one donor, creating transactions until
// the donor's remaining pledge cannot fund another one.
func (e *Engine) allocateForDonor(ctx context.Context, donor models.Donor, p *pool.Pool, params models.RunParams, now time.Time, report *models.Report, log *slog.Logger) {
	report.DonorsConsidered++
	dlog := log.With("donor_id", donor.ID)

	// Providers already filter on these, but a custom provider may not.
	if !donor.Active || !donor.EmailVerified || donor.PledgeAmount < models.MinEligiblePledge {
		e.skipDonor(report, "ineligible")
		return
	}

	cooldownStart := now.AddDate(0, 0, -models.CooldownDays)
	pending, err := e.ledger.HasPendingSince(ctx, donor.ID, cooldownStart)
	if err != nil {
		dlog.Error("cooldown lookup failed, skipping donor", "error", err)
		e.skipDonor(report, "ledger_error")
		return
	}
	if pending {
		dlog.Info("donor has outstanding instructions, cooling down")
		e.skipDonor(report, "cooldown")
		return
	}

	allocated, err := e.ledger.AllocatedTotal(ctx, donor.ID)
	if err != nil {
		dlog.Error("allocated total lookup failed, skipping donor", "error", err)
		e.skipDonor(report, "ledger_error")
		return
	}
	remainingPledge := donor.PledgeAmount - allocated
	if remainingPledge < params.MinTransactionAmount {
		e.skipDonor(report, "pledge_exhausted")
		return
	}

	tierCap := policy.CapFor(donor.PledgeAmount)
	annualStart := now.AddDate(0, 0, -models.AnnualWindowDays)

	created := 0
	var createdAmount int64
	for _, ed := range p.Educators() {
		if donor.OnlyUniversity && !ed.SchoolType.IsUniversity() {
			continue
		}

		annual, err := e.ledger.AllocatedToAccountSince(ctx, donor.ID, ed.AccountNumber, annualStart)
		if err != nil {
			dlog.Error("annual sum lookup failed, aborting donor", "educator_id", ed.ID, "error", err)
			break
		}
		// Speculative check: even if the next transaction were cap-sized it
		// must not breach the yearly per-pair ceiling.
		if annual+tierCap >= params.AnnualCeiling {
			continue
		}

		amount := min3(p.Remaining(ed.ID), remainingPledge, tierCap)
		if amount < params.MinTransactionAmount {
			if p.Remaining(ed.ID) < params.MinTransactionAmount {
				p.Drop(ed.ID)
			}
			continue
		}

		tx := &models.Transaction{
			RunID:         report.RunID,
			DonorID:       donor.ID,
			EducatorID:    ed.ID,
			AccountNumber: ed.AccountNumber,
			Amount:        amount,
			Status:        models.TransactionStatusNew,
			CreatedAt:     e.clock(),
		}
		if err := e.ledger.Create(ctx, tx); err != nil {
			// Do not keep allocating for this donor against a possibly
			// corrupted remaining pledge; committed transactions stand.
			dlog.Error("transaction write failed, aborting donor", "educator_id", ed.ID, "error", err)
			if e.metrics != nil {
				e.metrics.PersistenceFailures.Inc()
			}
			break
		}

		if err := p.Consume(ed.ID, amount); err != nil {
			dlog.Error("pool consume failed after committed write, aborting donor", "educator_id", ed.ID, "error", err)
			break
		}
		remainingPledge -= amount
		created++
		createdAmount += amount
		report.TransactionsCreated++
		report.AmountAllocated += amount
		if e.metrics != nil {
			e.metrics.TransactionsCreated.Inc()
			e.metrics.AmountAllocated.Add(float64(amount))
		}

		if remainingPledge < params.MinTransactionAmount {
			break
		}
	}

	dlog.Info("donor processed", "transactions_created", created, "amount", createdAmount)

	if created > 0 && e.notifier != nil {
		if err := e.notifier.TransactionsCreated(ctx, donor, created, createdAmount); err != nil {
			dlog.Warn("notification failed", "error", err)
		}
	}
}

func (e *Engine) skipDonor(report *models.Report, reason string) {
	report.DonorsSkipped++
	if e.metrics != nil {
		e.metrics.DonorsSkipped.WithLabelValues(reason).Inc()
	}
}

func withDefaults(params models.RunParams) models.RunParams {
	if params.MinTransactionAmount <= 0 {
		params.MinTransactionAmount = models.DefaultMinTransactionAmount
	}
	if params.GlobalMaxDonationAmount <= 0 {
		params.GlobalMaxDonationAmount = models.DefaultGlobalMaxDonationAmount
	}
	if params.AnnualCeiling <= 0 {
		params.AnnualCeiling = models.DefaultAnnualCeiling
	}
	return params
}

func min3(a, b, c int64) int64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
