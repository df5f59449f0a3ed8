package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"solifund/internal/allocation/models"
	"solifund/internal/allocation/notifier"
	donorStore "solifund/internal/allocation/store/donor"
	educatorStore "solifund/internal/allocation/store/educator"
	ledgerStore "solifund/internal/allocation/store/ledger"
	"solifund/internal/platform/sentinel"
	"solifund/internal/runlock"
)

const activePeriod = 1

// validAccounts carry correct MOD-97 check digits.
var validAccounts = []string{
	"160000000000000076",
	"265000012345678984",
	"123456789012345611",
	"330007123456789024",
}

type EngineSuite struct {
	suite.Suite
	now       time.Time
	donors    *donorStore.MemoryStore
	educators *educatorStore.MemoryStore
	ledger    *ledgerStore.MemoryStore
	lock      *runlock.MemoryLocker
	notifier  *notifier.Memory
	engine    *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	s.donors = donorStore.NewMemory()
	s.educators = educatorStore.NewMemory(activePeriod)
	s.ledger = ledgerStore.NewMemory()
	s.lock = runlock.NewMemoryLocker()
	s.notifier = notifier.NewMemory()

	var err error
	s.engine, err = New(s.donors, s.educators, s.ledger, s.lock,
		WithNotifier(s.notifier),
		WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)
}

func (s *EngineSuite) addDonor(id int64, pledge int64) models.Donor {
	d := models.Donor{
		ID:            id,
		Email:         fmt.Sprintf("donor%d@example.org", id),
		Active:        true,
		EmailVerified: true,
		PledgeAmount:  pledge,
	}
	s.donors.Put(d)
	return d
}

func (s *EngineSuite) addEducator(id int64, requested int64) models.DamagedEducator {
	e := models.DamagedEducator{
		ID:              id,
		Name:            fmt.Sprintf("Educator %d", id),
		AccountNumber:   validAccounts[int(id)%len(validAccounts)],
		PeriodID:        activePeriod,
		SchoolID:        id,
		SchoolType:      models.SchoolTypeSecondary,
		Status:          models.EducatorStatusNew,
		RequestedAmount: requested,
	}
	s.educators.Put(e)
	return e
}

func (s *EngineSuite) run(params models.RunParams) *models.Report {
	report, err := s.engine.Run(context.Background(), params)
	s.Require().NoError(err)
	s.Require().NotNil(report)
	return report
}

func (s *EngineSuite) TestNew() {
	s.Run("nil dependencies are rejected", func() {
		_, err := New(nil, s.educators, s.ledger, s.lock)
		s.Error(err)
		_, err = New(s.donors, nil, s.ledger, s.lock)
		s.Error(err)
		_, err = New(s.donors, s.educators, nil, s.lock)
		s.Error(err)
		_, err = New(s.donors, s.educators, s.ledger, nil)
		s.Error(err)
	})
}

func (s *EngineSuite) TestLockBusy() {
	ctx := context.Background()
	params := models.DefaultRunParams()

	ok, err := s.lock.AcquireNonBlocking(ctx, runlock.Key(params.SchoolTypeID, params.SchoolIDs))
	s.Require().NoError(err)
	s.Require().True(ok)

	s.addDonor(1, 250000)
	s.addEducator(1, 60000)

	_, err = s.engine.Run(ctx, params)
	s.ErrorIs(err, sentinel.ErrLockBusy)
	s.Empty(s.ledger.Transactions(), "a busy lock must abort before any allocation")

	// A run scoped to a different filter is not excluded.
	report, err := s.engine.Run(ctx, models.RunParams{
		SchoolTypeID:         2,
		MinTransactionAmount: params.MinTransactionAmount,
	})
	s.NoError(err)
	s.NotNil(report)
}

func (s *EngineSuite) TestLockReleasedAfterRun() {
	params := models.DefaultRunParams()
	s.run(params)
	s.run(params)
}

func (s *EngineSuite) TestHolidayShortCircuit() {
	hol := &stubCalendar{holiday: true}
	engine, err := New(s.donors, s.educators, s.ledger, s.lock,
		WithClock(func() time.Time { return s.now }),
		WithHolidayCalendar(hol),
	)
	s.Require().NoError(err)

	s.addDonor(1, 250000)
	s.addEducator(1, 60000)

	report, err := engine.Run(context.Background(), models.DefaultRunParams())
	s.NoError(err, "a holiday is a recognized no-op, not a failure")
	s.True(report.HolidaySkip)
	s.Empty(s.ledger.Transactions())

	// The lock must not stay held after the short circuit.
	hol.holiday = false
	_, err = engine.Run(context.Background(), models.DefaultRunParams())
	s.NoError(err)
}

// TestTierScenario is the reference walk-through: a 250000 pledge (tier cap
// 45000) against educators with remaining 80000 and 20000.
func (s *EngineSuite) TestTierScenario() {
	s.addDonor(1, 250000)
	ed1 := s.addEducator(1, 80000)
	ed2 := s.addEducator(2, 20000)

	params := models.DefaultRunParams()
	// Allow requests above the default global cap so the pool snapshot holds
	// the full 80000.
	params.GlobalMaxDonationAmount = 80000

	report := s.run(params)

	txs := s.ledger.Transactions()
	s.Require().Len(txs, 2)

	s.Equal(ed1.ID, txs[0].EducatorID)
	s.Equal(int64(45000), txs[0].Amount, "capped by donor tier, not educator remaining")
	s.Equal(ed1.AccountNumber, txs[0].AccountNumber)
	s.Equal(models.TransactionStatusNew, txs[0].Status)

	s.Equal(ed2.ID, txs[1].EducatorID)
	s.Equal(int64(20000), txs[1].Amount)

	s.Equal(2, report.TransactionsCreated)
	s.Equal(int64(65000), report.AmountAllocated)
}

func (s *EngineSuite) TestDonorOrdering() {
	// Bigger pledges go first; equal pledges fall back to ascending id. The
	// pool is wide enough that every donor gets at least one transaction.
	s.addDonor(5, 150000)
	s.addDonor(2, 150000)
	s.addDonor(9, 160000)
	for id := int64(1); id <= 6; id++ {
		s.addEducator(id, 60000)
	}

	s.run(models.DefaultRunParams())

	txs := s.ledger.Transactions()
	s.Require().NotEmpty(txs)
	s.Equal(int64(9), txs[0].DonorID)

	var order []int64
	seen := map[int64]bool{}
	for _, tx := range txs {
		if !seen[tx.DonorID] {
			seen[tx.DonorID] = true
			order = append(order, tx.DonorID)
		}
	}
	s.Equal([]int64{9, 2, 5}, order)
}

func (s *EngineSuite) TestCooldown() {
	d := s.addDonor(1, 250000)
	s.addEducator(1, 60000)

	s.ledger.Seed(models.Transaction{
		DonorID:       d.ID,
		EducatorID:    99,
		AccountNumber: validAccounts[0],
		Amount:        20000,
		Status:        models.TransactionStatusWaitingConfirmation,
		CreatedAt:     s.now.AddDate(0, 0, -5),
	})

	report := s.run(models.DefaultRunParams())
	s.Equal(1, report.DonorsSkipped)
	s.Len(s.ledger.Transactions(), 1, "only the seeded instruction exists")
}

func (s *EngineSuite) TestCooldownExpired() {
	d := s.addDonor(1, 250000)
	s.addEducator(1, 60000)

	// Outside the 10-day window; no longer blocks, but still draws down the
	// pledge.
	s.ledger.Seed(models.Transaction{
		DonorID:       d.ID,
		EducatorID:    99,
		AccountNumber: validAccounts[3],
		Amount:        20000,
		Status:        models.TransactionStatusWaitingConfirmation,
		CreatedAt:     s.now.AddDate(0, 0, -11),
	})

	s.run(models.DefaultRunParams())

	txs := s.ledger.Transactions()
	s.Require().Len(txs, 2)
	s.Equal(int64(45000), txs[1].Amount)
}

func (s *EngineSuite) TestPledgeExhausted() {
	d := s.addDonor(1, 110000)
	s.addEducator(1, 60000)

	s.ledger.Seed(models.Transaction{
		DonorID:       d.ID,
		EducatorID:    99,
		AccountNumber: validAccounts[0],
		Amount:        101000,
		Status:        models.TransactionStatusConfirmed,
		CreatedAt:     s.now.AddDate(0, 0, -30),
	})

	report := s.run(models.DefaultRunParams())
	s.Equal(1, report.DonorsSkipped, "remaining pledge 9000 is under the minimum")
	s.Len(s.ledger.Transactions(), 1)
}

func (s *EngineSuite) TestCancelledTransactionsDoNotCount() {
	d := s.addDonor(1, 110000)
	s.addEducator(1, 60000)

	s.ledger.Seed(models.Transaction{
		DonorID:       d.ID,
		EducatorID:    99,
		AccountNumber: validAccounts[0],
		Amount:        101000,
		Status:        models.TransactionStatusCancelled,
		CreatedAt:     s.now.AddDate(0, 0, -30),
	})

	s.run(models.DefaultRunParams())
	s.Len(s.ledger.Transactions(), 2, "a cancelled transaction frees the pledge again")
}

func (s *EngineSuite) TestAnnualCeiling() {
	d := s.addDonor(1, 250000) // tier cap 45000
	ed1 := s.addEducator(1, 60000)
	ed2 := s.addEducator(2, 60000)

	// 40000 already sent to ed1's account within the year: 40000 + 45000
	// breaches the 80000 ceiling even speculatively, so ed1 is skipped.
	s.ledger.Seed(models.Transaction{
		DonorID:       d.ID,
		EducatorID:    ed1.ID,
		AccountNumber: ed1.AccountNumber,
		Amount:        40000,
		Status:        models.TransactionStatusConfirmed,
		CreatedAt:     s.now.AddDate(0, 0, -100),
	})
	s.educators.SetAllocated(ed1.ID, 40000)

	s.run(models.DefaultRunParams())

	txs := s.ledger.Transactions()
	s.Require().Len(txs, 2)
	s.Equal(ed2.ID, txs[1].EducatorID, "allocation flows to the unconstrained educator")
}

func (s *EngineSuite) TestAnnualCeilingWindowExpires() {
	d := s.addDonor(1, 250000)
	ed1 := s.addEducator(1, 120000)

	// The same 40000, but sent over a year ago: outside the trailing window,
	// so it no longer constrains the pair (it still draws down the pledge).
	s.ledger.Seed(models.Transaction{
		DonorID:       d.ID,
		EducatorID:    ed1.ID,
		AccountNumber: ed1.AccountNumber,
		Amount:        40000,
		Status:        models.TransactionStatusConfirmed,
		CreatedAt:     s.now.AddDate(0, 0, -400),
	})
	s.educators.SetAllocated(ed1.ID, 40000)

	s.run(models.DefaultRunParams())

	txs := s.ledger.Transactions()
	s.Require().Len(txs, 2)
	s.Equal(int64(20000), txs[1].Amount, "remaining 60000-40000 caps the transaction")
}

func (s *EngineSuite) TestUniversityOnlyDonor() {
	d := models.Donor{
		ID: 1, Email: "uni@example.org", Active: true, EmailVerified: true,
		PledgeAmount: 250000, OnlyUniversity: true,
	}
	s.donors.Put(d)

	secondary := s.addEducator(1, 60000)
	uni := models.DamagedEducator{
		ID: 2, Name: "Faculty Educator", AccountNumber: validAccounts[1],
		PeriodID: activePeriod, SchoolID: 2, SchoolType: models.SchoolTypeUniversity,
		Status: models.EducatorStatusNew, RequestedAmount: 60000,
	}
	s.educators.Put(uni)

	s.run(models.DefaultRunParams())

	txs := s.ledger.Transactions()
	s.Require().Len(txs, 1)
	s.Equal(uni.ID, txs[0].EducatorID)
	s.NotEqual(secondary.ID, txs[0].EducatorID)
}

func (s *EngineSuite) TestInvalidAccountExcluded() {
	s.addDonor(1, 250000)

	bad := models.DamagedEducator{
		ID: 1, Name: "Bad Account", AccountNumber: "840000000000000076",
		PeriodID: activePeriod, SchoolID: 1, SchoolType: models.SchoolTypeSecondary,
		Status: models.EducatorStatusNew, RequestedAmount: 60000,
	}
	s.educators.Put(bad)

	report := s.run(models.DefaultRunParams())
	s.Zero(report.TransactionsCreated, "reserved-prefix accounts never enter the pool")
}

func (s *EngineSuite) TestCapBelowMinimumSkipsPairing() {
	// With a raised minimum, the tier cap itself can sit below it; the
	// pairing is skipped but the educator stays in the pool.
	s.addDonor(1, 120000) // tier cap 25000
	s.addEducator(1, 60000)

	params := models.DefaultRunParams()
	params.MinTransactionAmount = 30000

	report := s.run(params)
	s.Zero(report.TransactionsCreated)
}

func (s *EngineSuite) TestPersistenceFailureAbortsDonorOnly() {
	s.addDonor(1, 400000) // tier cap 60000
	s.addDonor(2, 150000) // tier cap 35000
	s.addEducator(1, 60000)
	s.addEducator(2, 60000)
	s.addEducator(3, 60000)

	// Every write after the first fails: donor 1 keeps its committed
	// transaction and stops; later donors fail their first write and create
	// nothing. The run itself still completes.
	s.ledger.FailAfter(1)

	report := s.run(models.DefaultRunParams())

	txs := s.ledger.Transactions()
	s.Require().Len(txs, 1, "the committed write stands, the failed one aborts the donor")
	s.Equal(int64(1), txs[0].DonorID)
	s.Equal(1, report.TransactionsCreated)
}

func (s *EngineSuite) TestNotifierCalledPerDonorWithCreations() {
	s.addDonor(1, 250000)
	s.addDonor(2, 150000)
	s.addEducator(1, 60000)

	s.run(models.DefaultRunParams())

	// Donor 1 takes 45000, leaving 15000 in the pool for donor 2.
	notes := s.notifier.Notifications()
	s.Require().Len(notes, 2)
	s.Equal(int64(1), notes[0].DonorID)
	s.Equal(int64(45000), notes[0].TotalAmount)
	s.Equal(int64(2), notes[1].DonorID)
	s.Equal(int64(15000), notes[1].TotalAmount)
}

func (s *EngineSuite) TestNotificationFailureDoesNotAffectLedger() {
	s.addDonor(1, 250000)
	s.addEducator(1, 60000)

	engine, err := New(s.donors, s.educators, s.ledger, s.lock,
		WithClock(func() time.Time { return s.now }),
		WithNotifier(failingNotifier{}),
	)
	s.Require().NoError(err)

	report, err := engine.Run(context.Background(), models.DefaultRunParams())
	s.NoError(err, "notification failure is swallowed")
	s.Equal(1, report.TransactionsCreated)
	s.Len(s.ledger.Transactions(), 1)
}

func (s *EngineSuite) TestRunInvariants() {
	// A busy mixed run: no transaction below the minimum, no educator drawn
	// past its snapshot remaining, no donor past its pledge.
	s.addDonor(1, 500000)
	s.addDonor(2, 210000)
	s.addDonor(3, 120000)
	for id := int64(1); id <= 6; id++ {
		s.addEducator(id, 15000*id)
	}

	s.run(models.DefaultRunParams())

	perEducator := map[int64]int64{}
	perDonor := map[int64]int64{}
	for _, tx := range s.ledger.Transactions() {
		s.GreaterOrEqual(tx.Amount, models.DefaultMinTransactionAmount)
		perEducator[tx.EducatorID] += tx.Amount
		perDonor[tx.DonorID] += tx.Amount
	}

	for id, sum := range perEducator {
		snapshot := min64(15000*id, models.DefaultGlobalMaxDonationAmount)
		s.LessOrEqual(sum, snapshot, "educator %d overdrawn", id)
	}

	pledges := map[int64]int64{1: 500000, 2: 210000, 3: 120000}
	for id, sum := range perDonor {
		s.LessOrEqual(sum, pledges[id], "donor %d overdrawn", id)
	}
}

type stubCalendar struct {
	holiday bool
}

func (c *stubCalendar) IsHoliday(time.Time) bool { return c.holiday }

type failingNotifier struct{}

func (failingNotifier) TransactionsCreated(context.Context, models.Donor, int, int64) error {
	return fmt.Errorf("smtp relay down")
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
