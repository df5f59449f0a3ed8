package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"solifund/internal/allocation/models"
)

// MemoryStore is an in-memory ledger used in tests and local runs.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions []models.Transaction
	nextID       int64

	// failAfter, when positive, makes Create fail once that many writes have
	// succeeded. Exercises the persistence-failure path in engine tests.
	failAfter int
}

// NewMemory constructs an empty in-memory ledger.
func NewMemory() *MemoryStore {
	return &MemoryStore{nextID: 1, failAfter: -1}
}

// FailAfter arms the store to reject the n+1th write and every write after.
func (s *MemoryStore) FailAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAfter = n
}

// Create appends a transaction, assigning its id.
func (s *MemoryStore) Create(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAfter >= 0 && len(s.transactions) >= s.failAfter {
		return fmt.Errorf("ledger write rejected")
	}

	tx.ID = s.nextID
	s.nextID++
	s.transactions = append(s.transactions, *tx)
	return nil
}

// Transactions returns a copy of everything persisted so far.
func (s *MemoryStore) Transactions() []models.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// Seed inserts a historical transaction without touching the failure arm.
func (s *MemoryStore) Seed(tx models.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == 0 {
		tx.ID = s.nextID
	}
	if tx.ID >= s.nextID {
		s.nextID = tx.ID + 1
	}
	s.transactions = append(s.transactions, tx)
}

func (s *MemoryStore) AllocatedTotal(_ context.Context, donorID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum int64
	for _, tx := range s.transactions {
		if tx.DonorID == donorID && tx.Status.Counted() {
			sum += tx.Amount
		}
	}
	return sum, nil
}

func (s *MemoryStore) HasPendingSince(_ context.Context, donorID int64, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.transactions {
		if tx.DonorID != donorID || tx.CreatedAt.Before(since) {
			continue
		}
		if tx.Status == models.TransactionStatusNew || tx.Status == models.TransactionStatusWaitingConfirmation {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) AllocatedToAccountSince(_ context.Context, donorID int64, accountNumber string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum int64
	for _, tx := range s.transactions {
		if tx.DonorID == donorID && tx.AccountNumber == accountNumber &&
			tx.Status.Counted() && !tx.CreatedAt.Before(since) {
			sum += tx.Amount
		}
	}
	return sum, nil
}
