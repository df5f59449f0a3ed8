// Package notifier tells donors that new payment instructions were created
// for them. Notification is fire-and-forget from the engine's point of view:
// a failure is logged and swallowed, never affecting the ledger.
package notifier

import (
	"context"
	"sync"

	"solifund/internal/allocation/models"
)

// Memory records notifications for tests.
type Memory struct {
	mu            sync.Mutex
	notifications []Notification
}

// Notification is one recorded notifier call.
type Notification struct {
	DonorID     int64
	Count       int
	TotalAmount int64
}

// NewMemory constructs an empty recording notifier.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) TransactionsCreated(_ context.Context, donor models.Donor, count int, totalAmount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, Notification{
		DonorID:     donor.ID,
		Count:       count,
		TotalAmount: totalAmount,
	})
	return nil
}

// Notifications returns everything recorded so far.
func (m *Memory) Notifications() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}
