package donor

import (
	"context"
	"sort"
	"sync"

	"solifund/internal/allocation/models"
)

// MemoryStore is an in-memory donor provider used in tests and local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	donors map[int64]models.Donor
}

// NewMemory constructs an empty in-memory donor store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		donors: make(map[int64]models.Donor),
	}
}

// Put inserts or replaces a donor.
func (s *MemoryStore) Put(d models.Donor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donors[d.ID] = d
}

// EligibleDonors returns active, verified donors at or above the eligibility
// floor, ordered by pledge descending, ties by ascending id.
func (s *MemoryStore) EligibleDonors(_ context.Context) ([]models.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Donor, 0, len(s.donors))
	for _, d := range s.donors {
		if !d.Active || !d.EmailVerified || d.PledgeAmount < models.MinEligiblePledge {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PledgeAmount != out[j].PledgeAmount {
			return out[i].PledgeAmount > out[j].PledgeAmount
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
