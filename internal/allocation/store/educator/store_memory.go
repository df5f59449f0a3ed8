package educator

import (
	"context"
	"slices"
	"sort"
	"sync"

	"solifund/internal/allocation/models"
	"solifund/internal/allocation/ports"
)

// MemoryStore is an in-memory educator provider used in tests and local runs.
// Educators are seeded with their raw requested amount; the store derives
// RemainingAmount the same way the SQL provider does.
type MemoryStore struct {
	mu             sync.RWMutex
	educators      map[int64]models.DamagedEducator
	allocated      map[int64]int64
	activePeriodID int64
	schoolTypes    map[int64]models.SchoolType
}

// NewMemory constructs an in-memory educator store for the given active
// funding period.
func NewMemory(activePeriodID int64) *MemoryStore {
	return &MemoryStore{
		educators:      make(map[int64]models.DamagedEducator),
		allocated:      make(map[int64]int64),
		activePeriodID: activePeriodID,
		schoolTypes:    make(map[int64]models.SchoolType),
	}
}

// Put inserts or replaces an educator.
func (s *MemoryStore) Put(e models.DamagedEducator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.educators[e.ID] = e
	s.schoolTypes[e.SchoolID] = e.SchoolType
}

// SetAllocated records the educator's confirmed-or-pending transaction sum,
// normally derived from the ledger.
func (s *MemoryStore) SetAllocated(educatorID int64, sum int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocated[educatorID] = sum
}

// EligibleEducators returns status-new educators from the active period whose
// derived remaining amount is positive, honoring the filter's school type and
// school id restrictions.
func (s *MemoryStore) EligibleEducators(_ context.Context, filter ports.EducatorFilter) ([]models.DamagedEducator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	globalMax := filter.GlobalMaxDonationAmount
	if globalMax <= 0 {
		globalMax = models.DefaultGlobalMaxDonationAmount
	}

	var out []models.DamagedEducator
	for _, e := range s.educators {
		if e.Status != models.EducatorStatusNew || e.PeriodID != s.activePeriodID {
			continue
		}
		if filter.SchoolTypeID != 0 && schoolTypeID(e.SchoolType) != filter.SchoolTypeID {
			continue
		}
		if len(filter.SchoolIDs) > 0 && !slices.Contains(filter.SchoolIDs, e.SchoolID) {
			continue
		}

		capped := e.RequestedAmount
		if capped > globalMax {
			capped = globalMax
		}
		e.RemainingAmount = capped - s.allocated[e.ID]
		if e.RemainingAmount <= 0 {
			continue
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// schoolTypeID mirrors the numeric school-type ids used by the SQL schema.
func schoolTypeID(t models.SchoolType) int64 {
	switch t {
	case models.SchoolTypePrimary:
		return 1
	case models.SchoolTypeSecondary:
		return 2
	case models.SchoolTypeUniversity:
		return 3
	}
	return 0
}
