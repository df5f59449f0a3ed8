package educator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solifund/internal/allocation/models"
	"solifund/internal/allocation/ports"
)

func seedEducator(id int64, periodID int64, requested int64) models.DamagedEducator {
	return models.DamagedEducator{
		ID:              id,
		AccountNumber:   "160000000000000076",
		PeriodID:        periodID,
		SchoolID:        id,
		SchoolType:      models.SchoolTypeSecondary,
		Status:          models.EducatorStatusNew,
		RequestedAmount: requested,
	}
}

func TestMemoryStoreEligibleEducators(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(1)

	store.Put(seedEducator(1, 1, 50000))
	store.Put(seedEducator(2, 2, 50000)) // inactive period
	deleted := seedEducator(3, 1, 50000)
	deleted.Status = models.EducatorStatusDeleted
	store.Put(deleted)

	t.Run("filters period and status", func(t *testing.T) {
		out, err := store.EligibleEducators(ctx, ports.EducatorFilter{})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, int64(1), out[0].ID)
	})

	t.Run("caps the requested amount at the global maximum", func(t *testing.T) {
		store.Put(seedEducator(4, 1, 90000))
		out, err := store.EligibleEducators(ctx, ports.EducatorFilter{GlobalMaxDonationAmount: 60000})
		require.NoError(t, err)
		for _, e := range out {
			if e.ID == 4 {
				assert.Equal(t, int64(60000), e.RemainingAmount)
			}
		}
	})

	t.Run("subtracts the allocated sum", func(t *testing.T) {
		store.SetAllocated(1, 35000)
		out, err := store.EligibleEducators(ctx, ports.EducatorFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(15000), out[0].RemainingAmount)
	})

	t.Run("drops fully funded educators", func(t *testing.T) {
		store.SetAllocated(1, 50000)
		out, err := store.EligibleEducators(ctx, ports.EducatorFilter{})
		require.NoError(t, err)
		for _, e := range out {
			assert.NotEqual(t, int64(1), e.ID)
		}
	})

	t.Run("school id filter", func(t *testing.T) {
		out, err := store.EligibleEducators(ctx, ports.EducatorFilter{SchoolIDs: []int64{4}})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, int64(4), out[0].ID)
	})
}
