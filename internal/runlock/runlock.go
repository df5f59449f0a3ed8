// Package runlock provides the non-blocking exclusive lock that keeps two
// overlapping allocation runs from double-allocating against the same
// educator pool. Acquisition never waits: a busy lock means the caller aborts
// with no partial work.
package runlock

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Locker is the mutual-exclusion capability. Any backing mechanism is
// acceptable as long as acquisition is non-blocking and scoped by key.
type Locker interface {
	// AcquireNonBlocking attempts to take the lock. It returns false, without
	// waiting, when the lock is already held elsewhere.
	AcquireNonBlocking(ctx context.Context, key string) (bool, error)

	// Release frees a lock previously acquired by this locker. Releasing a
	// lock held by someone else is a no-op.
	Release(ctx context.Context, key string) error
}

// Key derives the lock scope from the run's filter parameters, so runs over
// disjoint filters may proceed concurrently while identical filters exclude
// each other.
func Key(schoolTypeID int64, schoolIDs []int64) string {
	ids := make([]string, 0, len(schoolIDs))
	for _, id := range schoolIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return fmt.Sprintf("allocate:%d:%s", schoolTypeID, strings.Join(ids, ","))
}
