// Package pool holds the in-memory working set of damaged educators still
// needing funds during one allocation run. The pool is an owned value passed
// through the engine call chain; it is single-writer, single-reader memory and
// needs no internal locking.
package pool

import (
	"fmt"
	"sort"

	"solifund/internal/allocation/models"
)

type entry struct {
	educator  models.DamagedEducator
	remaining int64
	dropped   bool
}

// Pool is a ranked, consumable working set keyed by educator id. The ranking
// is computed once at construction, from remaining amounts at run start, and
// is never re-sorted as amounts shrink.
type Pool struct {
	order   []int64
	entries map[int64]*entry
	minTx   int64
}

// New builds a pool from an educator snapshot. Educators that are not in
// status new, or whose remaining amount is already below the minimum
// transaction amount, never enter the pool. Entries are ordered by remaining
// amount descending, ties broken by ascending id.
func New(educators []models.DamagedEducator, minTransactionAmount int64) *Pool {
	p := &Pool{
		entries: make(map[int64]*entry, len(educators)),
		minTx:   minTransactionAmount,
	}

	for _, e := range educators {
		if e.Status != models.EducatorStatusNew {
			continue
		}
		if e.RemainingAmount < minTransactionAmount {
			continue
		}
		p.entries[e.ID] = &entry{educator: e, remaining: e.RemainingAmount}
		p.order = append(p.order, e.ID)
	}

	sort.Slice(p.order, func(i, j int) bool {
		a, b := p.entries[p.order[i]], p.entries[p.order[j]]
		if a.remaining != b.remaining {
			return a.remaining > b.remaining
		}
		return a.educator.ID < b.educator.ID
	})

	return p
}

// Len returns the number of live entries.
func (p *Pool) Len() int {
	n := 0
	for _, e := range p.entries {
		if !e.dropped {
			n++
		}
	}
	return n
}

// Educators returns the live entries in the pool's fixed snapshot order.
func (p *Pool) Educators() []models.DamagedEducator {
	out := make([]models.DamagedEducator, 0, len(p.order))
	for _, id := range p.order {
		if e := p.entries[id]; !e.dropped {
			out = append(out, e.educator)
		}
	}
	return out
}

// Remaining returns the current remaining amount for an educator, or 0 if the
// educator is not in the pool or has been dropped.
func (p *Pool) Remaining(educatorID int64) int64 {
	e, ok := p.entries[educatorID]
	if !ok || e.dropped {
		return 0
	}
	return e.remaining
}

// Consume decrements an educator's remaining amount. If the result falls
// below the minimum transaction amount the entry is removed for the rest of
// the run; the residual dust is intentionally abandoned.
func (p *Pool) Consume(educatorID int64, amount int64) error {
	e, ok := p.entries[educatorID]
	if !ok || e.dropped {
		return fmt.Errorf("consume: educator %d not in pool", educatorID)
	}
	if amount <= 0 || amount > e.remaining {
		return fmt.Errorf("consume: amount %d out of range for educator %d (remaining %d)", amount, educatorID, e.remaining)
	}

	e.remaining -= amount
	if e.remaining < p.minTx {
		e.dropped = true
	}
	return nil
}

// Drop removes an educator from the pool for the remainder of the run.
func (p *Pool) Drop(educatorID int64) {
	if e, ok := p.entries[educatorID]; ok {
		e.dropped = true
	}
}
