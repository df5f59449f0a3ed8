// Package policy maps a donor's total pledge to the maximum amount permitted
// in a single transaction. The table is a step function, monotonic
// non-decreasing in the pledge.
package policy

import "solifund/internal/allocation/models"

// tier is one threshold step: pledges up to and including Max get Cap.
type tier struct {
	Max int64
	Cap int64
}

// Amounts are minor currency units.
var tiers = []tier{
	{Max: 120000, Cap: 25000},
	{Max: 200000, Cap: 35000},
	{Max: 300000, Cap: 45000},
}

// CapFor returns the per-transaction cap for the given pledge amount. Pledges
// above the last threshold are capped at the global maximum donation amount.
func CapFor(pledgeAmount int64) int64 {
	for _, t := range tiers {
		if pledgeAmount <= t.Max {
			return t.Cap
		}
	}
	return models.DefaultGlobalMaxDonationAmount
}
