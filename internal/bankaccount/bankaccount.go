// Package bankaccount validates payout account numbers with the domestic
// MOD-97 check-digit scheme. Validation is a total function; an invalid
// number is an expected input, never an error.
package bankaccount

import "fmt"

// Result classifies a validation outcome.
type Result int

const (
	Valid Result = iota
	// Malformed: empty input or a non-digit character.
	Malformed
	// ReservedPrefix: treasury/special ranges, rejected regardless of checksum.
	ReservedPrefix
	// ChecksumMismatch: the trailing two digits do not match the MOD-97 check
	// value of the preceding digits.
	ChecksumMismatch
)

// OK reports whether the account number passed validation.
func (r Result) OK() bool {
	return r == Valid
}

func (r Result) String() string {
	switch r {
	case Valid:
		return "valid"
	case Malformed:
		return "malformed"
	case ReservedPrefix:
		return "reserved prefix"
	case ChecksumMismatch:
		return "checksum mismatch"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// reservedPrefixes are account ranges that never receive donations.
var reservedPrefixes = []string{"840", "150"}

// Validate checks an account number: digits only, no reserved prefix, and the
// last two characters must equal the MOD-97 check value of everything before
// them.
func Validate(accountNumber string) Result {
	// The shortest meaningful input is one digit plus two check digits.
	if len(accountNumber) < 3 {
		return Malformed
	}
	for i := 0; i < len(accountNumber); i++ {
		if accountNumber[i] < '0' || accountNumber[i] > '9' {
			return Malformed
		}
	}

	for _, prefix := range reservedPrefixes {
		if accountNumber[:3] == prefix {
			return ReservedPrefix
		}
	}

	body := accountNumber[:len(accountNumber)-2]
	want := fmt.Sprintf("%02d", checkValue(body))
	if want != accountNumber[len(accountNumber)-2:] {
		return ChecksumMismatch
	}
	return Valid
}

// IsValid is a convenience wrapper for callers that only need a boolean.
func IsValid(accountNumber string) bool {
	return Validate(accountNumber).OK()
}

// checkValue runs the weighted MOD-97 recurrence over the digits right to
// left: acc starts at 0 with base 100; each digit contributes base*digit mod
// 97 and the base advances by a decimal shift mod 97. The check value is
// 98 - acc.
func checkValue(digits string) int {
	acc, base := 0, 100
	for i := len(digits) - 1; i >= 0; i-- {
		acc = (acc + base*int(digits[i]-'0')) % 97
		base = (base * 10) % 97
	}
	return 98 - acc
}
