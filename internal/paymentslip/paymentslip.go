// Package paymentslip encodes standardized payment-QR (IPS) payload strings
// from transaction fields. The encoder is deterministic and has no side
// effects; rendering the QR image is the caller's concern.
package paymentslip

import (
	"fmt"
	"strings"
)

// Field defaults per the IPS payment slip standard.
const (
	DefaultIdentificationCode = "PR"
	DefaultVersion            = "01"
	DefaultCharacterSet       = "1"
	DefaultCurrencyCode       = "RSD"
)

// fieldSeparator is a literal two-character in-field sequence used inside the
// payee block. It is not a line terminator.
const fieldSeparator = "\n\r"

// Slip carries the fields of one payment slip. BankAccountNumber, PayeeName,
// PayeeCityName, Amount, PayerName and PaymentPurpose are required; the rest
// are optional or defaulted.
type Slip struct {
	IdentificationCode string
	Version            string
	CharacterSet       string
	CurrencyCode       string

	BankAccountNumber string
	PayeeName         string
	PayeeCityName     string
	// Amount is the pre-formatted amount text, e.g. "1295,00".
	Amount         string
	PayerName      string
	PaymentPurpose string

	// PaymentCode emits an SF: segment before S: when set.
	PaymentCode string
	// ReferenceCode emits an RO: segment after S: when set.
	ReferenceCode string
}

// MissingArgumentError reports a required slip field that was not provided.
type MissingArgumentError struct {
	Field string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("payment slip: missing required field %q", e.Field)
}

// Encode produces the pipe-delimited IPS QR payload. It fails before
// producing any partial output if a required field is absent.
func Encode(s Slip) (string, error) {
	required := []struct {
		name  string
		value string
	}{
		{"bankAccountNumber", s.BankAccountNumber},
		{"payeeName", s.PayeeName},
		{"payeeCityName", s.PayeeCityName},
		{"amount", s.Amount},
		{"payerName", s.PayerName},
		{"paymentPurpose", s.PaymentPurpose},
	}
	for _, f := range required {
		if f.value == "" {
			return "", &MissingArgumentError{Field: f.name}
		}
	}

	identificationCode := s.IdentificationCode
	if identificationCode == "" {
		identificationCode = DefaultIdentificationCode
	}
	version := s.Version
	if version == "" {
		version = DefaultVersion
	}
	characterSet := s.CharacterSet
	if characterSet == "" {
		characterSet = DefaultCharacterSet
	}
	currencyCode := s.CurrencyCode
	if currencyCode == "" {
		currencyCode = DefaultCurrencyCode
	}

	var b strings.Builder
	b.WriteString("K:" + identificationCode)
	b.WriteString("|V:" + version)
	b.WriteString("|C:" + characterSet)
	b.WriteString("|R:" + s.BankAccountNumber)
	b.WriteString("|N:" + s.PayeeName + fieldSeparator + "BB" + fieldSeparator + s.PayeeCityName)
	b.WriteString("|I:" + currencyCode + s.Amount)
	b.WriteString("|P:" + s.PayerName)
	if s.PaymentCode != "" {
		b.WriteString("|SF:" + s.PaymentCode)
	}
	b.WriteString("|S:" + s.PaymentPurpose)
	if s.ReferenceCode != "" {
		b.WriteString("|RO:" + s.ReferenceCode)
	}
	return b.String(), nil
}

// FormatAmount renders minor currency units as IPS amount text with a decimal
// comma, e.g. 129500 -> "1295,00".
func FormatAmount(minorUnits int64) string {
	sign := ""
	if minorUnits < 0 {
		sign = "-"
		minorUnits = -minorUnits
	}
	return fmt.Sprintf("%s%d,%02d", sign, minorUnits/100, minorUnits%100)
}
