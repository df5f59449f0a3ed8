package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"unicode"

	"solifund/internal/allocation/models"
	"solifund/internal/paymentslip"
)

// SMTPConfig carries the mail relay settings.
type SMTPConfig struct {
	Addr string // host:port
	From string
	// Auth is optional; nil means an unauthenticated relay.
	Auth smtp.Auth
}

// SMTP sends a plain-text mail per donor with at least one created
// transaction, asking them to execute the new payment instructions.
type SMTP struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP constructs an SMTP notifier.
func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{cfg: cfg, send: smtp.SendMail}
}

func (n *SMTP) TransactionsCreated(_ context.Context, donor models.Donor, count int, totalAmount int64) error {
	if donor.Email == "" {
		return fmt.Errorf("donor %d has no email address", donor.ID)
	}

	subject := "New payment instructions are waiting for you"
	body := fmt.Sprintf(
		"Dear %s,\r\n\r\n"+
			"%d new payment instruction(s) totalling %s RSD were prepared from your pledge.\r\n"+
			"Please log in to review and execute them.\r\n",
		salutation(donor.Email), count, paymentslip.FormatAmount(totalAmount),
	)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", donor.Email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	if err := n.send(n.cfg.Addr, n.cfg.Auth, n.cfg.From, []string{donor.Email}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send notification to donor %d: %w", donor.ID, err)
	}
	return nil
}

// salutation derives a display name from the local part of the address.
func salutation(email string) string {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "donor"
	}

	for i, p := range parts {
		runes := []rune(p)
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
