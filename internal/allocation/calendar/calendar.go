// Package calendar implements the holiday check that turns an allocation run
// into a recognized no-op.
package calendar

import "time"

const dateLayout = "2006-01-02"

// Calendar holds the configured holiday dates. The zero value has no
// holidays.
type Calendar struct {
	dates map[string]bool
}

// FromDates builds a calendar from ISO dates (YYYY-MM-DD). Unparseable
// entries are ignored so a typo in configuration cannot block every run.
func FromDates(dates []string) *Calendar {
	c := &Calendar{dates: make(map[string]bool, len(dates))}
	for _, d := range dates {
		if _, err := time.Parse(dateLayout, d); err == nil {
			c.dates[d] = true
		}
	}
	return c
}

// IsHoliday reports whether t falls on a configured holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	if c == nil || len(c.dates) == 0 {
		return false
	}
	return c.dates[t.Format(dateLayout)]
}
