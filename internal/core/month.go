// Package core holds the savings-tracker domain types and validation.
//
// This file contains the MonthLabel type: the "yyyy-MM" UTC calendar
// month key that execution records and monthly plans hang off.
package core

import (
	"fmt"
	"time"
)

const monthLabelLayout = "2006-01"

// MonthLabel is a calendar month key in "yyyy-MM" form, always UTC.
type MonthLabel string

// NewMonthLabel builds the label for the month containing t.
func NewMonthLabel(t time.Time) MonthLabel {
	return MonthLabel(t.UTC().Format(monthLabelLayout))
}

// Validate checks the label parses as a real "yyyy-MM" month.
func (m MonthLabel) Validate() error {
	if _, err := time.Parse(monthLabelLayout, string(m)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMonthLabel, string(m))
	}
	return nil
}

// Time returns the first instant of the month in UTC. Invalid labels
// return the zero time; callers that care should Validate first.
func (m MonthLabel) Time() time.Time {
	t, err := time.Parse(monthLabelLayout, string(m))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Next returns the label of the following month.
func (m MonthLabel) Next() MonthLabel {
	return MonthLabel(m.Time().AddDate(0, 1, 0).Format(monthLabelLayout))
}

// MonthsUntil counts whole months from m up to and including target.
// Returns 0 when target is not after m.
func (m MonthLabel) MonthsUntil(target MonthLabel) int {
	from, to := m.Time(), target.Time()
	if !to.After(from) {
		return 0
	}
	months := 0
	for cur := from; cur.Before(to); cur = cur.AddDate(0, 1, 0) {
		months++
	}
	return months
}

func (m MonthLabel) String() string { return string(m) }
