// Package lifecycle classifies subscriptions by end date and derives end
// dates from plan durations. Everything here is pure; "today" is injected.
//
// Calendar dates are represented as time.Time at UTC midnight.
package lifecycle

import (
	"strconv"
	"strings"
	"time"

	"github.com/fatflowers/iptv-crm/pkg/errs"
	"github.com/fatflowers/iptv-crm/pkg/types"
)

// DefaultExpiringSoonDays is the canonical reminder horizon: it matches the
// widest reminder the sweep sends (7 days before expiry).
const DefaultExpiringSoonDays = 7

// Engine holds the classification policy.
type Engine struct {
	expiringSoonDays int
	loc              *time.Location
	now              func() time.Time
}

// NewEngine builds an engine. A subscription with daysLeft <= expiringSoonDays
// (and not expired) is expiring_soon. loc decides which calendar day "now" is.
func NewEngine(expiringSoonDays int, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if expiringSoonDays < 0 {
		expiringSoonDays = 0
	}
	return &Engine{expiringSoonDays: expiringSoonDays, loc: loc, now: time.Now}
}

// WithClock returns a copy of e reading the current time from now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	cp := *e
	cp.now = now
	return &cp
}

func (e *Engine) ExpiringSoonDays() int { return e.expiringSoonDays }

// Today is the current calendar date in the engine's location.
func (e *Engine) Today() time.Time {
	return DateOf(e.now().In(e.loc))
}

// Classify returns the status of a subscription ending on end, seen from ref.
func (e *Engine) Classify(end, ref time.Time) (types.SubscriptionStatus, error) {
	if end.IsZero() {
		return "", errs.Validation("end_date", "", "missing")
	}
	if ref.IsZero() {
		return "", errs.Validation("reference_date", "", "missing")
	}
	days := DaysUntil(end, ref)
	switch {
	case days < 0:
		return types.SubscriptionStatusExpired, nil
	case days <= e.expiringSoonDays:
		return types.SubscriptionStatusExpiringSoon, nil
	default:
		return types.SubscriptionStatusActive, nil
	}
}

// ClassifyNow classifies against Today.
func (e *Engine) ClassifyNow(end time.Time) (types.SubscriptionStatus, error) {
	return e.Classify(end, e.Today())
}

// ClassifyPtr classifies a nullable end date. A subscription without an end
// date cannot be classified and reports a validation error.
func (e *Engine) ClassifyPtr(end *time.Time, ref time.Time) (types.SubscriptionStatus, error) {
	if end == nil {
		return e.Classify(time.Time{}, ref)
	}
	return e.Classify(*end, ref)
}

// DateOf drops the time of day, keeping t's calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil is the number of calendar days from ref to end (negative when
// end is in the past).
func DaysUntil(end, ref time.Time) int {
	return int(DateOf(end).Sub(DateOf(ref)) / (24 * time.Hour))
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths adds calendar months, clamping the day to the end of the target
// month: Jan 31 + 1 month is Feb 28/29, never March.
func AddMonths(d time.Time, months int) time.Time {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// ComputeEndDate returns the last day of service for a plan starting on
// start: start + months calendar months - 1 day.
func ComputeEndDate(start time.Time, months int) (time.Time, error) {
	if start.IsZero() {
		return time.Time{}, errs.Validation("start_date", "", "missing")
	}
	if months < 1 {
		return time.Time{}, errs.Validation("plan_months", strconv.Itoa(months), "must be at least 1")
	}
	return AddMonths(DateOf(start), months).AddDate(0, 0, -1), nil
}

// RenewalStart is the first day of a renewal period: the day after the
// current end, or today when the subscription has already lapsed.
func RenewalStart(currentEnd *time.Time, today time.Time) time.Time {
	today = DateOf(today)
	if currentEnd == nil {
		return today
	}
	next := DateOf(*currentEnd).AddDate(0, 0, 1)
	if next.Before(today) {
		return today
	}
	return next
}

// dateLayouts are tried in order. Slashed and dashed day-first forms follow
// the Italian convention used in the reseller's spreadsheets.
var dateLayouts = []string{
	time.DateOnly,
	"02/01/2006",
	"2/1/2006",
	"2006/01/02",
	"02-01-2006",
	"02.01.2006",
	time.RFC3339,
	time.DateTime,
	"2006-01-02T15:04:05",
}

// ParseDate parses a calendar date in any of the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errs.Validation("date", "", "empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return time.Time{}, errs.Validation("date", s, "unrecognized date format")
}

// FormatDate renders a calendar date as YYYY-MM-DD, or "" for nil.
func FormatDate(d *time.Time) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}
