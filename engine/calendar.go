/*
calendar.go - Dates, holidays, and leave-day counting

PURPOSE:
  Everything in this system is keyed by calendar days: requests span
  date ranges, accrual runs are keyed by month, and the sandwich rule
  decides which off-days inside a range count as leave.

DAY COUNTING (sandwich rule):
  A leave span is counted by walking [from, to]:
  - Working days always count.
  - Weekend/holiday runs at the edges of the span never count; an
    employee who books Fri-Mon is not charged for a leading Saturday.
  - Off-days strictly between the first and last working day of the
    span count only when the policy's sandwich rule is enabled.

  Example, Fri 2026-02-06 .. Mon 2026-02-09:
    sandwich on:  Fri + Sat + Sun + Mon = 4 days
    sandwich off: Fri + Mon             = 2 days

SEE ALSO:
  - request.go: Uses CountLeaveDays at submission
  - policy.go: sandwich_enabled toggle
*/
package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Day-granularity point in time
// =============================================================================

// Date is a calendar day in UTC. All request and accrual arithmetic is
// day-granular; wall-clock times appear only in audit timestamps.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Message: fmt.Sprintf("invalid date %q (use YYYY-MM-DD)", s)}
	}
	return Date{Time: t}, nil
}

func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Comparison
func (d Date) Before(o Date) bool        { return d.normalize().Before(o.normalize()) }
func (d Date) After(o Date) bool         { return d.normalize().After(o.normalize()) }
func (d Date) Equal(o Date) bool         { return d.normalize().Equal(o.normalize()) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{Time: d.normalize().AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{Time: d.normalize().AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int             { return d.Time.Year() }
func (d Date) Month() time.Month     { return d.Time.Month() }
func (d Date) Day() int              { return d.Time.Day() }
func (d Date) Weekday() time.Weekday { return d.normalize().Weekday() }
func (d Date) IsZero() bool          { return d.Time.IsZero() }
func (d Date) IsSunday() bool        { return d.Weekday() == time.Sunday }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// DaysBetween returns the number of days from a to b (b after a => positive).
func DaysBetween(a, b Date) int {
	return int(b.normalize().Sub(a.normalize()).Hours() / 24)
}

// =============================================================================
// MONTH - Accrual run key
// =============================================================================

// Month identifies one accrual period, e.g. "2026-01".
type Month struct {
	Year  int
	Month time.Month
}

func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, &ValidationError{Field: "month", Message: fmt.Sprintf("invalid month %q (use YYYY-MM)", s)}
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) Start() Date     { return NewDate(m.Year, m.Month, 1) }
func (m Month) End() Date       { return m.Start().AddMonths(1).AddDays(-1) }
func (m Month) String() string  { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }
func (m Month) Next() Month {
	d := m.Start().AddMonths(1)
	return Month{Year: d.Year(), Month: d.Month()}
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// Holiday is a company holiday. Inactive holidays are kept for history
// but do not affect day counting or comp-off eligibility.
type Holiday struct {
	ID     int64
	Date   Date
	Name   string
	Active bool
}

// HolidayCalendar answers whether a date is an active holiday.
type HolidayCalendar interface {
	IsHoliday(d Date) bool
}

// MapCalendar is a HolidayCalendar over a fixed holiday list.
type MapCalendar struct {
	days map[string]bool
}

func NewMapCalendar(holidays []Holiday) *MapCalendar {
	days := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		if h.Active {
			days[h.Date.String()] = true
		}
	}
	return &MapCalendar{days: days}
}

func (c *MapCalendar) IsHoliday(d Date) bool { return c.days[d.String()] }

// NoHolidays is a calendar with no holidays, for tests and defaults.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(Date) bool { return false }

// =============================================================================
// LEAVE DAY COUNTING
// =============================================================================

// CountLeaveDays walks [from, to] and returns the number of days charged
// as leave. See the package comment for the sandwich semantics.
func CountLeaveDays(from, to Date, cal HolidayCalendar, sandwich bool) int {
	if to.Before(from) {
		return 0
	}
	if cal == nil {
		cal = NoHolidays{}
	}

	offDay := func(d Date) bool { return d.IsWeekend() || cal.IsHoliday(d) }

	// Locate the first and last working day of the span. Edge off-day
	// runs are never charged regardless of the sandwich rule.
	firstWork, lastWork := Date{}, Date{}
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		if !offDay(d) {
			if firstWork.IsZero() {
				firstWork = d
			}
			lastWork = d
		}
	}
	if firstWork.IsZero() {
		return 0 // span is entirely weekends/holidays
	}

	if sandwich {
		// Every calendar day between the first and last working day counts.
		return DaysBetween(firstWork, lastWork) + 1
	}

	count := 0
	for d := firstWork; d.BeforeOrEqual(lastWork); d = d.AddDays(1) {
		if !offDay(d) {
			count++
		}
	}
	return count
}
