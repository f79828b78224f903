package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/leave-engine/engine"
)

// June 2025: the 1st is a Sunday, so Mon 2..Fri 6 and Mon 9..Fri 13
// are working days.

func TestCountLeaveDays_SandwichCountsInteriorWeekend(t *testing.T) {
	// GIVEN: A span from Thursday to Monday with sandwich enabled
	// WHEN: Counting leave days
	// THEN: The interior weekend is charged (5 days, not 3)

	from := engine.NewDate(2025, time.June, 5)
	to := engine.NewDate(2025, time.June, 9)

	days := engine.CountLeaveDays(from, to, engine.NoHolidays{}, true)
	assert.Equal(t, 5, days)
}

func TestCountLeaveDays_NoSandwichSkipsWeekend(t *testing.T) {
	from := engine.NewDate(2025, time.June, 5)
	to := engine.NewDate(2025, time.June, 9)

	days := engine.CountLeaveDays(from, to, engine.NoHolidays{}, false)
	assert.Equal(t, 3, days, "Thu, Fri, Mon")
}

func TestCountLeaveDays_EdgeOffDaysNeverCharged(t *testing.T) {
	// GIVEN: A span starting on Saturday, sandwich enabled
	// WHEN: Counting leave days
	// THEN: The leading weekend is free; only Mon and Tue count

	from := engine.NewDate(2025, time.June, 7)
	to := engine.NewDate(2025, time.June, 10)

	days := engine.CountLeaveDays(from, to, engine.NoHolidays{}, true)
	assert.Equal(t, 2, days)
}

func TestCountLeaveDays_EntirelyWeekendIsZero(t *testing.T) {
	from := engine.NewDate(2025, time.June, 7)
	to := engine.NewDate(2025, time.June, 8)

	assert.Zero(t, engine.CountLeaveDays(from, to, engine.NoHolidays{}, true))
	assert.Zero(t, engine.CountLeaveDays(from, to, engine.NoHolidays{}, false))
}

func TestCountLeaveDays_ActiveHolidayExcluded(t *testing.T) {
	// GIVEN: Tuesday June 10 is an active holiday
	// WHEN: Counting Mon..Wed without sandwich
	// THEN: Only Mon and Wed are charged

	cal := engine.NewMapCalendar([]engine.Holiday{
		{Date: engine.NewDate(2025, time.June, 10), Name: "Founders Day", Active: true},
	})
	from := engine.NewDate(2025, time.June, 9)
	to := engine.NewDate(2025, time.June, 11)

	assert.Equal(t, 2, engine.CountLeaveDays(from, to, cal, false))
	assert.Equal(t, 3, engine.CountLeaveDays(from, to, cal, true), "sandwich charges the interior holiday")
}

func TestCountLeaveDays_InactiveHolidayStillCharged(t *testing.T) {
	cal := engine.NewMapCalendar([]engine.Holiday{
		{Date: engine.NewDate(2025, time.June, 10), Name: "Optional Day", Active: false},
	})
	from := engine.NewDate(2025, time.June, 9)
	to := engine.NewDate(2025, time.June, 11)

	assert.Equal(t, 3, engine.CountLeaveDays(from, to, cal, false))
}

func TestCountLeaveDays_ReversedRangeIsZero(t *testing.T) {
	from := engine.NewDate(2025, time.June, 11)
	to := engine.NewDate(2025, time.June, 9)

	assert.Zero(t, engine.CountLeaveDays(from, to, engine.NoHolidays{}, true))
}

func TestParseMonth_RoundTrip(t *testing.T) {
	m, err := engine.ParseMonth("2025-06")
	assert.NoError(t, err)
	assert.Equal(t, engine.Month{Year: 2025, Month: time.June}, m)
	assert.Equal(t, "2025-06", m.String())

	_, err = engine.ParseMonth("2025/06")
	assert.Error(t, err)
}

func TestDate_SundayAndWeekend(t *testing.T) {
	sunday := engine.NewDate(2025, time.June, 8)
	saturday := engine.NewDate(2025, time.June, 7)
	monday := engine.NewDate(2025, time.June, 9)

	assert.True(t, sunday.IsSunday())
	assert.True(t, sunday.IsWeekend())
	assert.True(t, saturday.IsWeekend())
	assert.False(t, saturday.IsSunday())
	assert.False(t, monday.IsWeekend())
}
