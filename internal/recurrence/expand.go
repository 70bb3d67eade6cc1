package recurrence

import (
	"time"

	"github.com/dukerupert/choresync/internal/model"
)

// Next advances t by one cadence interval. Months are calendar months; a day
// that does not exist in the target month is clamped to its last day, so
// Jan 31 plus one month is Feb 28 (or 29).
func (c Cadence) Next(t time.Time) time.Time {
	switch c.Unit {
	case model.CadenceDays:
		return t.AddDate(0, 0, c.Value)
	case model.CadenceMonths:
		return addMonths(t, c.Value)
	default:
		return t.AddDate(0, 0, 7*c.Value)
	}
}

// Expand returns the dates after start, one interval apart, up to and
// including until. It returns nil for an invalid cadence.
func Expand(c Cadence, start, until time.Time) []time.Time {
	if !c.Valid() {
		return nil
	}
	var dates []time.Time
	for d := c.Next(start); !d.After(until); d = c.Next(d) {
		dates = append(dates, d)
	}
	return dates
}

func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
