package recurrence

import (
	"errors"
	"time"
)

// Frequency represents supported recurrence intervals.
type Frequency string

const (
	// FrequencyNone marks a one-off reservation. It is not expandable.
	FrequencyNone Frequency = "none"
	// FrequencyDaily advances the anchor by one calendar day.
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly advances the anchor by seven calendar days.
	FrequencyWeekly Frequency = "weekly"
	// FrequencyMonthly advances the anchor by one calendar month, keeping the
	// anchor's day of month and clamping to the last day of shorter months.
	FrequencyMonthly Frequency = "monthly"
)

// MaxOccurrences bounds the size of a generated series, parent included.
const MaxOccurrences = 365

// ErrInvalidFrequency indicates the recurrence frequency is not expandable.
var ErrInvalidFrequency = errors.New("recurrence: invalid frequency")

// ErrInvalidDuration indicates the base interval does not end after it starts.
var ErrInvalidDuration = errors.New("recurrence: interval duration must be positive")

// Interval is one occurrence produced by the engine.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Engine expands a base interval into a bounded, ordered series.
type Engine struct {
	limit int
}

// NewEngine constructs an Engine that stops after limit occurrences.
// A non-positive limit selects MaxOccurrences.
func NewEngine(limit int) *Engine {
	if limit <= 0 || limit > MaxOccurrences {
		limit = MaxOccurrences
	}
	return &Engine{limit: limit}
}

// Expand uses an Engine with the default occurrence cap.
func Expand(start, end time.Time, freq Frequency, until time.Time) ([]Interval, error) {
	return NewEngine(MaxOccurrences).Expand(start, end, freq, until)
}

// Expand produces the occurrences of a series.
//
//   - Index 0 is always exactly [start, end).
//   - Occurrence k is anchored k steps after start; steps never accumulate
//     clamping, so Jan 31 monthly yields Feb 29 (leap year), Mar 31, Apr 30.
//   - Every occurrence keeps end-start unchanged.
//   - Generation stops once an anchor falls after the calendar day of until
//     (the whole day is inclusive) or the engine limit is reached. Reaching
//     the limit truncates silently.
func (e *Engine) Expand(start, end time.Time, freq Frequency, until time.Time) ([]Interval, error) {
	if !end.After(start) {
		return nil, ErrInvalidDuration
	}
	step, err := stepper(freq)
	if err != nil {
		return nil, err
	}

	limit := MaxOccurrences
	if e != nil && e.limit > 0 {
		limit = e.limit
	}

	duration := end.Sub(start)
	uy, um, ud := until.In(start.Location()).Date()
	cutoff := time.Date(uy, um, ud+1, 0, 0, 0, 0, start.Location())

	occurrences := []Interval{{Start: start, End: end}}
	for k := 1; len(occurrences) < limit; k++ {
		anchor := step(start, k)
		if !anchor.Before(cutoff) {
			break
		}
		occurrences = append(occurrences, Interval{Start: anchor, End: anchor.Add(duration)})
	}
	return occurrences, nil
}

func stepper(freq Frequency) (func(time.Time, int) time.Time, error) {
	switch freq {
	case FrequencyDaily:
		return func(t time.Time, k int) time.Time { return t.AddDate(0, 0, k) }, nil
	case FrequencyWeekly:
		return func(t time.Time, k int) time.Time { return t.AddDate(0, 0, 7*k) }, nil
	case FrequencyMonthly:
		return addMonthsClamped, nil
	default:
		return nil, ErrInvalidFrequency
	}
}

// addMonthsClamped moves t forward by months while keeping its day of month,
// using the target month's last day when that day does not exist.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
