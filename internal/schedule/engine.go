// Package schedule evaluates recurrence rules: next due date, overdue
// status, activity window and execution progress.
//
// Each frequency type (daily, weekly, monthly, yearly) has its own strategy
// that encapsulates the due-date arithmetic. All functions are pure: the
// engine classifies a rule's current position and never mutates it;
// ExecutedCount and LastExecutedAt are advanced elsewhere.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"moneta/internal/core"
)

// ErrInvalidRule marks a rule whose frequency is unrecognized or whose
// per-frequency field (due day, due weekday) is missing or out of range.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// DueDateComputer is the strategy interface for computing the first due date
// on or after a reference date.
type DueDateComputer interface {
	// NextDue returns the first due date >= reference, at day granularity.
	NextDue(rule core.RecurrenceRule, reference time.Time) (time.Time, error)
}

// DailyComputer implements DueDateComputer for daily rules.
type DailyComputer struct{}

// NextDue returns the day after the reference: a daily rule is next due one
// day after its last occurrence (or its start date when never executed).
func (DailyComputer) NextDue(_ core.RecurrenceRule, reference time.Time) (time.Time, error) {
	return core.DayOf(reference).AddDate(0, 0, 1), nil
}

// WeeklyComputer implements DueDateComputer for weekly rules.
type WeeklyComputer struct{}

// NextDue returns the first date >= reference whose weekday equals the
// rule's due weekday; the reference itself when its weekday already matches.
func (WeeklyComputer) NextDue(rule core.RecurrenceRule, reference time.Time) (time.Time, error) {
	if rule.DueWeekday < time.Sunday || rule.DueWeekday > time.Saturday {
		return time.Time{}, fmt.Errorf("%w: weekly rule without due weekday", ErrInvalidRule)
	}
	ref := core.DayOf(reference)
	offset := (int(rule.DueWeekday) - int(ref.Weekday()) + 7) % 7
	return ref.AddDate(0, 0, offset), nil
}

// MonthlyComputer implements DueDateComputer for monthly rules.
type MonthlyComputer struct{}

// NextDue returns the first date >= reference whose day of month equals the
// rule's due day, clamped to the last valid day of shorter months (a rule on
// day 31 evaluated in April is due on April 30).
func (MonthlyComputer) NextDue(rule core.RecurrenceRule, reference time.Time) (time.Time, error) {
	if rule.DueDay < 1 || rule.DueDay > 31 {
		return time.Time{}, fmt.Errorf("%w: monthly rule without due day", ErrInvalidRule)
	}
	ref := core.DayOf(reference)
	candidate := dayInMonth(ref.Year(), ref.Month(), rule.DueDay)
	if candidate.Before(ref) {
		next := time.Date(ref.Year(), ref.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		candidate = dayInMonth(next.Year(), next.Month(), rule.DueDay)
	}
	return candidate, nil
}

// YearlyComputer implements DueDateComputer for yearly rules.
type YearlyComputer struct{}

// NextDue returns the start date's month and day in the first year >=
// reference, clamping February 29 starts to February 28 in non-leap years.
func (YearlyComputer) NextDue(rule core.RecurrenceRule, reference time.Time) (time.Time, error) {
	if rule.StartDate.IsZero() {
		return time.Time{}, fmt.Errorf("%w: yearly rule without start date", ErrInvalidRule)
	}
	ref := core.DayOf(reference)
	start := core.DayOf(rule.StartDate)
	candidate := dayInMonth(ref.Year(), start.Month(), start.Day())
	if candidate.Before(ref) {
		candidate = dayInMonth(ref.Year()+1, start.Month(), start.Day())
	}
	return candidate, nil
}

// dayInMonth builds a date clamped to the last valid day of the month.
func dayInMonth(year int, month time.Month, day int) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// dueStrategies maps frequencies to their corresponding computers.
var dueStrategies = map[core.Frequency]DueDateComputer{
	core.Daily:   DailyComputer{},
	core.Weekly:  WeeklyComputer{},
	core.Monthly: MonthlyComputer{},
	core.Yearly:  YearlyComputer{},
}

// RegisterDueDateComputer registers a custom computer for a new frequency
// type, allowing extension without modifying the engine.
func RegisterDueDateComputer(frequency core.Frequency, computer DueDateComputer) {
	dueStrategies[frequency] = computer
}

// NextDueDate computes the first due date on or after reference for the
// rule's frequency. The caller supplies the last occurrence date as the
// reference, or the rule's start date when nothing has been executed yet.
func NextDueDate(rule core.RecurrenceRule, reference time.Time) (time.Time, error) {
	computer, ok := dueStrategies[rule.Frequency]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, rule.Frequency)
	}
	return computer.NextDue(rule, reference)
}

// ScheduledDueDate returns the rule's next due date given its execution
// history: computed from the start date when never executed, otherwise
// from the day after the last execution. For an overdue rule this date
// lies in the past.
func ScheduledDueDate(rule core.RecurrenceRule) (time.Time, error) {
	return NextDueDate(rule, scheduleReference(rule))
}

// IsActive reports whether the rule is still inside its activity window:
// false once now has passed the end date, or the executed count has reached
// the occurrence cap. Terminal states are classified, never stored.
func IsActive(rule core.RecurrenceRule, now time.Time) bool {
	if !rule.EndDate.IsZero() && core.DayOf(now).After(core.DayOf(rule.EndDate)) {
		return false
	}
	if rule.MaxOccurrences > 0 && rule.ExecutedCount >= rule.MaxOccurrences {
		return false
	}
	return true
}

// IsOverdue reports whether the rule's next due date has passed without a
// recorded execution. Inactive rules are never overdue.
func IsOverdue(rule core.RecurrenceRule, now time.Time) (bool, error) {
	if !IsActive(rule, now) {
		return false, nil
	}
	next, err := NextDueDate(rule, scheduleReference(rule))
	if err != nil {
		return false, err
	}
	return next.Before(core.DayOf(now)), nil
}

// IsDue reports whether the rule should be executed today: its next due date
// is today or already behind. Inactive rules are never due.
func IsDue(rule core.RecurrenceRule, now time.Time) (bool, error) {
	if !IsActive(rule, now) {
		return false, nil
	}
	next, err := NextDueDate(rule, scheduleReference(rule))
	if err != nil {
		return false, err
	}
	return !next.After(core.DayOf(now)), nil
}

// ProgressRatio reports executed/max occurrences clamped to [0, 1].
// It is 0 for rules without an occurrence cap.
func ProgressRatio(rule core.RecurrenceRule) float64 {
	if rule.MaxOccurrences <= 0 {
		return 0
	}
	ratio := float64(rule.ExecutedCount) / float64(rule.MaxOccurrences)
	if ratio > 1 {
		return 1
	}
	return ratio
}

// scheduleReference picks the date the next due date is computed from: the
// start date when nothing has executed, otherwise the day after the last
// execution (daily rules pass the execution day itself since their computer
// already advances by one day).
func scheduleReference(rule core.RecurrenceRule) time.Time {
	if rule.LastExecutedAt.IsZero() {
		return rule.StartDate
	}
	if rule.Frequency == core.Daily {
		return rule.LastExecutedAt
	}
	return core.DayOf(rule.LastExecutedAt).AddDate(0, 0, 1)
}
