package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

type (
	TransactionType string

	Frequency string

	Money struct {
		Cents int64
	}

	// Transaction is an immutable income or expense fact. Amounts are always
	// positive; direction is carried by Type, never by sign.
	Transaction struct {
		ID          string
		Type        TransactionType
		Amount      Money
		OccurredAt  time.Time
		CategoryID  string // empty when uncategorized
		Description string
	}

	Category struct {
		ID    string
		Name  string
		Color string
	}

	// RecurrenceRule is a template for a transaction that repeats on a
	// schedule. Exactly one of DueDay/DueWeekday is meaningful, selected by
	// Frequency. ExecutedCount and LastExecutedAt only ever advance, driven
	// by the recurring worker.
	RecurrenceRule struct {
		ID             string
		Type           TransactionType
		Amount         Money
		Frequency      Frequency
		DueDay         int          // Monthly: day of month, 1..31
		DueWeekday     time.Weekday // Weekly: 0 (Sunday) .. 6 (Saturday)
		StartDate      time.Time
		EndDate        time.Time // zero = open-ended
		MaxOccurrences int       // 0 = unbounded
		ExecutedCount  int
		LastExecutedAt time.Time // zero = never executed
		CategoryID     string
		Description    string
	}

	// Goal is a savings target with an accumulated saved amount.
	Goal struct {
		ID           string
		Name         string
		TargetAmount Money
		SavedAmount  Money
		Deadline     time.Time // zero = no deadline
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyDescription = errors.New("empty description")
)

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

func (f Frequency) Validate() error {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return nil
	default:
		return ErrInvalidFrequency
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// DayOf truncates a timestamp to its calendar day at midnight UTC.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LastDayOfMonth returns the number of days in the month containing t.
func LastDayOfMonth(t time.Time) int {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (tx Transaction) Validate() error {
	if err := tx.Type.Validate(); err != nil {
		return err
	}
	if err := tx.Amount.Validate(); err != nil {
		return err
	}
	if tx.OccurredAt.IsZero() {
		return ErrInvalidDate
	}
	if len(strings.TrimSpace(tx.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(tx.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (r RecurrenceRule) Validate() error {
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if err := r.Frequency.Validate(); err != nil {
		return err
	}
	if r.StartDate.IsZero() {
		return errors.New("invalid start date: " + ErrInvalidDate.Error())
	}
	if !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate) {
		return errors.New("end date must not precede start date")
	}
	switch r.Frequency {
	case Monthly:
		if r.DueDay < 1 || r.DueDay > 31 {
			return errors.New("monthly rule requires a due day between 1 and 31")
		}
	case Weekly:
		if r.DueWeekday < time.Sunday || r.DueWeekday > time.Saturday {
			return errors.New("weekly rule requires a due weekday between 0 and 6")
		}
	}
	if r.MaxOccurrences < 0 {
		return errors.New("max occurrences must not be negative")
	}
	if r.ExecutedCount < 0 {
		return errors.New("executed count must not be negative")
	}
	if len(strings.TrimSpace(r.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(r.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (g Goal) Validate() error {
	if len(strings.TrimSpace(g.Name)) == 0 {
		return errors.New("empty goal name")
	}
	if err := g.TargetAmount.Validate(); err != nil {
		return err
	}
	if g.SavedAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Progress reports how much of the target has been saved, clamped to [0, 1].
func (g Goal) Progress() float64 {
	if g.TargetAmount.Cents <= 0 {
		return 0
	}
	ratio := float64(g.SavedAmount.Cents) / float64(g.TargetAmount.Cents)
	if ratio > 1 {
		return 1
	}
	return ratio
}
