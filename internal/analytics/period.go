// Package analytics turns raw transaction sets into the derived aggregates
// the dashboards display: time-bucketed sums, ranked category shares and
// cumulative balance trends.
//
// Every function is a pure transform over in-memory slices: identical inputs
// produce identical outputs, nothing is cached, and inputs are never
// mutated. Malformed records are skipped and reported, never fatal to the
// rest of the batch.
package analytics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"moneta/internal/core"
)

const (
	// ByDay buckets transactions per calendar day ("2006-01-02").
	ByDay Granularity = "day"
	// ByMonth buckets transactions per calendar month ("2006-01").
	ByMonth Granularity = "month"
)

type (
	// Granularity selects the calendar period transactions are bucketed by.
	Granularity string

	// PeriodBucket is the derived aggregate for one calendar period.
	// Income and Expense accumulate positive amounts per transaction type;
	// Net is their difference and may be negative.
	PeriodBucket struct {
		PeriodKey string
		Income    core.Money
		Expense   core.Money
		Net       core.Money
	}

	// RecordError identifies a transaction that was skipped during
	// aggregation and why.
	RecordError struct {
		ID  string
		Err error
	}
)

// ErrMalformedRecord marks a transaction that cannot be aggregated: zero
// date, non-positive amount or unknown type.
var ErrMalformedRecord = errors.New("malformed transaction record")

func (e RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.ID, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// Key derives the period key for a timestamp. Two timestamps on the same
// calendar day (or month) always produce the same key regardless of
// time-of-day, so keys sort chronologically as plain strings.
func (g Granularity) Key(t time.Time) (string, error) {
	switch g {
	case ByDay:
		return t.UTC().Format("2006-01-02"), nil
	case ByMonth:
		return t.UTC().Format("2006-01"), nil
	default:
		return "", fmt.Errorf("unknown granularity %q", g)
	}
}

// GroupByPeriod buckets transactions by calendar period and sums them by
// type. Buckets are ordered ascending by period key. An empty input yields
// an empty bucket list, not an error; malformed records are skipped and
// returned so callers can surface the count.
func GroupByPeriod(records []core.Transaction, granularity Granularity) ([]PeriodBucket, []RecordError, error) {
	if _, err := granularity.Key(time.Unix(0, 0)); err != nil {
		return nil, nil, err
	}

	buckets := make(map[string]*PeriodBucket)
	var skipped []RecordError

	for _, tx := range records {
		if err := checkRecord(tx); err != nil {
			skipped = append(skipped, RecordError{ID: tx.ID, Err: err})
			continue
		}
		key, _ := granularity.Key(tx.OccurredAt)
		b, ok := buckets[key]
		if !ok {
			b = &PeriodBucket{PeriodKey: key}
			buckets[key] = b
		}
		switch tx.Type {
		case core.Income:
			b.Income.Cents += tx.Amount.Cents
		case core.Expense:
			b.Expense.Cents += tx.Amount.Cents
		}
		b.Net.Cents = b.Income.Cents - b.Expense.Cents
	}

	out := make([]PeriodBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodKey < out[j].PeriodKey })
	return out, skipped, nil
}

// checkRecord rejects transactions the aggregators cannot account for.
func checkRecord(tx core.Transaction) error {
	if tx.OccurredAt.IsZero() {
		return fmt.Errorf("%w: zero occurrence date", ErrMalformedRecord)
	}
	if tx.Amount.Cents <= 0 {
		return fmt.Errorf("%w: non-positive amount %d", ErrMalformedRecord, tx.Amount.Cents)
	}
	if err := tx.Type.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return nil
}
