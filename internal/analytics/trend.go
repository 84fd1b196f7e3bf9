package analytics

import (
	"errors"
	"math"

	"moneta/internal/core"
)

// ErrUnorderedInput marks a bucket sequence whose period keys are not
// strictly ascending. The trend calculator validates instead of sorting:
// silently reordering would change cumulative results when duplicate keys
// slip in, so bad input is rejected.
var ErrUnorderedInput = errors.New("period buckets not ordered by period key")

// TrendSeries is the derived cumulative view over an ordered bucket
// sequence plus its summary statistics.
type TrendSeries struct {
	PeriodKeys []string
	Balances   []core.Money // per-period net balance
	Cumulative []core.Money // running total of net balance

	AverageBalance core.Money
	NetChange      core.Money
	// NetChangePercent is NetChange relative to the first cumulative value.
	// It is 0 when the baseline is 0; callers must not read a 0% result as
	// "no change" when the baseline was literally zero.
	NetChangePercent float64
}

// CumulativeBalance returns the running total of net balance: entry i is
// the sum of Net for buckets 0..i. The input must already be sorted
// ascending by period key; unsorted input fails with ErrUnorderedInput.
func CumulativeBalance(buckets []PeriodBucket) ([]core.Money, error) {
	if err := checkOrdered(buckets); err != nil {
		return nil, err
	}
	out := make([]core.Money, len(buckets))
	var running int64
	for i, b := range buckets {
		running += b.Net.Cents
		out[i] = core.Money{Cents: running}
	}
	return out, nil
}

// AverageBalance returns the mean net balance across buckets, rounded to
// the nearest cent. An empty input yields 0 rather than a division error.
func AverageBalance(buckets []PeriodBucket) core.Money {
	if len(buckets) == 0 {
		return core.Money{}
	}
	var total int64
	for _, b := range buckets {
		total += b.Net.Cents
	}
	mean := math.Round(float64(total) / float64(len(buckets)))
	return core.Money{Cents: int64(mean)}
}

// BuildTrend derives the full cumulative series and statistics from an
// ordered day-granularity bucket sequence. The input is read-only.
func BuildTrend(buckets []PeriodBucket) (TrendSeries, error) {
	cumulative, err := CumulativeBalance(buckets)
	if err != nil {
		return TrendSeries{}, err
	}

	series := TrendSeries{
		PeriodKeys:     make([]string, len(buckets)),
		Balances:       make([]core.Money, len(buckets)),
		Cumulative:     cumulative,
		AverageBalance: AverageBalance(buckets),
	}
	for i, b := range buckets {
		series.PeriodKeys[i] = b.PeriodKey
		series.Balances[i] = b.Net
	}

	if len(cumulative) > 0 {
		first := cumulative[0].Cents
		last := cumulative[len(cumulative)-1].Cents
		series.NetChange = core.Money{Cents: last - first}
		if first != 0 {
			series.NetChangePercent = float64(last-first) / math.Abs(float64(first)) * 100
		}
	}
	return series, nil
}

func checkOrdered(buckets []PeriodBucket) error {
	for i := 1; i < len(buckets); i++ {
		if buckets[i-1].PeriodKey >= buckets[i].PeriodKey {
			return ErrUnorderedInput
		}
	}
	return nil
}
