// Package market implements the item-value time-series engine: key
// derivation, the per-cycle value estimator, per-key record series and the
// keyed store.
package market

// DaySeconds is the length of a compaction and readout bucket.
const DaySeconds = 24 * 60 * 60

// Tuning holds the estimator and readout parameters.
type Tuning struct {
	// SampleLo and SampleHi bound the share of listed quantity sampled.
	SampleLo float64
	SampleHi float64
	// MaxJumpMul stops sampling at a price jump of this factor.
	MaxJumpMul float64
	// MaxStdMul drops samples further than this many deviations from the mean.
	MaxStdMul float64
	// DayWeights weighs daily averages oldest first.
	DayWeights []int64
	// HistoricalDays is the horizon of the historical value.
	HistoricalDays int
}

// DefaultTuning returns the stock parameters.
func DefaultTuning() Tuning {
	return Tuning{
		SampleLo:       0.15,
		SampleHi:       0.3,
		MaxJumpMul:     1.2,
		MaxStdMul:      1.5,
		DayWeights:     []int64{4, 5, 7, 10, 15, 21, 28, 38, 33, 34, 45, 75, 100, 125, 132},
		HistoricalDays: 60,
	}
}
