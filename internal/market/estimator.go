package market

import "math"

// PriceGroup is the unit price and quantity of one listing.
type PriceGroup struct {
	Price    float64
	Quantity int64
}

// Estimator turns one cycle's listings of a key into a market value.
type Estimator struct {
	tuning Tuning
}

// NewEstimator returns an Estimator using t.
func NewEstimator(t Tuning) *Estimator {
	return &Estimator{tuning: t}
}

// MarketValue estimates a robust price from groups sorted ascending by
// price, where n is the total listed quantity. The lowest-priced share of
// listings between SampleLo and SampleHi of n is sampled, stopping early at
// a price jump, then samples far from the weighted mean are dropped. ok is
// false when there is nothing to sample.
func (e *Estimator) MarketValue(n int64, groups []PriceGroup) (value float64, ok bool) {
	if n == 0 {
		return 0, false
	}
	lo := int64(float64(n) * e.tuning.SampleLo)
	hi := int64(float64(n) * e.tuning.SampleHi)

	samples := make([]PriceGroup, 0, len(groups))
	var (
		sum     float64
		count   int64
		last    PriceGroup
		hasLast bool
	)
	for _, g := range groups {
		if hasLast && count >= lo && (count >= hi || g.Price >= e.tuning.MaxJumpMul*last.Price) {
			break
		}
		samples = append(samples, g)
		count += g.Quantity
		sum += g.Price * float64(g.Quantity)

		if count > hi {
			over := count - hi
			tail := &samples[len(samples)-1]
			tail.Quantity -= over
			count -= over
			sum -= tail.Price * float64(over)
			if tail.Quantity == 0 {
				if hasLast {
					samples = samples[:len(samples)-1]
				} else {
					// keep at least one unit of the cheapest group
					tail.Quantity = 1
					count++
					sum += tail.Price
				}
			}
			break
		}
		last = g
		hasLast = true
	}
	if count <= 0 {
		return 0, false
	}

	mean := sum / float64(count)
	var variance float64
	for _, g := range samples {
		d := g.Price - mean
		variance += d * d * float64(g.Quantity)
	}
	var ddof int64 = 1
	if count == n {
		ddof = 0
	}
	var std float64
	if count > 1 {
		std = math.Sqrt(variance / float64(count-ddof))
	}
	limit := std * e.tuning.MaxStdMul

	for _, g := range samples {
		if math.Abs(g.Price-mean) > limit {
			sum -= g.Price * float64(g.Quantity)
			count -= g.Quantity
		}
	}
	if count <= 0 {
		return 0, false
	}
	return sum / float64(count), true
}
