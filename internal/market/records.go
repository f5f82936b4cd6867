package market

import (
	"math"
	"sort"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// Records is one key's series, ascending by timestamp once sorted.
type Records []domain.MarketValueRecord

// Add appends r without sorting.
func (rs *Records) Add(r domain.MarketValueRecord) int {
	*rs = append(*rs, r)
	return 1
}

// Sort orders the series by timestamp, keeping the order of equal stamps.
func (rs Records) Sort() {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Before(rs[j]) })
}

// Clone returns a deep copy.
func (rs Records) Clone() Records {
	if rs == nil {
		return nil
	}
	out := make(Records, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

// RemoveExpired drops records with a timestamp before cutoff and returns
// how many were dropped.
func (rs *Records) RemoveExpired(cutoff int64) int {
	kept := (*rs)[:0]
	for _, r := range *rs {
		if int64(r.Timestamp) >= cutoff {
			kept = append(kept, r)
		}
	}
	removed := len(*rs) - len(kept)
	for i := len(kept); i < len(*rs); i++ {
		(*rs)[i] = domain.MarketValueRecord{}
	}
	*rs = kept
	return removed
}

// buckets groups valued records into n day slots counting back from now.
// Slot 0 holds [now-DAY, now). Records inside a slot are newest first.
// The series must be sorted.
func (rs Records) buckets(now int64, n int) [][]domain.MarketValueRecord {
	out := make([][]domain.MarketValueRecord, n)
	for i := len(rs) - 1; i >= 0; i-- {
		r := rs[i]
		if r.MarketValue == nil {
			continue
		}
		d := floorDiv(now-int64(r.Timestamp)-1, DaySeconds)
		if d < 0 {
			continue
		}
		if d >= int64(n) {
			break
		}
		out[d] = append(out[d], r)
	}
	return out
}

// AverageByDay returns n daily averages ending at now, oldest first. Slots
// without records are nil. Every record weighs 1, so a day straddling the
// compactedBefore boundary mixes its synthetic record with raw samples as
// equals; compactedBefore does not change the result.
func (rs Records) AverageByDay(now int64, n int, compactedBefore int64) []*int64 {
	_ = compactedBefore
	out := make([]*int64, n)
	for d, bucket := range rs.buckets(now, n) {
		if len(bucket) == 0 {
			continue
		}
		var sum int64
		for _, r := range bucket {
			sum += *r.MarketValue
		}
		out[n-d-1] = domain.Int64(roundDiv(sum, int64(len(bucket))))
	}
	return out
}

// Compress collapses every full day in the retention window ending at the
// start of now's day into one mid-day record. Days ending at or before a
// non-zero compactedBefore are kept as they are. Records older than the
// window are dropped and the partial current day is left untouched. It
// returns how many records were removed.
func (rs *Records) Compress(now, retention, compactedBefore int64) int {
	dayEnd := now - floorMod(now, DaySeconds)
	nDays := int((retention + DaySeconds - 1) / DaySeconds)
	if nDays < 0 {
		nDays = 0
	}
	buckets := rs.buckets(dayEnd, nDays)

	var head Records
	for d := nDays - 1; d >= 0; d-- {
		bucket := buckets[d]
		if len(bucket) == 0 {
			continue
		}
		windowEnd := dayEnd - int64(d)*DaySeconds
		if compactedBefore != 0 && windowEnd <= compactedBefore {
			for i := len(bucket) - 1; i >= 0; i-- {
				head = append(head, bucket[i])
			}
			continue
		}
		head = append(head, compactDay(bucket, windowEnd-DaySeconds/2))
	}

	before := len(*rs)
	rs.RemoveExpired(dayEnd)
	merged := make(Records, 0, len(head)+len(*rs))
	merged = append(merged, head...)
	merged = append(merged, *rs...)
	*rs = merged
	return before - len(*rs)
}

func compactDay(bucket []domain.MarketValueRecord, ts int64) domain.MarketValueRecord {
	var (
		sumValue    int64
		sumAuctions int64
		minBuyout   *int64
	)
	for _, r := range bucket {
		sumValue += *r.MarketValue
		sumAuctions += int64(r.NumAuctions)
		if r.MinBuyout != nil && (minBuyout == nil || *r.MinBuyout < *minBuyout) {
			minBuyout = domain.Int64(*r.MinBuyout)
		}
	}
	n := int64(len(bucket))
	return domain.MarketValueRecord{
		Timestamp:   int32(ts),
		MarketValue: domain.Int64(roundDiv(sumValue, n)),
		NumAuctions: int32(roundDiv(sumAuctions, n)),
		MinBuyout:   minBuyout,
	}
}

// Weighted is the day-weighted market value over len(t.DayWeights) days,
// or 0 when none of those days has data.
func (rs Records) Weighted(now int64, t Tuning) int64 {
	if len(rs) == 0 {
		return 0
	}
	var sum, weights float64
	for i, avg := range rs.AverageByDay(now, len(t.DayWeights), 0) {
		if avg == nil {
			continue
		}
		w := float64(t.DayWeights[i])
		sum += float64(*avg) * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return int64(math.Round(sum / weights))
}

// Historical is the mean of the daily averages over t.HistoricalDays.
func (rs Records) Historical(now int64, t Tuning) int64 {
	if len(rs) == 0 {
		return 0
	}
	var (
		sum  float64
		days int
	)
	for _, avg := range rs.AverageByDay(now, t.HistoricalDays, 0) {
		if avg != nil {
			sum += float64(*avg)
			days++
		}
	}
	if days == 0 {
		return 0
	}
	return int64(math.Round(sum / float64(days)))
}

func (rs Records) latest(since int64) (domain.MarketValueRecord, bool) {
	if len(rs) == 0 {
		return domain.MarketValueRecord{}, false
	}
	last := rs[len(rs)-1]
	return last, int64(last.Timestamp) >= since
}

// RecentMarketValue returns the newest market value if it was recorded at
// or after since.
func (rs Records) RecentMarketValue(since int64) int64 {
	if r, ok := rs.latest(since); ok {
		return r.Value()
	}
	return 0
}

// RecentNumAuctions returns the newest quantity if recorded at or after since.
func (rs Records) RecentNumAuctions(since int64) int64 {
	if r, ok := rs.latest(since); ok {
		return int64(r.NumAuctions)
	}
	return 0
}

// RecentMinBuyout returns the newest min buyout if recorded at or after since.
func (rs Records) RecentMinBuyout(since int64) int64 {
	if r, ok := rs.latest(since); ok {
		return r.Buyout()
	}
	return 0
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}

// roundDiv divides rounding half away from zero.
func roundDiv(sum, n int64) int64 {
	return int64(math.Round(float64(sum) / float64(n)))
}
