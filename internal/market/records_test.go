package market

import (
	"reflect"
	"testing"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

const day = DaySeconds

// fourPerDay returns four records a day, six hours apart, for days
// [0, days). Day k is valued 100*(k+1).
func fourPerDay(days int) Records {
	var rs Records
	for i := 0; i < days*4; i++ {
		rs.Add(domain.MarketValueRecord{
			Timestamp:   int32(day * int64(i) / 4),
			MarketValue: i64(100 * int64((i+4)/4)),
			NumAuctions: 100,
			MinBuyout:   i64(1),
		})
	}
	return rs
}

func values(avgs []*int64) []int64 {
	out := make([]int64, len(avgs))
	for i, a := range avgs {
		if a == nil {
			out[i] = -1
			continue
		}
		out[i] = *a
	}
	return out
}

func steps(from, step int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = from + step*int64(i)
	}
	return out
}

func TestAverageByDay(t *testing.T) {
	rs := fourPerDay(20)
	tests := []struct {
		name string
		now  int64
		n    int
		want []int64
	}{
		{"last ten days", 20 * day, 10, steps(1100, 100, 10)},
		{"first ten days", 10 * day, 10, steps(100, 100, 10)},
		{"window before data", 5 * day, 10, []int64{-1, -1, -1, -1, -1, 100, 200, 300, 400, 500}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := values(rs.AverageByDay(tt.now, tt.n, 0))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("AverageByDay=%v, want %v", got, tt.want)
			}
		})
	}

	var sparse Records
	for i, r := range rs {
		if (i/4)%2 == 0 {
			sparse = append(sparse, r)
		}
	}
	got := values(sparse.AverageByDay(20*day, 10, 0))
	want := []int64{1100, -1, 1300, -1, 1500, -1, 1700, -1, 1900, -1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sparse AverageByDay=%v, want %v", got, want)
	}
}

func TestAverageByDayRoundsHalfAwayFromZero(t *testing.T) {
	rs := Records{
		{Timestamp: 10, MarketValue: i64(1)},
		{Timestamp: 20, MarketValue: i64(2)},
		{Timestamp: 30},
	}
	got := values(rs.AverageByDay(day, 1, 0))
	if !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("AverageByDay=%v, want [2]", got)
	}
}

func TestCompress(t *testing.T) {
	rs := fourPerDay(20)
	if n := rs.Compress(2*day, 2*day, 0); n != 6 {
		t.Fatalf("Compress removed %d, want 6", n)
	}
	if len(rs) != 18*4+2 {
		t.Fatalf("len=%d, want %d", len(rs), 18*4+2)
	}
	if got := values(rs.AverageByDay(20*day, 20, 2*day)); !reflect.DeepEqual(got, steps(100, 100, 20)) {
		t.Fatalf("AverageByDay=%v", got)
	}
	if got := values(rs.AverageByDay(20*day, 20, 0)); !reflect.DeepEqual(got, steps(100, 100, 20)) {
		t.Fatalf("AverageByDay without boundary=%v", got)
	}
	if got := values(rs.AverageByDay(11*day, 10, 2*day)); !reflect.DeepEqual(got, steps(200, 100, 10)) {
		t.Fatalf("AverageByDay=%v", got)
	}

	rs = fourPerDay(20)
	if n := rs.Compress(13*day, 3*day, 0); n != 10*4+3*3 {
		t.Fatalf("Compress removed %d, want %d", n, 10*4+3*3)
	}
	if len(rs) != 3+7*4 {
		t.Fatalf("len=%d, want %d", len(rs), 3+7*4)
	}
	for i, r := range rs[:3] {
		wantTS := int32(10*day + int64(i)*day + day/2)
		if r.Timestamp != wantTS || r.Value() != int64(1100+100*i) || r.NumAuctions != 100 || r.Buyout() != 1 {
			t.Fatalf("compacted[%d]=%+v mv=%d", i, r, r.Value())
		}
	}
	got := values(rs.AverageByDay(20*day, 20, 13*day))
	if !reflect.DeepEqual(got[10:], steps(1100, 100, 10)) {
		t.Fatalf("AverageByDay=%v", got)
	}
	for _, v := range got[:10] {
		if v != -1 {
			t.Fatalf("expired days not empty: %v", got)
		}
	}
}

func TestCompressIdempotent(t *testing.T) {
	tests := []struct {
		name            string
		now, retention  int64
		compactedBefore int64
	}{
		{"whole window", 20 * day, 10 * day, 0},
		{"partial today", 15*day + day/2, 10 * day, 0},
		{"boundary", 20 * day, 20 * day, 10 * day},
		{"straddling boundary", 20 * day, 20 * day, 10*day + day/2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := fourPerDay(20)
			rs.Compress(tt.now, tt.retention, tt.compactedBefore)
			snapshot := rs.Clone()
			if n := rs.Compress(tt.now, tt.retention, tt.compactedBefore); n != 0 {
				t.Fatalf("second Compress removed %d", n)
			}
			if !reflect.DeepEqual(rs, snapshot) {
				t.Fatal("second Compress changed the series")
			}
		})
	}
}

func TestCompressKeepsCompactedDays(t *testing.T) {
	rs := fourPerDay(20)
	if n := rs.Compress(20*day, 20*day, 10*day); n != 10*3 {
		t.Fatalf("Compress removed %d, want 30", n)
	}
	if len(rs) != 10*4+10 {
		t.Fatalf("len=%d, want 50", len(rs))
	}
	for i, r := range rs[:40] {
		if r.Timestamp != int32(day*int64(i)/4) {
			t.Fatalf("kept record %d has timestamp %d", i, r.Timestamp)
		}
	}
	if r := rs[40]; r.Timestamp != int32(10*day+day/2) || r.Value() != 1100 {
		t.Fatalf("first compacted record=%+v", r)
	}
}

func TestCompressDropsUnvalued(t *testing.T) {
	rs := Records{
		{Timestamp: 100, NumAuctions: 3},
		{Timestamp: 200, MarketValue: i64(10), NumAuctions: 3},
		{Timestamp: 300, MarketValue: i64(20), NumAuctions: 4, MinBuyout: i64(7)},
	}
	if n := rs.Compress(day, day, 0); n != 2 {
		t.Fatalf("Compress removed %d, want 2", n)
	}
	want := domain.MarketValueRecord{Timestamp: int32(day / 2), MarketValue: i64(15), NumAuctions: 4, MinBuyout: i64(7)}
	if len(rs) != 1 || !reflect.DeepEqual(rs[0], want) {
		t.Fatalf("Compress=%+v", rs)
	}
}

// Open question fixture: a day straddling the compaction boundary averages
// its synthetic record with the raw records, each weighing 1.
func TestAverageByDayStaggered(t *testing.T) {
	rs := fourPerDay(20)
	if n := rs.Compress(10*day, 10*day, 0); n != 10*3 {
		t.Fatalf("Compress removed %d, want 30", n)
	}
	now := int64(15*day + day/2)
	mixed := int64(1067) // (1000 + 2*1100) / 3

	tests := []struct {
		n    int
		want []int64
	}{
		{10, append(append(steps(600, 100, 4), mixed), steps(1150, 100, 5)...)},
		{15, append(append(steps(100, 100, 9), mixed), steps(1150, 100, 5)...)},
		{5, steps(1150, 100, 5)},
		{6, append([]int64{mixed}, steps(1150, 100, 5)...)},
	}
	for _, tt := range tests {
		got := values(rs.AverageByDay(now, tt.n, 10*day))
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("AverageByDay(n=%d)=%v, want %v", tt.n, got, tt.want)
		}
	}
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func TestWeighted(t *testing.T) {
	tuning := DefaultTuning()
	var lcm, total int64 = 1, 0
	for _, w := range tuning.DayWeights {
		lcm = lcm * w / gcd(lcm, w)
		total += w
	}
	var rs Records
	for i, w := range tuning.DayWeights {
		rs.Add(domain.MarketValueRecord{Timestamp: int32(int64(i) * day), MarketValue: i64(lcm / w), NumAuctions: 100})
	}
	n := int64(len(tuning.DayWeights))
	now := (n-1)*day + 1
	want := roundDiv(lcm*n, total)
	if got := rs.Weighted(now, tuning); got != want {
		t.Fatalf("Weighted=%d, want %d", got, want)
	}

	if got := rs.Weighted(now+30*day, tuning); got != 0 {
		t.Fatalf("Weighted past horizon=%d, want 0", got)
	}
	if got := (Records{}).Weighted(now, tuning); got != 0 {
		t.Fatalf("Weighted empty=%d, want 0", got)
	}
}

func TestWeightedNeedsSortedSeries(t *testing.T) {
	tuning := DefaultTuning()
	var rs Records
	for i := 0; i < 80; i++ {
		rs.Add(domain.MarketValueRecord{
			Timestamp:   int32(day * int64(i+1) / 4),
			MarketValue: i64(100 * int64((i+4)/4)),
		})
	}
	now := int64(20 * day)
	want := rs.Weighted(now, tuning)

	shuffled := append(append(Records{}, rs[40:]...), rs[:40]...)
	if got := shuffled.Weighted(now, tuning); got == want {
		t.Fatalf("unsorted Weighted=%d unexpectedly matched", got)
	}
	shuffled.Sort()
	if got := shuffled.Weighted(now, tuning); got != want {
		t.Fatalf("sorted Weighted=%d, want %d", got, want)
	}
}

func TestHistorical(t *testing.T) {
	tuning := DefaultTuning()
	const skip = 2
	var rs Records
	for i := int64(0); i < 10; i++ {
		rs.Add(domain.MarketValueRecord{Timestamp: int32(i), MarketValue: i64(10 * i)})
	}
	var sum int64
	for d := 0; d < tuning.HistoricalDays; d++ {
		price := int64(1000 * (d + 1))
		sum += price
		for delta := int64(-2); delta <= 2; delta++ {
			rs.Add(domain.MarketValueRecord{
				Timestamp:   int32(10000 + int64(d+skip)*day + delta*100),
				MarketValue: i64(price + delta*100),
			})
		}
	}
	now := int64(tuning.HistoricalDays+skip) * day
	want := roundDiv(sum, int64(tuning.HistoricalDays))
	if got := rs.Historical(now, tuning); got != want {
		t.Fatalf("Historical=%d, want %d", got, want)
	}

	old := rs[:10]
	if got := old.Historical(now, tuning); got != 0 {
		t.Fatalf("Historical of expired=%d, want 0", got)
	}
}

func TestRecent(t *testing.T) {
	var rs Records
	for i := int64(0); i < 10; i++ {
		rs.Add(domain.MarketValueRecord{
			Timestamp:   int32(i),
			MarketValue: i64(10 * i),
			NumAuctions: int32(100 * i),
			MinBuyout:   i64(1000 * i),
		})
	}
	if got := rs.RecentMarketValue(9); got != 90 {
		t.Fatalf("RecentMarketValue=%d", got)
	}
	if got := rs.RecentNumAuctions(9); got != 900 {
		t.Fatalf("RecentNumAuctions=%d", got)
	}
	if got := rs.RecentMinBuyout(9); got != 9000 {
		t.Fatalf("RecentMinBuyout=%d", got)
	}
	if rs.RecentMarketValue(10) != 0 || rs.RecentNumAuctions(10) != 0 || rs.RecentMinBuyout(10) != 0 {
		t.Fatal("stale record surfaced")
	}
	if (Records{}).RecentMarketValue(0) != 0 {
		t.Fatal("empty series returned a value")
	}
}

func TestRemoveExpired(t *testing.T) {
	var rs Records
	for i := int64(0); i < 10; i++ {
		rs.Add(domain.MarketValueRecord{Timestamp: int32(i), MarketValue: i64(10 * i)})
	}
	cases := []struct {
		cutoff  int64
		wantLen int
		first   int64
	}{
		{-100, 10, 0},
		{6, 4, 60},
		{9, 1, 90},
		{10, 0, 0},
	}
	for _, s := range cases {
		rs.RemoveExpired(s.cutoff)
		if len(rs) != s.wantLen {
			t.Fatalf("RemoveExpired(%d) len=%d, want %d", s.cutoff, len(rs), s.wantLen)
		}
		if len(rs) > 0 && rs[0].Value() != s.first {
			t.Fatalf("RemoveExpired(%d) first=%d, want %d", s.cutoff, rs[0].Value(), s.first)
		}
	}
}

func TestFloorDiv(t *testing.T) {
	tests := []struct{ a, b, q, m int64 }{
		{7, 2, 3, 1},
		{-1, day, -1, day - 1},
		{-day, day, -1, 0},
		{0, day, 0, 0},
	}
	for _, tt := range tests {
		if q := floorDiv(tt.a, tt.b); q != tt.q {
			t.Errorf("floorDiv(%d,%d)=%d, want %d", tt.a, tt.b, q, tt.q)
		}
		if m := floorMod(tt.a, tt.b); m != tt.m {
			t.Errorf("floorMod(%d,%d)=%d, want %d", tt.a, tt.b, m, tt.m)
		}
	}
}
