package domain

// MarketValueRecord is one timestamped sample of a key's market.
// MarketValue is nil when the cycle produced no usable samples.
type MarketValueRecord struct {
	Timestamp   int32
	MarketValue *int64
	NumAuctions int32
	MinBuyout   *int64
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Before orders records by timestamp only.
func (r MarketValueRecord) Before(o MarketValueRecord) bool {
	return r.Timestamp < o.Timestamp
}

// Clone returns a copy that shares no pointers with r.
func (r MarketValueRecord) Clone() MarketValueRecord {
	out := r
	if r.MarketValue != nil {
		out.MarketValue = Int64(*r.MarketValue)
	}
	if r.MinBuyout != nil {
		out.MinBuyout = Int64(*r.MinBuyout)
	}
	return out
}

// Value returns the market value, or 0 when absent.
func (r MarketValueRecord) Value() int64 {
	if r.MarketValue == nil {
		return 0
	}
	return *r.MarketValue
}

// Buyout returns the min buyout, or 0 when absent.
func (r MarketValueRecord) Buyout() int64 {
	if r.MinBuyout == nil {
		return 0
	}
	return *r.MinBuyout
}
