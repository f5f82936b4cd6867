package market

import "github.com/alanyoungcy/auctiondb/internal/domain"

// Readout computes the published values of one series. Recent values look
// back to begin; weighted and historical values are taken at end.
func Readout(key domain.ItemString, rs Records, begin, end int64, t Tuning) domain.ItemValues {
	return domain.ItemValues{
		ItemString:  key.String(),
		MarketValue: rs.Weighted(end, t),
		Historical:  rs.Historical(end, t),
		Recent:      rs.RecentMarketValue(begin),
		MinBuyout:   rs.RecentMinBuyout(begin),
		NumAuctions: rs.RecentNumAuctions(begin),
	}
}

// Readouts computes the published values of every key in s.
func Readouts(s *Store, begin, end int64, t Tuning) []domain.ItemValues {
	out := make([]domain.ItemValues, 0, s.Len())
	s.Range(func(key domain.ItemString, rs Records) bool {
		out = append(out, Readout(key, rs, begin, end, t))
		return true
	})
	return out
}
