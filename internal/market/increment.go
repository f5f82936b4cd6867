package market

import (
	"log/slog"
	"math"
	"sort"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// Increment is one cycle's result: one record per key.
type Increment map[domain.ItemString]domain.MarketValueRecord

// Timestamp is the snapshot time shared by every record, or 0 when empty.
func (inc Increment) Timestamp() int32 {
	for _, r := range inc {
		return r.Timestamp
	}
	return 0
}

type keyStats struct {
	total     int64
	minBuyout int64
	groups    []PriceGroup
}

// Aggregator groups a snapshot's listings by key and estimates one record
// per key.
type Aggregator struct {
	keyer     *Keyer
	estimator *Estimator
	logger    *slog.Logger
}

// NewAggregator returns an Aggregator.
func NewAggregator(keyer *Keyer, estimator *Estimator, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		keyer:     keyer,
		estimator: estimator,
		logger:    logger.With(slog.String("component", "aggregator")),
	}
}

// FromResponse builds the increment for resp. Classic versions quote prices
// per stack, so price and buyout are divided by quantity. Malformed listings
// are logged and skipped.
func (a *Aggregator) FromResponse(resp domain.ListingsResponse, version domain.GameVersion) Increment {
	stats := make(map[domain.ItemString]*keyStats)
	var order []domain.ItemString
	var skipped int

	for _, l := range resp.Listings() {
		if err := l.Validate(); err != nil {
			a.logger.Debug("skipping listing", slog.String("error", err.Error()))
			skipped++
			continue
		}
		key, err := a.keyer.FromItem(l.ItemRef())
		if err != nil {
			a.logger.Debug("skipping listing", slog.String("error", err.Error()))
			skipped++
			continue
		}

		qty := l.Count()
		price := l.Price()
		buyout, hasBuyout := l.BuyoutPrice()
		if version.IsClassic() {
			price /= qty
			buyout /= qty
		}

		s, ok := stats[key]
		if !ok {
			s = &keyStats{}
			stats[key] = s
			order = append(order, key)
		}
		s.total += qty
		if hasBuyout && buyout > 0 && (s.minBuyout == 0 || buyout < s.minBuyout) {
			s.minBuyout = buyout
		}
		s.groups = append(s.groups, PriceGroup{Price: float64(price), Quantity: qty})
	}
	if skipped > 0 {
		a.logger.Warn("malformed listings skipped", slog.Int("count", skipped))
	}

	ts := resp.SnapshotTime()
	out := make(Increment, len(stats))
	for _, key := range order {
		s := stats[key]
		groups := s.groups
		sort.Slice(groups, func(i, j int) bool {
			if groups[i].Price != groups[j].Price {
				return groups[i].Price < groups[j].Price
			}
			return groups[i].Quantity < groups[j].Quantity
		})

		mv, ok := a.estimator.MarketValue(s.total, groups)
		if !ok {
			continue
		}
		rounded := int64(math.Round(mv))
		if rounded == 0 {
			continue
		}
		out[key] = domain.MarketValueRecord{
			Timestamp:   ts,
			MarketValue: domain.Int64(rounded),
			NumAuctions: int32(s.total),
			MinBuyout:   domain.Int64(s.minBuyout),
		}
	}
	return out
}
