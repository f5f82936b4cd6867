package pipeline

import (
	"context"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// ListingsSource pulls marketplace snapshots.
type ListingsSource interface {
	ConnectedRealmIDs(ctx context.Context, ns domain.Namespace) ([]int32, error)
	ConnectedRealm(ctx context.Context, ns domain.Namespace, crid int32) (domain.ConnectedRealm, error)
	Auctions(ctx context.Context, ns domain.Namespace, crid int32, faction domain.Faction) (*domain.AuctionsResponse, error)
	Commodities(ctx context.Context, ns domain.Namespace) (*domain.CommoditiesResponse, error)
}
