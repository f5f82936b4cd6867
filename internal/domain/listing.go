package domain

import "fmt"

// TimeLeft is the coarse remaining duration of a listing.
type TimeLeft string

const (
	TimeLeftVeryLong  TimeLeft = "VERY_LONG"
	TimeLeftLong      TimeLeft = "LONG"
	TimeLeftMedium    TimeLeft = "MEDIUM"
	TimeLeftShort     TimeLeft = "SHORT"
	TimeLeftVeryShort TimeLeft = "VERY_SHORT"
)

// ListingItem is the item reference carried by a listing. It is either an
// AuctionItem or a CommodityItem.
type ListingItem interface {
	ItemID() int32
}

// Modifier is a (type, value) pair attached to an auction item.
type Modifier struct {
	Type  int32 `json:"type"`
	Value int32 `json:"value"`
}

// AuctionItem is the item of a fixed-price or bid listing. Pet attributes
// are either all present or all absent.
type AuctionItem struct {
	ID           int32      `json:"id"`
	Context      *int32     `json:"context,omitempty"`
	BonusLists   []int32    `json:"bonus_lists,omitempty"`
	Modifiers    []Modifier `json:"modifiers,omitempty"`
	PetBreedID   *int32     `json:"pet_breed_id,omitempty"`
	PetLevel     *int32     `json:"pet_level,omitempty"`
	PetQualityID *int32     `json:"pet_quality_id,omitempty"`
	PetSpeciesID *int32     `json:"pet_species_id,omitempty"`

	// Classic only.
	Seed *int64 `json:"seed,omitempty"`
	Rand *int64 `json:"rand,omitempty"`
}

// ItemID implements ListingItem.
func (i AuctionItem) ItemID() int32 { return i.ID }

// IsPet reports whether the item is a battle pet.
func (i AuctionItem) IsPet() bool { return i.PetSpeciesID != nil }

// Validate rejects partially present pet attributes.
func (i AuctionItem) Validate() error {
	fields := []*int32{i.PetBreedID, i.PetLevel, i.PetQualityID, i.PetSpeciesID}
	var set int
	for _, f := range fields {
		if f != nil && *f != 0 {
			set++
		}
	}
	if set != 0 && set != len(fields) {
		return fmt.Errorf("%w: item %d: missing pet field", ErrMalformedListing, i.ID)
	}
	return nil
}

// CommodityItem is the item of a region-wide unit-priced listing.
type CommodityItem struct {
	ID int32 `json:"id"`
}

// ItemID implements ListingItem.
func (i CommodityItem) ItemID() int32 { return i.ID }

// Listing is the uniform view over the two listing shapes.
type Listing interface {
	ItemRef() ListingItem
	// Price is the buyout, or the bid when there is no buyout.
	Price() int64
	// BuyoutPrice returns the buyout when one is set.
	BuyoutPrice() (int64, bool)
	Count() int64
	Validate() error
}

// Auction is a per-realm listing with an optional bid and buyout.
type Auction struct {
	ID       int64       `json:"id"`
	Item     AuctionItem `json:"item"`
	Bid      *int64      `json:"bid,omitempty"`
	Buyout   *int64      `json:"buyout,omitempty"`
	Quantity int64       `json:"quantity"`
	TimeLeft TimeLeft    `json:"time_left"`
}

func (a Auction) ItemRef() ListingItem { return a.Item }

func (a Auction) Price() int64 {
	if a.Buyout != nil && *a.Buyout != 0 {
		return *a.Buyout
	}
	if a.Bid != nil {
		return *a.Bid
	}
	return 0
}

func (a Auction) BuyoutPrice() (int64, bool) {
	if a.Buyout == nil {
		return 0, false
	}
	return *a.Buyout, true
}

func (a Auction) Count() int64 { return a.Quantity }

func (a Auction) Validate() error {
	if a.Bid == nil && a.Buyout == nil {
		return fmt.Errorf("%w: auction %d: neither bid nor buyout", ErrMalformedListing, a.ID)
	}
	if a.Quantity <= 0 {
		return fmt.Errorf("%w: auction %d: quantity %d", ErrMalformedListing, a.ID, a.Quantity)
	}
	return a.Item.Validate()
}

// Commodity is a region-wide listing priced per unit.
type Commodity struct {
	ID        int64         `json:"id"`
	Item      CommodityItem `json:"item"`
	Quantity  int64         `json:"quantity"`
	UnitPrice int64         `json:"unit_price"`
	TimeLeft  TimeLeft      `json:"time_left"`
}

func (c Commodity) ItemRef() ListingItem { return c.Item }

func (c Commodity) Price() int64 { return c.UnitPrice }

func (c Commodity) BuyoutPrice() (int64, bool) { return c.UnitPrice, true }

func (c Commodity) Count() int64 { return c.Quantity }

func (c Commodity) Validate() error {
	if c.Quantity <= 0 {
		return fmt.Errorf("%w: commodity %d: quantity %d", ErrMalformedListing, c.ID, c.Quantity)
	}
	return nil
}

// ListingsResponse is one snapshot of a marketplace.
type ListingsResponse interface {
	Listings() []Listing
	SnapshotTime() int32
}

// AuctionsResponse is a connected realm's auction snapshot.
type AuctionsResponse struct {
	Auctions  []Auction `json:"auctions"`
	Timestamp int32     `json:"-"`
}

func (r *AuctionsResponse) Listings() []Listing {
	out := make([]Listing, len(r.Auctions))
	for i := range r.Auctions {
		out[i] = r.Auctions[i]
	}
	return out
}

func (r *AuctionsResponse) SnapshotTime() int32 { return r.Timestamp }

// CommoditiesResponse is a region's commodity snapshot.
type CommoditiesResponse struct {
	Auctions  []Commodity `json:"auctions"`
	Timestamp int32       `json:"-"`
}

func (r *CommoditiesResponse) Listings() []Listing {
	out := make([]Listing, len(r.Auctions))
	for i := range r.Auctions {
		out[i] = r.Auctions[i]
	}
	return out
}

func (r *CommoditiesResponse) SnapshotTime() int32 { return r.Timestamp }
