package market

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/alanyoungcy/auctiondb/internal/bonus"
	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// Keyer derives canonical keys from listing items.
type Keyer struct {
	bonuses *bonus.Table
	logger  *slog.Logger
}

// NewKeyer returns a Keyer filtering bonuses through table.
func NewKeyer(table *bonus.Table, logger *slog.Logger) *Keyer {
	return &Keyer{
		bonuses: table,
		logger:  logger.With(slog.String("component", "keyer")),
	}
}

// FromItem returns the key for item. Malformed items return an error
// wrapping domain.ErrMalformedListing.
func (k *Keyer) FromItem(item domain.ListingItem) (domain.ItemString, error) {
	switch it := item.(type) {
	case domain.AuctionItem:
		return k.fromAuctionItem(it)
	case domain.CommodityItem:
		return domain.ItemKey(it.ID), nil
	default:
		return domain.ItemString{}, fmt.Errorf("%w: unknown item type %T", domain.ErrMalformedListing, item)
	}
}

func (k *Keyer) fromAuctionItem(it domain.AuctionItem) (domain.ItemString, error) {
	if err := it.Validate(); err != nil {
		return domain.ItemString{}, err
	}
	if it.IsPet() {
		return domain.PetKey(*it.PetSpeciesID), nil
	}

	var bonuses []int32
	if len(it.BonusLists) > 0 {
		bonuses = k.bonuses.Filter(it.BonusLists)
	}

	plvl := domain.DefaultPlayerLevel
	var mods []int32
	if len(it.Modifiers) > 0 {
		kept := make([]domain.Modifier, 0, len(it.Modifiers))
		for _, m := range it.Modifiers {
			if !domain.IsKeptModifier(m.Type) {
				continue
			}
			if m.Type == domain.ModTypePlayerLevel {
				plvl = m.Value
			}
			kept = append(kept, m)
		}
		sort.Slice(kept, func(i, j int) bool {
			if kept[i].Type != kept[j].Type {
				return kept[i].Type < kept[j].Type
			}
			return kept[i].Value < kept[j].Value
		})
		mods = make([]int32, 0, 2*len(kept))
		for _, m := range kept {
			mods = append(mods, m.Type, m.Value)
		}
	}

	ilvl, relative, ok, err := k.bonuses.ItemLevel(bonuses, plvl)
	if err != nil {
		k.logger.Warn("item level derivation failed",
			slog.Int("item_id", int(it.ID)),
			slog.Any("bonuses", bonuses),
			slog.String("error", err.Error()),
		)
		ok = false
	}
	if ok {
		return domain.ILvlKey(it.ID, ilvl, relative), nil
	}

	sort.Slice(bonuses, func(i, j int) bool { return bonuses[i] < bonuses[j] })
	return domain.NewItemString(domain.ItemStringItem, it.ID, bonuses, mods)
}
