// Package itemdb encodes a market.Store in its on-disk protobuf wire form:
//
//	ItemDB            { repeated Item items = 1; }
//	Item              { ItemString item_string = 1; repeated MarketValueRecord market_value_records = 2; }
//	ItemString        { ItemStringType type = 1; int32 id = 2; repeated int32 bonus = 3; repeated int32 mods = 4; }
//	MarketValueRecord { int32 timestamp = 1; int64 market_value = 2; int32 num_auctions = 3; int64 min_buyout = 4; }
//
// Scalars carry no presence, so absent fields decode as zero.
package itemdb

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/alanyoungcy/auctiondb/internal/domain"
	"github.com/alanyoungcy/auctiondb/internal/market"
)

// ErrCorrupt is returned for payloads that are not a valid item database.
var ErrCorrupt = errors.New("itemdb: corrupt payload")

const (
	fieldItems = 1

	fieldItemString = 1
	fieldRecords    = 2

	fieldType    = 1
	fieldID      = 2
	fieldBonuses = 3
	fieldMods    = 4

	fieldTimestamp   = 1
	fieldMarketValue = 2
	fieldNumAuctions = 3
	fieldMinBuyout   = 4
)

// Encode serializes s. Keys with an empty series are skipped.
func Encode(s *market.Store) []byte {
	var out []byte
	s.Range(func(key domain.ItemString, rs market.Records) bool {
		if len(rs) == 0 {
			return true
		}
		out = protowire.AppendTag(out, fieldItems, protowire.BytesType)
		out = protowire.AppendBytes(out, encodeItem(key, rs))
		return true
	})
	return out
}

func encodeItem(key domain.ItemString, rs market.Records) []byte {
	b := protowire.AppendTag(nil, fieldItemString, protowire.BytesType)
	b = protowire.AppendBytes(b, encodeItemString(key))
	for _, r := range rs {
		b = protowire.AppendTag(b, fieldRecords, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeRecord(r))
	}
	return b
}

func encodeItemString(key domain.ItemString) []byte {
	var b []byte
	b = appendInt(b, fieldType, int64(key.Type))
	b = appendInt(b, fieldID, int64(key.ID))
	b = appendPacked(b, fieldBonuses, key.Bonuses())
	b = appendPacked(b, fieldMods, key.Mods())
	return b
}

func encodeRecord(r domain.MarketValueRecord) []byte {
	var b []byte
	b = appendInt(b, fieldTimestamp, int64(r.Timestamp))
	b = appendInt(b, fieldMarketValue, r.Value())
	b = appendInt(b, fieldNumAuctions, int64(r.NumAuctions))
	b = appendInt(b, fieldMinBuyout, r.Buyout())
	return b
}

// appendInt writes a varint field, omitting zero. Negative values are sign
// extended to ten bytes as protobuf does for int32 and int64.
func appendInt(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendPacked(b []byte, num protowire.Number, vals []int32) []byte {
	if len(vals) == 0 {
		return b
	}
	var packed []byte
	for _, v := range vals {
		packed = protowire.AppendVarint(packed, uint64(int64(v)))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

// Decode parses an encoded store. Unknown fields are skipped.
func Decode(data []byte) (*market.Store, error) {
	s := market.NewStore()
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldItems || typ != protowire.BytesType {
			return skip(num, typ, b)
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, corrupt("item", n)
		}
		key, rs, err := decodeItem(raw)
		if err != nil {
			return 0, err
		}
		if cur, ok := s.Get(key); ok {
			rs = append(cur, rs...)
		}
		s.Set(key, rs)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func decodeItem(data []byte) (domain.ItemString, market.Records, error) {
	var (
		typ     int64
		id      int64
		bonuses []int32
		mods    []int32
		rs      market.Records
	)
	err := walk(data, func(num protowire.Number, wt protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldItemString && wt == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, corrupt("item string", n)
			}
			err := walk(raw, func(num protowire.Number, wt protowire.Type, b []byte) (int, error) {
				switch num {
				case fieldType:
					return consumeInt(wt, b, &typ)
				case fieldID:
					return consumeInt(wt, b, &id)
				case fieldBonuses:
					return consumeRepeated(wt, b, &bonuses)
				case fieldMods:
					return consumeRepeated(wt, b, &mods)
				}
				return skip(num, wt, b)
			})
			return n, err
		case num == fieldRecords && wt == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, corrupt("record", n)
			}
			r, err := decodeRecord(raw)
			if err != nil {
				return 0, err
			}
			rs = append(rs, r)
			return n, nil
		}
		return skip(num, wt, b)
	})
	if err != nil {
		return domain.ItemString{}, nil, err
	}

	if typ != int64(domain.ItemStringItem) && typ != int64(domain.ItemStringPet) {
		return domain.ItemString{}, nil, fmt.Errorf("%w: item string type %d", ErrCorrupt, typ)
	}
	key, err := domain.NewItemString(domain.ItemStringType(typ), int32(id), bonuses, mods)
	if err != nil {
		return domain.ItemString{}, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return key, rs, nil
}

func decodeRecord(data []byte) (domain.MarketValueRecord, error) {
	var ts, mv, num, minBuyout int64
	err := walk(data, func(n protowire.Number, wt protowire.Type, b []byte) (int, error) {
		switch n {
		case fieldTimestamp:
			return consumeInt(wt, b, &ts)
		case fieldMarketValue:
			return consumeInt(wt, b, &mv)
		case fieldNumAuctions:
			return consumeInt(wt, b, &num)
		case fieldMinBuyout:
			return consumeInt(wt, b, &minBuyout)
		}
		return skip(n, wt, b)
	})
	if err != nil {
		return domain.MarketValueRecord{}, err
	}
	return domain.MarketValueRecord{
		Timestamp:   int32(ts),
		MarketValue: domain.Int64(mv),
		NumAuctions: int32(num),
		MinBuyout:   domain.Int64(minBuyout),
	}, nil
}

// walk calls fn for every field of a message. fn consumes the field value
// following the tag and returns the bytes read.
func walk(data []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return corrupt("tag", n)
		}
		data = data[n:]
		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		data = data[m:]
	}
	return nil
}

func skip(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, corrupt("field", n)
	}
	return n, nil
}

func consumeInt(typ protowire.Type, b []byte, dst *int64) (int, error) {
	if typ != protowire.VarintType {
		return 0, fmt.Errorf("%w: wire type %d for integer field", ErrCorrupt, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, corrupt("varint", n)
	}
	*dst = int64(v)
	return n, nil
}

// consumeRepeated accepts both packed and unpacked encodings.
func consumeRepeated(typ protowire.Type, b []byte, dst *[]int32) (int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return 0, corrupt("varint", n)
		}
		*dst = append(*dst, int32(v))
		return n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, corrupt("packed field", n)
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return 0, corrupt("packed varint", m)
			}
			*dst = append(*dst, int32(v))
			packed = packed[m:]
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: wire type %d for repeated field", ErrCorrupt, typ)
}

func corrupt(what string, n int) error {
	return fmt.Errorf("%w: %s: %v", ErrCorrupt, what, protowire.ParseError(n))
}
