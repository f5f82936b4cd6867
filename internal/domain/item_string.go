package domain

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// ItemStringType discriminates ordinary items from battle pets.
type ItemStringType uint8

const (
	ItemStringItem ItemStringType = iota
	ItemStringPet
)

// String returns the single-letter prefix used in the text form.
func (t ItemStringType) String() string {
	if t == ItemStringPet {
		return "p"
	}
	return "i"
}

// Modifier types that carry meaning for an item key.
const (
	ModTypePlayerLevel int32 = 9
	// Reserved sentinel types holding a derived item level. They never
	// appear in listing payloads.
	ModTypeAbsILvl int32 = -1
	ModTypeRelILvl int32 = -2

	DefaultPlayerLevel int32 = 1
)

// KeptModifierTypes is the allow-list of listing modifiers kept in a key.
var KeptModifierTypes = []int32{9, 29, 30}

// IsKeptModifier reports whether modifier type t survives key derivation.
func IsKeptModifier(t int32) bool {
	for _, k := range KeptModifierTypes {
		if k == t {
			return true
		}
	}
	return false
}

// ItemString is the canonical identity of a tradable variant. It is a
// comparable value: bonuses and mods are held as packed int32 strings so
// that == and map hashing are structural. A nil and an empty sequence pack
// identically.
type ItemString struct {
	Type    ItemStringType
	ID      int32
	bonuses string
	mods    string
}

// NewItemString builds a key from already filtered and ordered sequences.
// mods must have even length.
func NewItemString(typ ItemStringType, id int32, bonuses, mods []int32) (ItemString, error) {
	if len(mods)%2 != 0 {
		return ItemString{}, fmt.Errorf("%w: %v", ErrInvalidMods, mods)
	}
	return ItemString{
		Type:    typ,
		ID:      id,
		bonuses: pack(bonuses),
		mods:    pack(mods),
	}, nil
}

// ItemKey returns a plain item key with no bonuses or mods.
func ItemKey(id int32) ItemString {
	return ItemString{Type: ItemStringItem, ID: id}
}

// PetKey returns the key for a pet species.
func PetKey(speciesID int32) ItemString {
	return ItemString{Type: ItemStringPet, ID: speciesID}
}

// ILvlKey returns an item key carrying a derived item level.
func ILvlKey(id, ilvl int32, relative bool) ItemString {
	t := ModTypeAbsILvl
	if relative {
		t = ModTypeRelILvl
	}
	return ItemString{Type: ItemStringItem, ID: id, mods: pack([]int32{t, ilvl})}
}

// Bonuses returns a copy of the bonus ids, or nil.
func (s ItemString) Bonuses() []int32 { return unpack(s.bonuses) }

// Mods returns a copy of the flattened (type, value) pairs, or nil.
func (s ItemString) Mods() []int32 { return unpack(s.mods) }

// ItemLevel returns the derived item level when the key carries one.
func (s ItemString) ItemLevel() (ilvl int32, relative bool, ok bool) {
	mods := s.Mods()
	if len(mods) < 2 {
		return 0, false, false
	}
	switch mods[0] {
	case ModTypeAbsILvl:
		return mods[1], false, true
	case ModTypeRelILvl:
		return mods[1], true, true
	}
	return 0, false, false
}

// String renders the text form consumed by the exporter.
func (s ItemString) String() string {
	if ilvl, rel, ok := s.ItemLevel(); ok {
		prefix := s.Type.String() + ":" + strconv.FormatInt(int64(s.ID), 10) + "::"
		if !rel {
			return prefix + "i" + strconv.FormatInt(int64(ilvl), 10)
		}
		if ilvl > 0 {
			return prefix + "+" + strconv.FormatInt(int64(ilvl), 10)
		}
		return prefix + strconv.FormatInt(int64(ilvl), 10)
	}

	bonuses := s.Bonuses()
	mods := s.Mods()
	if len(bonuses) == 0 && len(mods) == 0 {
		if s.Type == ItemStringItem {
			return strconv.FormatInt(int64(s.ID), 10)
		}
		return s.Type.String() + ":" + strconv.FormatInt(int64(s.ID), 10)
	}

	parts := []string{s.Type.String(), strconv.FormatInt(int64(s.ID), 10), ""}
	if len(bonuses) > 0 {
		parts = append(parts, joinCounted(len(bonuses), bonuses))
	} else {
		parts = append(parts, "0")
	}
	if len(mods) > 0 {
		parts = append(parts, joinCounted(len(mods)/2, mods))
	}
	return strings.Join(parts, ":")
}

func joinCounted(n int, vals []int32) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(n))
	for _, v := range vals {
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(int64(v), 10))
	}
	return b.String()
}

func pack(vals []int32) string {
	if len(vals) == 0 {
		return ""
	}
	buf := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
	}
	return string(buf)
}

func unpack(s string) []int32 {
	if s == "" {
		return nil
	}
	out := make([]int32, len(s)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32([]byte(s[4*i : 4*i+4])))
	}
	return out
}
