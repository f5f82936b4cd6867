package domain

import (
	"errors"
	"testing"
)

func mustItemString(t *testing.T, typ ItemStringType, id int32, bonuses, mods []int32) ItemString {
	t.Helper()
	s, err := NewItemString(typ, id, bonuses, mods)
	if err != nil {
		t.Fatalf("NewItemString: %v", err)
	}
	return s
}

func TestItemStringString(t *testing.T) {
	tests := []struct {
		name string
		key  ItemString
		want string
	}{
		{"plain item", ItemKey(1), "1"},
		{"pet", PetKey(1), "p:1"},
		{"bonuses", mustItemString(t, ItemStringItem, 1, []int32{1, 2, 3}, nil), "i:1::3:1:2:3"},
		{"mods only", mustItemString(t, ItemStringItem, 1, nil, []int32{1, 1, 2, 2}), "i:1::0:2:1:1:2:2"},
		{"empty bonuses with mods", mustItemString(t, ItemStringItem, 1, []int32{}, []int32{9, 60}), "i:1::0:1:9:60"},
		{"bonuses and mods", mustItemString(t, ItemStringItem, 1, []int32{4, 5}, []int32{9, 60, 29, 1}), "i:1::2:4:5:2:9:60:29:1"},
		{"absolute ilvl", ILvlKey(1, 200, false), "i:1::i200"},
		{"positive relative ilvl", ILvlKey(1, 5, true), "i:1::+5"},
		{"negative relative ilvl", ILvlKey(1, -4, true), "i:1::-4"},
		{"zero relative ilvl", ILvlKey(1, 0, true), "i:1::0"},
		{"empty sequences", mustItemString(t, ItemStringItem, 1, []int32{}, []int32{}), "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Fatalf("String()=%q, want %q", got, tt.want)
			}
		})
	}
}

func TestItemStringEquality(t *testing.T) {
	a := mustItemString(t, ItemStringItem, 1, []int32{1, 2}, []int32{9, 60})
	b := mustItemString(t, ItemStringItem, 1, []int32{1, 2}, []int32{9, 60})
	c := mustItemString(t, ItemStringItem, 1, []int32{1, 3}, []int32{9, 60})
	if a != b {
		t.Fatal("equal keys compare unequal")
	}
	if a == c {
		t.Fatal("different bonuses compare equal")
	}
	if ItemKey(1) == PetKey(1) {
		t.Fatal("item and pet keys compare equal")
	}
	if mustItemString(t, ItemStringItem, 1, nil, nil) != mustItemString(t, ItemStringItem, 1, []int32{}, []int32{}) {
		t.Fatal("nil and empty sequences differ")
	}

	m := map[ItemString]int{a: 1}
	if m[b] != 1 {
		t.Fatal("map lookup by equal key failed")
	}
}

func TestItemStringRejectsOddMods(t *testing.T) {
	if _, err := NewItemString(ItemStringItem, 1, nil, []int32{9}); !errors.Is(err, ErrInvalidMods) {
		t.Fatalf("err=%v, want ErrInvalidMods", err)
	}
}

func TestItemStringAccessors(t *testing.T) {
	s := mustItemString(t, ItemStringItem, 1, []int32{-5, 7}, []int32{9, 60})
	bonuses := s.Bonuses()
	if len(bonuses) != 2 || bonuses[0] != -5 || bonuses[1] != 7 {
		t.Fatalf("Bonuses()=%v", bonuses)
	}
	bonuses[0] = 100
	if s.Bonuses()[0] != -5 {
		t.Fatal("Bonuses() aliases the key")
	}
	if _, _, ok := s.ItemLevel(); ok {
		t.Fatal("ItemLevel ok on a plain key")
	}

	ilvl, rel, ok := ILvlKey(1, -3, true).ItemLevel()
	if !ok || !rel || ilvl != -3 {
		t.Fatalf("ItemLevel=(%d,%v,%v)", ilvl, rel, ok)
	}
}

func TestCompareItemStrings(t *testing.T) {
	ordered := []ItemString{
		ItemKey(1),
		mustItemString(t, ItemStringItem, 1, []int32{1}, nil),
		ItemKey(2),
		PetKey(1),
	}
	for i := 0; i < len(ordered)-1; i++ {
		if CompareItemStrings(ordered[i], ordered[i+1]) >= 0 {
			t.Fatalf("%v should sort before %v", ordered[i], ordered[i+1])
		}
		if CompareItemStrings(ordered[i+1], ordered[i]) <= 0 {
			t.Fatalf("%v should sort after %v", ordered[i+1], ordered[i])
		}
	}
	if CompareItemStrings(ItemKey(1), ItemKey(1)) != 0 {
		t.Fatal("equal keys not equal")
	}
}
