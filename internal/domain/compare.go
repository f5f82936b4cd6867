package domain

import "strings"

// CompareItemStrings orders keys by type, id, bonuses and mods. The order
// is stable across processes and is used wherever output must be
// deterministic.
func CompareItemStrings(a, b ItemString) int {
	switch {
	case a.Type != b.Type:
		if a.Type < b.Type {
			return -1
		}
		return 1
	case a.ID != b.ID:
		if a.ID < b.ID {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.bonuses, b.bonuses); c != 0 {
		return c
	}
	return strings.Compare(a.mods, b.mods)
}
