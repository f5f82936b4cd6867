package domain

import (
	"fmt"
	"strings"
)

// Region is a marketplace region.
type Region string

const (
	RegionUS Region = "us"
	RegionEU Region = "eu"
	RegionKR Region = "kr"
	RegionTW Region = "tw"
)

// ParseRegion validates a region string.
func ParseRegion(s string) (Region, error) {
	switch r := Region(strings.ToLower(s)); r {
	case RegionUS, RegionEU, RegionKR, RegionTW:
		return r, nil
	}
	return "", fmt.Errorf("invalid region %q", s)
}

// GameVersion selects the game flavor. Retail is the empty string.
type GameVersion string

const (
	GameVersionRetail     GameVersion = ""
	GameVersionClassic    GameVersion = "classic1x"
	GameVersionClassicWLK GameVersion = "classic"
)

// ParseGameVersion accepts "", "retail", "classic1x" and "classic".
func ParseGameVersion(s string) (GameVersion, error) {
	switch s {
	case "", "retail":
		return GameVersionRetail, nil
	case string(GameVersionClassic):
		return GameVersionClassic, nil
	case string(GameVersionClassicWLK):
		return GameVersionClassicWLK, nil
	}
	return "", fmt.Errorf("invalid game version %q", s)
}

// IsClassic reports whether prices are quoted per stack.
func (v GameVersion) IsClassic() bool {
	return v == GameVersionClassic || v == GameVersionClassicWLK
}

// GameVersions lists every supported game version.
var GameVersions = []GameVersion{GameVersionRetail, GameVersionClassic, GameVersionClassicWLK}

// FolderName is the game client's install folder for the version.
func (v GameVersion) FolderName() string {
	switch v {
	case GameVersionClassic:
		return "_classic_era_"
	case GameVersionClassicWLK:
		return "_classic_"
	default:
		return "_retail_"
	}
}

// Faction splits classic auction houses.
type Faction string

const (
	FactionNone     Faction = ""
	FactionAlliance Faction = "a"
	FactionHorde    Faction = "h"
)

// FullName returns the name used by the upstream API.
func (f Faction) FullName() string {
	switch f {
	case FactionAlliance:
		return "Alliance"
	case FactionHorde:
		return "Horde"
	}
	return ""
}

// NamespaceCategory is the API namespace category.
type NamespaceCategory string

const (
	CategoryDynamic NamespaceCategory = "dynamic"
	CategoryStatic  NamespaceCategory = "static"
)

// Namespace identifies a data partition such as "dynamic-us" or
// "dynamic-classic-eu".
type Namespace struct {
	Category    NamespaceCategory
	GameVersion GameVersion
	Region      Region
}

// String joins the non-empty parts with "-".
func (n Namespace) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{string(n.Category), string(n.GameVersion), string(n.Region)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

// Locale returns the default locale for realm names in the region.
func (n Namespace) Locale() string {
	switch n.Region {
	case RegionKR:
		return "ko_KR"
	case RegionTW:
		return "zh_TW"
	}
	return "en_US"
}

// ParseNamespace parses the String form.
func ParseNamespace(s string) (Namespace, error) {
	parts := strings.Split(s, "-")
	var ns Namespace
	var region string
	switch len(parts) {
	case 3:
		ns.Category = NamespaceCategory(parts[0])
		ns.GameVersion = GameVersion(parts[1])
		region = parts[2]
	case 2:
		ns.Category = NamespaceCategory(parts[0])
		region = parts[1]
	default:
		return Namespace{}, fmt.Errorf("invalid namespace %q", s)
	}
	if ns.Category != CategoryDynamic && ns.Category != CategoryStatic {
		return Namespace{}, fmt.Errorf("invalid namespace category %q", ns.Category)
	}
	if ns.GameVersion != GameVersionRetail && !ns.GameVersion.IsClassic() {
		return Namespace{}, fmt.Errorf("invalid namespace game version %q", ns.GameVersion)
	}
	r, err := ParseRegion(region)
	if err != nil {
		return Namespace{}, err
	}
	ns.Region = r
	return ns, nil
}

// Realm is one realm inside a connected realm.
type Realm struct {
	ID         int32  `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	IsHardcore bool   `json:"is_hardcore"`
	Timezone   string `json:"timezone,omitempty"`
	Locale     string `json:"locale,omitempty"`
}

// ConnectedRealm groups realms sharing one auction house.
type ConnectedRealm struct {
	ID     int32   `json:"id"`
	Realms []Realm `json:"realms"`
}
