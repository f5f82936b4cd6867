package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// DBType is the kind of data a file holds.
type DBType string

const (
	DBTypeAuctions    DBType = "auctions"
	DBTypeCommodities DBType = "commodities"
	DBTypeMeta        DBType = "meta"
)

// DBExt is a file extension. gz marks a compressed store.
type DBExt string

const (
	DBExtGZ   DBExt = "gz"
	DBExtBin  DBExt = "bin"
	DBExtJSON DBExt = "json"
)

// DBFileName names a store or meta file, e.g. "dynamic-us_auctions_1.gz"
// or "dynamic-classic-eu_auctions_4_a.bin". CRID 0 means no connected realm.
type DBFileName struct {
	Namespace Namespace
	Type      DBType
	CRID      int32
	Faction   Faction
	Ext       DBExt
}

// Validate enforces the combinations of type, extension, connected realm
// and faction that can exist.
func (n DBFileName) Validate() error {
	switch n.Type {
	case DBTypeMeta:
		if n.Ext != DBExtJSON {
			return fmt.Errorf("%w: meta files must be json", ErrInvalidFileName)
		}
	case DBTypeAuctions, DBTypeCommodities:
		if n.Ext != DBExtBin && n.Ext != DBExtGZ {
			return fmt.Errorf("%w: %s files must be bin or gz", ErrInvalidFileName, n.Type)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidFileName, n.Type)
	}

	if n.Type == DBTypeAuctions && n.CRID == 0 {
		return fmt.Errorf("%w: auctions need a connected realm id", ErrInvalidFileName)
	}
	if n.Type != DBTypeAuctions && n.CRID != 0 {
		return fmt.Errorf("%w: %s files take no connected realm id", ErrInvalidFileName, n.Type)
	}
	if n.Type == DBTypeCommodities && n.Namespace.GameVersion != GameVersionRetail {
		return fmt.Errorf("%w: commodities only exist on retail", ErrInvalidFileName)
	}

	if n.Namespace.GameVersion == GameVersionRetail {
		if n.Faction != FactionNone {
			return fmt.Errorf("%w: retail files take no faction", ErrInvalidFileName)
		}
	} else if n.Type != DBTypeMeta && n.Faction == FactionNone {
		return fmt.Errorf("%w: classic %s files need a faction", ErrInvalidFileName, n.Type)
	}
	if n.Faction != FactionNone && n.Faction != FactionAlliance && n.Faction != FactionHorde {
		return fmt.Errorf("%w: unknown faction %q", ErrInvalidFileName, n.Faction)
	}
	return nil
}

// IsCompressed reports whether the file payload is gzip compressed.
func (n DBFileName) IsCompressed() bool { return n.Ext == DBExtGZ }

func (n DBFileName) String() string {
	parts := []string{n.Namespace.String(), string(n.Type)}
	if n.CRID != 0 {
		parts = append(parts, strconv.FormatInt(int64(n.CRID), 10))
	}
	if n.Faction != FactionNone {
		parts = append(parts, string(n.Faction))
	}
	return strings.Join(parts, "_") + "." + string(n.Ext)
}

// ParseDBFileName parses and validates a file name produced by String.
func ParseDBFileName(name string) (DBFileName, error) {
	base, ext, ok := strings.Cut(name, ".")
	if !ok || strings.Contains(ext, ".") {
		return DBFileName{}, fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	parts := strings.Split(base, "_")
	if len(parts) < 2 || len(parts) > 4 {
		return DBFileName{}, fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	ns, err := ParseNamespace(parts[0])
	if err != nil {
		return DBFileName{}, fmt.Errorf("%w: %v", ErrInvalidFileName, err)
	}
	out := DBFileName{Namespace: ns, Type: DBType(parts[1]), Ext: DBExt(ext)}
	if len(parts) >= 3 {
		crid, err := strconv.ParseInt(parts[2], 10, 32)
		if err != nil || crid <= 0 {
			return DBFileName{}, fmt.Errorf("%w: bad connected realm id in %q", ErrInvalidFileName, name)
		}
		out.CRID = int32(crid)
	}
	if len(parts) == 4 {
		out.Faction = Faction(parts[3])
	}
	if err := out.Validate(); err != nil {
		return DBFileName{}, err
	}
	return out, nil
}
