// Package bonus holds the static bonus-id metadata used to canonicalize item
// keys and derive effective item levels.
package bonus

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
)

// ErrInvalidCurve is returned when a level curve has no usable points.
var ErrInvalidCurve = errors.New("bonus: invalid curve points")

// Info is the item-level metadata of one bonus id. A nil field means the
// bonus does not carry it.
type Info struct {
	Level     *int32 `json:"level,omitempty"`
	BaseLevel *int32 `json:"base_level,omitempty"`
	CurveID   *int32 `json:"curveId,omitempty"`
	// Points maps player level to item level, ascending by player level.
	Points [][2]float64 `json:"points,omitempty"`
}

// Table is an immutable lookup of bonus id to Info. A nil *Table behaves as
// an empty table.
type Table struct {
	infos map[int32]Info
}

// NewTable wraps infos. The map must not be modified afterwards.
func NewTable(infos map[int32]Info) *Table {
	if infos == nil {
		infos = map[int32]Info{}
	}
	return &Table{infos: infos}
}

// Load reads a JSON object keyed by decimal bonus id.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bonus: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes the JSON form accepted by Load.
func Parse(raw []byte) (*Table, error) {
	var byKey map[string]Info
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, fmt.Errorf("bonus: decode: %w", err)
	}
	infos := make(map[int32]Info, len(byKey))
	for k, v := range byKey {
		id, err := strconv.ParseInt(k, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bonus: bad bonus id %q: %w", k, err)
		}
		infos[int32(id)] = v
	}
	return NewTable(infos), nil
}

// Len returns the number of known bonus ids.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.infos)
}

// Has reports whether id is a known bonus.
func (t *Table) Has(id int32) bool {
	if t == nil {
		return false
	}
	_, ok := t.infos[id]
	return ok
}

// Filter returns the ids present in the table, in input order.
func (t *Table) Filter(ids []int32) []int32 {
	out := make([]int32, 0, len(ids))
	for _, id := range ids {
		if t.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// ItemLevel derives an effective item level from bonuses at player level
// plvl. ok is false when the bonuses carry no level information or the
// result is negative. relative marks a signed offset rather than an
// absolute level. A level curve always overrides flat base and offset
// information; among several curves the greatest curve id wins.
func (t *Table) ItemLevel(bonuses []int32, plvl int32) (ilvl int32, relative bool, ok bool, err error) {
	if len(bonuses) == 0 || t == nil {
		return 0, false, false, nil
	}

	var (
		rel, base         int32
		hasBase, hasCurve bool
		curve             Info
	)
	for _, bid := range bonuses {
		info, known := t.infos[bid]
		if !known {
			continue
		}
		switch {
		case info.Level != nil:
			rel += *info.Level
		case info.BaseLevel != nil:
			if base == 0 {
				base = *info.BaseLevel
			}
			hasBase = true
		case info.CurveID != nil:
			if !hasCurve || *info.CurveID >= *curve.CurveID {
				curve = info
			}
			hasCurve = true
		}
	}

	switch {
	case base == 0 && rel == 0 && !hasCurve:
		return 0, false, false, nil
	case !hasCurve && !hasBase:
		return rel, true, true, nil
	case !hasCurve:
		if base+rel < 0 {
			return 0, false, false, nil
		}
		return base + rel, false, true, nil
	}

	v, err := interpolate(curve.Points, plvl)
	if err != nil {
		return 0, false, false, fmt.Errorf("curve %d: %w", *curve.CurveID, err)
	}
	if v < 0 {
		return 0, false, false, nil
	}
	return v, false, true, nil
}

func interpolate(points [][2]float64, plvl int32) (int32, error) {
	if len(points) == 0 {
		return 0, ErrInvalidCurve
	}
	x := float64(plvl)
	x = math.Max(x, points[0][0])
	x = math.Min(x, points[len(points)-1][0])

	var lo, hi *[2]float64
	for i := range points {
		p := &points[i]
		if p[0] == x {
			return int32(math.Round(p[1])), nil
		}
		if p[0] > x {
			hi = p
			break
		}
		lo = p
	}
	if lo == nil || hi == nil || hi[0] == lo[0] {
		return 0, ErrInvalidCurve
	}
	y := (x-lo[0])*(hi[1]-lo[1])/(hi[0]-lo[0]) + lo[1]
	return int32(math.Round(y)), nil
}
