package domain

import (
	"fmt"
	"sort"
)

// Meta is the per-namespace JSON document written after every update.
type Meta struct {
	Update          MetaUpdate            `json:"update"`
	ConnectedRealms map[int32][]MetaRealm `json:"connected_realms"`
	System          map[string]any        `json:"system,omitempty"`
}

// MetaUpdate records when the last update cycle ran.
type MetaUpdate struct {
	StartTS  int64 `json:"start_ts"`
	EndTS    int64 `json:"end_ts"`
	Duration int64 `json:"duration"`
}

// MetaRealm is the meta view of a realm.
type MetaRealm struct {
	Name       string `json:"name"`
	ID         int32  `json:"id"`
	Slug       string `json:"slug"`
	IsHardcore bool   `json:"is_hardcore"`
}

// RealmGroup is one connected realm as listed by Meta.RealmGroups.
type RealmGroup struct {
	CRID     int32
	Names    []string
	Hardcore bool
	// Mixed is set when hardcore and normal realms share the group.
	Mixed bool
}

// NewMeta returns an empty Meta.
func NewMeta() *Meta {
	return &Meta{ConnectedRealms: map[int32][]MetaRealm{}}
}

// AddConnectedRealm stores the realms of cr under crid.
func (m *Meta) AddConnectedRealm(crid int32, cr ConnectedRealm) error {
	if crid != cr.ID {
		return fmt.Errorf("%w: requested %d, got %d", ErrRealmMismatch, crid, cr.ID)
	}
	if m.ConnectedRealms == nil {
		m.ConnectedRealms = map[int32][]MetaRealm{}
	}
	realms := make([]MetaRealm, 0, len(cr.Realms))
	for _, r := range cr.Realms {
		realms = append(realms, MetaRealm{Name: r.Name, ID: r.ID, Slug: r.Slug, IsHardcore: r.IsHardcore})
	}
	m.ConnectedRealms[cr.ID] = realms
	return nil
}

// SetUpdateTS records the cycle bounds.
func (m *Meta) SetUpdateTS(start, end int64) {
	m.Update = MetaUpdate{StartTS: start, EndTS: end, Duration: end - start}
}

// SetSystem records host information.
func (m *Meta) SetSystem(system map[string]any) { m.System = system }

// UpdateTS returns the last cycle's start and end.
func (m *Meta) UpdateTS() (start, end int64) { return m.Update.StartTS, m.Update.EndTS }

// ConnectedRealmIDs returns the known connected realm ids in ascending order.
func (m *Meta) ConnectedRealmIDs() []int32 {
	ids := make([]int32, 0, len(m.ConnectedRealms))
	for id := range m.ConnectedRealms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ConnectedRealmNames returns every realm name across connected realms.
func (m *Meta) ConnectedRealmNames() []string {
	var names []string
	for _, id := range m.ConnectedRealmIDs() {
		for _, r := range m.ConnectedRealms[id] {
			names = append(names, r.Name)
		}
	}
	return names
}

// RealmGroups lists non-empty connected realms in ascending id order.
func (m *Meta) RealmGroups() []RealmGroup {
	var out []RealmGroup
	for _, id := range m.ConnectedRealmIDs() {
		realms := m.ConnectedRealms[id]
		if len(realms) == 0 {
			continue
		}
		var hc int
		names := make([]string, 0, len(realms))
		seen := make(map[string]bool, len(realms))
		for _, r := range realms {
			if r.IsHardcore {
				hc++
			}
			if !seen[r.Name] {
				seen[r.Name] = true
				names = append(names, r.Name)
			}
		}
		out = append(out, RealmGroup{
			CRID:     id,
			Names:    names,
			Hardcore: hc == len(realms),
			Mixed:    hc != 0 && hc != len(realms),
		})
	}
	return out
}
