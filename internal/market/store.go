package market

import (
	"sort"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// Store is the persistent keyed collection of series. Keys keep the order
// they were first added in, so a saved store loads back identically.
//
// The numeric id index behind Query is built on the first Query and is not
// updated by later mutations; call Reindex after adding keys to make them
// visible to Query.
type Store struct {
	keys   []domain.ItemString
	series map[domain.ItemString]*Records

	indexed bool
	items   map[int32][]domain.ItemString
	pets    map[int32][]domain.ItemString
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{series: make(map[domain.ItemString]*Records)}
}

// Len returns the number of keys.
func (s *Store) Len() int { return len(s.keys) }

// Keys returns the keys in insertion order.
func (s *Store) Keys() []domain.ItemString {
	out := make([]domain.ItemString, len(s.keys))
	copy(out, s.keys)
	return out
}

// Get returns the series stored under key. The result aliases the store.
func (s *Store) Get(key domain.ItemString) (Records, bool) {
	rs, ok := s.series[key]
	if !ok {
		return nil, false
	}
	return *rs, true
}

// Set replaces the series stored under key.
func (s *Store) Set(key domain.ItemString, rs Records) {
	if cur, ok := s.series[key]; ok {
		*cur = rs
		return
	}
	s.keys = append(s.keys, key)
	s.series[key] = &rs
}

// Range calls fn for every key in insertion order until fn returns false.
func (s *Store) Range(fn func(domain.ItemString, Records) bool) {
	for _, k := range s.keys {
		if !fn(k, *s.series[k]) {
			return
		}
	}
}

func (s *Store) entry(key domain.ItemString) *Records {
	rs, ok := s.series[key]
	if !ok {
		rs = &Records{}
		s.series[key] = rs
		s.keys = append(s.keys, key)
	}
	return rs
}

// Add appends r to key's series. It returns the records added and whether
// the key's series was empty before.
func (s *Store) Add(key domain.ItemString, r domain.MarketValueRecord) (records, entries int) {
	rs := s.entry(key)
	if len(*rs) == 0 {
		entries = 1
	}
	return rs.Add(r), entries
}

// UpdateIncrement appends one cycle's records and returns the number of
// records and new entries added.
func (s *Store) UpdateIncrement(inc Increment) (records, entries int) {
	keys := make([]domain.ItemString, 0, len(inc))
	for k := range inc {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return domain.CompareItemStrings(keys[i], keys[j]) < 0 })
	for _, k := range keys {
		r, e := s.Add(k, inc[k])
		records += r
		entries += e
	}
	return records, entries
}

// Latest returns the newest record timestamp across every series, or 0 for
// an empty store.
func (s *Store) Latest() int32 {
	var latest int32
	for _, rs := range s.series {
		for _, r := range *rs {
			if r.Timestamp > latest {
				latest = r.Timestamp
			}
		}
	}
	return latest
}

// Extend merges every series of other into s and returns the number of
// records and new entries added. Merged series are sorted when sorted is set.
func (s *Store) Extend(other *Store, sorted bool) (records, entries int) {
	for _, k := range other.keys {
		for _, r := range *other.series[k] {
			n, e := s.Add(k, r.Clone())
			records += n
			entries += e
		}
		if sorted {
			s.entry(k).Sort()
		}
	}
	return records, entries
}

// Sort sorts every series.
func (s *Store) Sort() {
	for _, rs := range s.series {
		rs.Sort()
	}
}

// RemoveExpired drops records older than cutoff from every series.
func (s *Store) RemoveExpired(cutoff int64) int {
	var n int
	for _, rs := range s.series {
		n += rs.RemoveExpired(cutoff)
	}
	return n
}

// Compress compacts every series. See Records.Compress.
func (s *Store) Compress(now, retention, compactedBefore int64) int {
	var n int
	for _, rs := range s.series {
		n += rs.Compress(now, retention, compactedBefore)
	}
	return n
}

// RemoveEmptyEntries drops keys whose series is empty.
func (s *Store) RemoveEmptyEntries() int {
	kept := s.keys[:0]
	var n int
	for _, k := range s.keys {
		if len(*s.series[k]) == 0 {
			delete(s.series, k)
			n++
			continue
		}
		kept = append(kept, k)
	}
	s.keys = kept
	return n
}

// Reindex rebuilds the numeric id index from the current keys.
func (s *Store) Reindex() {
	s.items = make(map[int32][]domain.ItemString)
	s.pets = make(map[int32][]domain.ItemString)
	for _, k := range s.keys {
		switch k.Type {
		case domain.ItemStringItem:
			s.items[k.ID] = append(s.items[k.ID], k)
		case domain.ItemStringPet:
			s.pets[k.ID] = append(s.pets[k.ID], k)
		}
	}
	s.indexed = true
}

// Query returns a deep copy of every series whose key has numeric id id,
// items first, then pets.
func (s *Store) Query(id int32) *Store {
	if !s.indexed {
		s.Reindex()
	}
	out := NewStore()
	for _, group := range [][]domain.ItemString{s.items[id], s.pets[id]} {
		for _, k := range group {
			rs, ok := s.series[k]
			if !ok {
				continue
			}
			out.Set(k, rs.Clone())
		}
	}
	return out
}
