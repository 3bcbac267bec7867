package presence

import (
	"sort"
	"sync"
	"time"
)

// Classification reports what UpsertAndClassify found before writing.
type Classification int

const (
	// WasAbsent means no record existed and one was created.
	WasAbsent Classification = iota
	// WasPresent means an existing record had its LastSeen refreshed.
	WasPresent
)

func (c Classification) String() string {
	if c == WasAbsent {
		return "absent"
	}
	return "present"
}

// Record is the presence entry for one tracked value.
type Record struct {
	Value    string
	LastSeen time.Time
	// Since is when the current presence period started.
	Since time.Time
}

// Store is a thread-safe map of currently present values, keyed by value.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Record
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{data: make(map[string]*Record)}
}

// UpsertAndClassify creates the record for value if none exists and reports
// WasAbsent, or refreshes LastSeen on the existing record and reports
// WasPresent. The lookup and the write happen under one lock acquisition, so
// concurrent callers for the same absent value see exactly one WasAbsent.
func (s *Store) UpsertAndClassify(value string, now time.Time) Classification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.data[value]; ok {
		r.LastSeen = now
		return WasPresent
	}
	s.data[value] = &Record{Value: value, LastSeen: now, Since: now}
	return WasAbsent
}

// EvictOlderThan removes every record whose age (now - LastSeen) is at least
// maxAge and returns the removed values, sorted.
func (s *Store) EvictOlderThan(maxAge time.Duration, now time.Time) []string {
	s.mu.Lock()
	var evicted []string
	for v, r := range s.data {
		if now.Sub(r.LastSeen) >= maxAge {
			delete(s.data, v)
			evicted = append(evicted, v)
		}
	}
	s.mu.Unlock()

	sort.Strings(evicted)
	return evicted
}

// Get returns a copy of the record for value and whether it exists.
func (s *Store) Get(value string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[value]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// List returns copies of all records, sorted by value.
func (s *Store) List() []Record {
	s.mu.RLock()
	out := make([]Record, 0, len(s.data))
	for _, r := range s.data {
		out = append(out, *r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// Len returns the number of present values.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
