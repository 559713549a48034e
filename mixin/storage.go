// Package mixin caches compiled shader fragments and resolves mixin
// sources by name.
//
// A Storage is an explicitly constructed cache that is passed to every
// compilation sharing it. Entries are keyed by name and live as long as
// the Storage; there is no eviction, so callers should key entries with
// ContentName to avoid reusing a stale module.
package mixin

import (
	"slices"
	"sort"
	"sync"

	"github.com/gogpu/sdsl/spirv"
)

// Mixin is a named, compiled shader fragment.
type Mixin struct {
	Name   string
	Buffer spirv.Buffer
}

// Storage is a name-keyed mixin cache safe for concurrent use. All reads
// and writes go through a single mutex, so TryRegister and TryGet are
// atomic with respect to each other.
type Storage struct {
	mu     sync.Mutex
	mixins map[string]*Mixin
}

// NewStorage returns an empty cache.
func NewStorage() *Storage {
	return &Storage{mixins: make(map[string]*Mixin)}
}

// RegisterOrUpdate stores buf under name, replacing any existing entry.
// The stored entry is a copy; later changes to buf do not affect it.
func (s *Storage) RegisterOrUpdate(name string, buf spirv.Buffer) {
	m := &Mixin{Name: name, Buffer: slices.Clone(buf)}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.mixins[name] = m
}

// TryRegister stores buf under name unless an entry exists. It reports
// whether buf was stored.
func (s *Storage) TryRegister(name string, buf spirv.Buffer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	if _, ok := s.mixins[name]; ok {
		return false
	}
	s.mixins[name] = &Mixin{Name: name, Buffer: slices.Clone(buf)}
	return true
}

// TryGet returns the entry stored under name. Entries are never mutated
// in place; the caller must not modify the returned buffer.
func (s *Storage) TryGet(name string) (*Mixin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mixins[name]
	return m, ok
}

// Len returns the number of entries.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mixins)
}

// Names returns the names of all entries in sorted order.
func (s *Storage) Names() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.mixins))
	for name := range s.mixins {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)
	return names
}

// init makes the zero Storage usable. s.mu must be held.
func (s *Storage) init() {
	if s.mixins == nil {
		s.mixins = make(map[string]*Mixin)
	}
}
