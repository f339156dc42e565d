package concepts

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/poiesic/termbridge/core"
)

// LoadReport summarizes one Load call.
type LoadReport struct {
	System     core.System
	Loaded     int // records accepted, including duplicates
	Rejected   int // records that failed validation
	Duplicates int // records that replaced an earlier record with the same code
}

// Snapshot is an immutable view of every loaded concept.
type Snapshot struct {
	bySystem map[core.System][]*core.Concept
	byID     map[string]*core.Concept
}

// NewSnapshot builds a snapshot from already-normalized concepts. Later
// concepts replace earlier ones with the same identity, keeping the first
// position.
func NewSnapshot(concepts []*core.Concept) *Snapshot {
	snap := &Snapshot{
		bySystem: make(map[core.System][]*core.Concept),
		byID:     make(map[string]*core.Concept, len(concepts)),
	}
	for _, c := range concepts {
		snap.put(c)
	}
	return snap
}

func (s *Snapshot) put(c *core.Concept) bool {
	id := c.ID()
	if _, exists := s.byID[id]; exists {
		list := s.bySystem[c.System]
		for i, old := range list {
			if old.Code == c.Code {
				list[i] = c
				break
			}
		}
		s.byID[id] = c
		return true
	}
	s.byID[id] = c
	s.bySystem[c.System] = append(s.bySystem[c.System], c)
	return false
}

// Get returns the concept with the given code, or core.ErrConceptNotFound.
func (s *Snapshot) Get(system core.System, code string) (*core.Concept, error) {
	if c, ok := s.byID[core.ConceptID(system, code)]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrConceptNotFound, core.ConceptID(system, code))
}

// Lookup resolves a "SYSTEM:code" identity.
func (s *Snapshot) Lookup(id string) (*core.Concept, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// All returns the concepts of one system in insertion order.
func (s *Snapshot) All(system core.System) []*core.Concept {
	list := s.bySystem[system]
	out := make([]*core.Concept, len(list))
	copy(out, list)
	return out
}

// Concepts returns every concept, grouped by system in canonical order.
func (s *Snapshot) Concepts() []*core.Concept {
	out := make([]*core.Concept, 0, len(s.byID))
	for _, sys := range core.Systems {
		out = append(out, s.bySystem[sys]...)
	}
	return out
}

// Count returns the total number of concepts.
func (s *Snapshot) Count() int {
	return len(s.byID)
}

// CountBySystem returns the number of concepts in one system.
func (s *Snapshot) CountBySystem(system core.System) int {
	return len(s.bySystem[system])
}

// Systems returns the systems that have at least one concept, in canonical order.
func (s *Snapshot) Systems() []core.System {
	var out []core.System
	for _, sys := range core.Systems {
		if len(s.bySystem[sys]) > 0 {
			out = append(out, sys)
		}
	}
	return out
}

// Diff returns, in canonical order, the systems whose concept lists differ
// between s and other. Concepts compare by identity, so a snapshot derived
// by loading into a clone reports only the systems that were loaded.
func (s *Snapshot) Diff(other *Snapshot) []core.System {
	var changed []core.System
	for _, sys := range core.Systems {
		if !slices.Equal(s.bySystem[sys], other.bySystem[sys]) {
			changed = append(changed, sys)
		}
	}
	return changed
}

func (s *Snapshot) clone() *Snapshot {
	next := &Snapshot{
		bySystem: make(map[core.System][]*core.Concept, len(s.bySystem)),
		byID:     make(map[string]*core.Concept, len(s.byID)),
	}
	for sys, list := range s.bySystem {
		next.bySystem[sys] = append([]*core.Concept(nil), list...)
	}
	for id, c := range s.byID {
		next.byID[id] = c
	}
	return next
}

// Store is the concurrent concept store.
type Store struct {
	current   atomic.Pointer[Snapshot]
	mu        sync.Mutex
	listeners []func(Change)
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "concept-store")
		return nil
	}
}

// New creates an empty store.
func New(opts ...Option) (*Store, error) {
	s := &Store{logger: slog.Default().With("component", "concept-store")}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.current.Store(NewSnapshot(nil))
	return s, nil
}

// Change describes one update of the store: the snapshot it installed and
// the systems whose concepts may differ from the previous snapshot.
type Change struct {
	Snapshot *Snapshot
	Systems  []core.System // canonical order
}

// OnChange registers a listener called once per Load or Replace.
// Listeners run after the new snapshot is visible.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load normalizes and adds records to a system. Invalid records are skipped
// and reported; the returned error joins one core.ErrMalformedConcept per
// rejected record while the valid records are still loaded.
func (s *Store) Load(system core.System, records []core.RawConcept) (LoadReport, error) {
	report := LoadReport{System: system}
	if err := core.ValidateSystem(system); err != nil {
		return report, err
	}

	s.mu.Lock()
	next := s.current.Load().clone()
	var rejects []error
	for i := range records {
		c, err := FromRaw(system, &records[i])
		if err != nil {
			report.Rejected++
			rejects = append(rejects, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		report.Loaded++
		if next.put(c) {
			report.Duplicates++
			s.logger.Warn("duplicate concept replaced", "system", system, "code", c.Code)
		}
	}
	s.current.Store(next)
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	if report.Rejected > 0 {
		s.logger.Warn("rejected malformed concepts", "system", system, "rejected", report.Rejected)
	}
	s.logger.Info("loaded concepts", "system", system, "loaded", report.Loaded, "duplicates", report.Duplicates)
	change := Change{Snapshot: next, Systems: []core.System{system}}
	for _, fn := range listeners {
		fn(change)
	}
	return report, errors.Join(rejects...)
}

// Replace swaps in a whole snapshot and notifies listeners with every system
// whose concepts differ from the previous snapshot.
func (s *Store) Replace(snap *Snapshot) {
	s.mu.Lock()
	old := s.current.Swap(snap)
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	change := Change{Snapshot: snap, Systems: old.Diff(snap)}
	for _, fn := range listeners {
		fn(change)
	}
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Get returns the concept with the given code, or core.ErrConceptNotFound.
func (s *Store) Get(system core.System, code string) (*core.Concept, error) {
	return s.Snapshot().Get(system, code)
}

// Lookup resolves a "SYSTEM:code" identity against the current snapshot.
func (s *Store) Lookup(id string) (*core.Concept, bool) {
	return s.Snapshot().Lookup(id)
}

// All returns the concepts of one system in insertion order.
func (s *Store) All(system core.System) []*core.Concept {
	return s.Snapshot().All(system)
}

// Concepts returns every concept in canonical system order.
func (s *Store) Concepts() []*core.Concept {
	return s.Snapshot().Concepts()
}

// Count returns the total number of concepts.
func (s *Store) Count() int {
	return s.Snapshot().Count()
}

// Systems returns the systems with at least one concept.
func (s *Store) Systems() []core.System {
	return s.Snapshot().Systems()
}
