package mapping

import (
	"fmt"
	"slices"
	"time"

	"github.com/poiesic/termbridge/concepts"
	"github.com/poiesic/termbridge/core"
)

// Entry is the cached result of one system pair: the retained mappings of
// every source concept, grouped by source in source order.
type Entry struct {
	Pair     core.SystemPair       `json:"pair"`
	Mappings []*core.MappingResult `json:"mappings"`
}

// Generation is an immutable set of cache entries built from one concept
// snapshot. Never modify a published generation; derive a new one.
type Generation struct {
	BuildID         string            `json:"build_id"`
	GeneratedAt     time.Time         `json:"generated_at"`
	FeedbackApplied int               `json:"feedback_applied"`
	Entries         map[string]*Entry `json:"entries"`

	bySource map[string]map[string][]*core.MappingResult
	snapshot *concepts.Snapshot // set by Build; nil for restored generations
}

// NewGeneration indexes entries into a generation.
func NewGeneration(buildID string, generatedAt time.Time, feedbackApplied int, entries map[string]*Entry) *Generation {
	if entries == nil {
		entries = make(map[string]*Entry)
	}
	g := &Generation{
		BuildID:         buildID,
		GeneratedAt:     generatedAt,
		FeedbackApplied: feedbackApplied,
		Entries:         entries,
	}
	g.reindex()
	return g
}

func (g *Generation) reindex() {
	g.bySource = make(map[string]map[string][]*core.MappingResult, len(g.Entries))
	for key, entry := range g.Entries {
		idx := make(map[string][]*core.MappingResult)
		for _, m := range entry.Mappings {
			id := m.Source.ID()
			idx[id] = append(idx[id], m)
		}
		g.bySource[key] = idx
	}
}

// Entry returns the entry for a pair.
func (g *Generation) Entry(pair core.SystemPair) (*Entry, bool) {
	e, ok := g.Entries[pair.Key()]
	return e, ok
}

// Lookup returns the cached mappings of one source concept for a pair.
// The boolean reports whether the pair is cached at all; a cached pair with
// no retained mappings for the concept returns an empty slice and true.
func (g *Generation) Lookup(pair core.SystemPair, sourceID string) ([]*core.MappingResult, bool) {
	idx, ok := g.bySource[pair.Key()]
	if !ok {
		return nil, false
	}
	return idx[sourceID], true
}

// Pairs returns the cached pairs sorted by key.
func (g *Generation) Pairs() []core.SystemPair {
	keys := make([]string, 0, len(g.Entries))
	for k := range g.Entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	pairs := make([]core.SystemPair, len(keys))
	for i, k := range keys {
		pairs[i] = g.Entries[k].Pair
	}
	return pairs
}

// Without returns a copy of the generation minus every entry whose source
// or target is one of systems. The receiver is returned when nothing changes.
func (g *Generation) Without(systems ...core.System) *Generation {
	kept := make(map[string]*Entry, len(g.Entries))
	for k, e := range g.Entries {
		if slices.Contains(systems, e.Pair.Source) || slices.Contains(systems, e.Pair.Target) {
			continue
		}
		kept[k] = e
	}
	if len(kept) == len(g.Entries) {
		return g
	}
	return NewGeneration(g.BuildID, g.GeneratedAt, g.FeedbackApplied, kept)
}

// Statistics summarizes the generation. totalConcepts and feedbackCount
// come from the concept store and feedback log.
func (g *Generation) Statistics(totalConcepts, feedbackCount int) core.Statistics {
	stats := emptyStatistics(totalConcepts, feedbackCount)
	stats.BuildID = g.BuildID
	stats.GeneratedAt = g.GeneratedAt
	for key, e := range g.Entries {
		stats.MappingsBySystemPair[key] = len(e.Mappings)
		for _, m := range e.Mappings {
			stats.ConfidenceDistribution[ConfidenceBucket(m.Confidence)]++
			stats.MappingTypeDistribution[string(m.Type)]++
		}
	}
	return stats
}

func emptyStatistics(totalConcepts, feedbackCount int) core.Statistics {
	return core.Statistics{
		TotalConcepts:           totalConcepts,
		MappingsBySystemPair:    make(map[string]int),
		ConfidenceDistribution:  make(map[string]int),
		MappingTypeDistribution: make(map[string]int),
		FeedbackCount:           feedbackCount,
	}
}

// ConfidenceBucket labels a confidence with its ten-point bucket, for
// example 0.67 is "60-70%". A confidence of 1 falls in "90-100%".
func ConfidenceBucket(confidence float64) string {
	lower := int(confidence*10) * 10
	if lower > 90 {
		lower = 90
	}
	if lower < 0 {
		lower = 0
	}
	return fmt.Sprintf("%d-%d%%", lower, lower+10)
}
