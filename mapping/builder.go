package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/termbridge/concepts"
	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/similarity"
)

// Builder computes generations, one pool task per system pair.
type Builder struct {
	pool   *ants.Pool
	pairs  []core.SystemPair
	logger *slog.Logger
}

// NewBuilder creates a builder that schedules pair builds on pool.
func NewBuilder(pool *ants.Pool, pairs []core.SystemPair, logger *slog.Logger) (*Builder, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}
	if len(pairs) == 0 {
		pairs = core.DefaultSystemPairs
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		pool:   pool,
		pairs:  append([]core.SystemPair(nil), pairs...),
		logger: logger.With("component", "mapping-builder"),
	}, nil
}

// Pairs returns the pairs the builder computes.
func (b *Builder) Pairs() []core.SystemPair {
	return append([]core.SystemPair(nil), b.pairs...)
}

type pairResult struct {
	mappings []*core.MappingResult
	err      error
}

// Build scores every configured pair of snap with engine. A pair either
// completes or keeps the entry it had in previous; failed pairs are reported
// as one joined error next to the otherwise usable generation. Cancellation
// returns the context error and no generation.
func (b *Builder) Build(ctx context.Context, engine *similarity.Engine, snap *concepts.Snapshot, buildID string, feedbackApplied int, previous *Generation) (*Generation, error) {
	start := time.Now()
	results := make([]pairResult, len(b.pairs))

	var wg sync.WaitGroup
	for i, pair := range b.pairs {
		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()
			mappings, err := engine.MatchAll(ctx, snap.All(pair.Source), snap.All(pair.Target))
			results[i] = pairResult{mappings: mappings, err: err}
		})
		if err != nil {
			wg.Done()
			results[i] = pairResult{err: err}
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		b.logger.Info("build cancelled", "build_id", buildID)
		return nil, err
	}

	entries := make(map[string]*Entry, len(b.pairs))
	var failed []error
	for i, pair := range b.pairs {
		res := results[i]
		if res.err != nil {
			b.logger.Error("pair build failed", "pair", pair.Key(), "err", res.err)
			failed = append(failed, fmt.Errorf("%w: %s: %w", ErrPairFailed, pair.Key(), res.err))
			if previous != nil {
				if old, ok := previous.Entry(pair); ok {
					entries[pair.Key()] = old
				}
			}
			continue
		}
		if res.mappings == nil {
			res.mappings = []*core.MappingResult{}
		}
		entries[pair.Key()] = &Entry{Pair: pair, Mappings: res.mappings}
	}

	g := NewGeneration(buildID, time.Now().UTC(), feedbackApplied, entries)
	g.snapshot = snap
	b.logger.Info("built generation",
		"build_id", buildID,
		"pairs", len(entries),
		"failed", len(failed),
		"duration", time.Since(start))
	return g, errors.Join(failed...)
}
