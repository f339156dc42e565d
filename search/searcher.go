package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/poiesic/termbridge/ai"
	"github.com/poiesic/termbridge/core"
)

// DefaultTopK is the number of hits returned when a caller asks for none.
const DefaultTopK = 10

// ConceptResolver maps an index id ("SYSTEM:code") back to its concept.
type ConceptResolver interface {
	Lookup(id string) (*core.Concept, bool)
}

// Index is the query side of a vector index. Both storage.VectorIndex and a
// committed storage.Snapshot satisfy it.
type Index interface {
	Query(ctx context.Context, vector []float32, topK int) ([]core.IndexHit, error)
}

// view binds an index to the embedder whose space its vectors live in and
// the concepts they were built from.
type view struct {
	index    Index
	concepts ConceptResolver
	embedder ai.Embedder
}

func newView(index Index, concepts ConceptResolver, embedder ai.Embedder) (*view, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if concepts == nil {
		return nil, ErrConceptsRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	return &view{index: index, concepts: concepts, embedder: embedder}, nil
}

// Searcher serves free-text nearest-neighbor search over the vector index.
// It never mutates the index or the concept store.
type Searcher struct {
	current atomic.Pointer[view]
	logger  *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "searcher")
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	index Index,
	concepts ConceptResolver,
	embedder ai.Embedder,
	opts ...Option,
) (*Searcher, error) {
	v, err := newView(index, concepts, embedder)
	if err != nil {
		return nil, err
	}

	s := &Searcher{
		logger: slog.Default().With("component", "searcher"),
	}
	s.current.Store(v)

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Swap replaces the index, concepts and embedder in one step. It is called
// after a rebuild so a query is embedded by the model that built the index
// it runs against. Searches already running finish on the previous view.
func (s *Searcher) Swap(index Index, concepts ConceptResolver, embedder ai.Embedder) error {
	v, err := newView(index, concepts, embedder)
	if err != nil {
		return err
	}
	s.current.Store(v)
	return nil
}

// Search returns up to topK concepts closest to query, nearest first.
// An empty or whitespace-only query returns an empty slice. Searching before
// anything was indexed returns core.ErrEmptyIndex.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]core.SearchHit, error) {
	return s.SearchWithMonitor(ctx, query, topK, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, topK int, monitor SearchMonitor) ([]core.SearchHit, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	query = strings.TrimSpace(query)
	monitor.Start(query)
	if query == "" {
		monitor.Finish(nil)
		return []core.SearchHit{}, nil
	}

	v := s.current.Load()
	embedding, err := v.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(len(embedding))

	hits, err := v.index.Query(ctx, embedding, topK)
	if err != nil {
		if !errors.Is(err, core.ErrEmptyIndex) {
			s.logger.Error("error querying vector index", "err", err)
		}
		return nil, err
	}
	monitor.AfterIndexQuery(hits)

	results := make([]core.SearchHit, 0, len(hits))
	for _, hit := range hits {
		if c, ok := v.concepts.Lookup(hit.ID); ok {
			monitor.ResolvedHit(hit, c)
			results = append(results, core.SearchHit{
				Code:     c.Code,
				Display:  c.Display,
				System:   c.System,
				Distance: hit.Distance,
			})
			continue
		}
		code, system := hit.Metadata["code"], hit.Metadata["system"]
		if code == "" || system == "" {
			s.logger.Warn("dropping unresolvable search hit", "id", hit.ID)
			monitor.UnresolvedHit(hit)
			continue
		}
		monitor.MetadataHit(hit)
		results = append(results, core.SearchHit{
			Code:     code,
			Display:  hit.Metadata["display"],
			System:   core.System(system),
			Distance: hit.Distance,
		})
	}
	monitor.Finish(results)

	return results, nil
}
