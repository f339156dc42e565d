package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/termbridge/ai"
	"github.com/poiesic/termbridge/concepts"
	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/feed"
	"github.com/poiesic/termbridge/lexical"
	"github.com/poiesic/termbridge/mapping"
	"github.com/poiesic/termbridge/reembed"
	"github.com/poiesic/termbridge/storage"
)

// Report describes one completed refresh, reindex or restore.
type Report struct {
	BuildID  string
	Manifest *storage.Manifest
	Loads    []concepts.LoadReport
	Rejected int
	Embedded int

	// Restored is set when Restore reused the persisted generation without
	// re-embedding.
	Restored bool

	// MappingsRestored is set when the mapping generation came from the
	// persisted blob instead of a rebuild.
	MappingsRestored bool

	// Embedder is the dense embedder the committed index was built with.
	// Queries against Index must use it.
	Embedder ai.Embedder

	// Index is the committed generation and Concepts the snapshot it was
	// built from. Searches bound to both see a single build.
	Index    storage.Snapshot
	Concepts *concepts.Snapshot

	Duration time.Duration
}

// Pipeline orchestrates refreshes. Refresh, Reindex and Restore are
// serialized.
type Pipeline struct {
	store       *concepts.Store
	index       storage.VectorIndex
	mapping     *mapping.Service
	embedder    ai.Embedder
	modelID     string
	reembedCfg  *reembed.Config
	lexicalOpts []lexical.Option
	progress    io.Writer
	mu          sync.Mutex
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithEmbedder sets the dense embedder and the model id recorded in build
// ids. Without it the fitted lexical vectorizer embeds concepts.
func WithEmbedder(embedder ai.Embedder, modelID string) Option {
	return func(p *Pipeline) error {
		p.embedder = embedder
		p.modelID = modelID
		return nil
	}
}

// WithReembedConfig sets batch size, progress interval and retry policy for
// embedding.
func WithReembedConfig(cfg *reembed.Config) Option {
	return func(p *Pipeline) error {
		if cfg != nil {
			p.reembedCfg = cfg
		}
		return nil
	}
}

// WithLexicalOptions passes options to every vectorizer fit.
func WithLexicalOptions(opts ...lexical.Option) Option {
	return func(p *Pipeline) error {
		p.lexicalOpts = opts
		return nil
	}
}

// WithProgress sets where embedding progress is written. Nil disables it.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "refresh-pipeline")
		return nil
	}
}

// NewPipeline creates a refresh pipeline over the live store, index and
// mapping service.
func NewPipeline(store *concepts.Store, index storage.VectorIndex, svc *mapping.Service, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if svc == nil {
		return nil, ErrMappingRequired
	}
	p := &Pipeline{
		store:      store,
		index:      index,
		mapping:    svc,
		reembedCfg: reembed.DefaultConfig(),
		logger:     slog.Default().With("component", "refresh-pipeline"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pipeline) denseModel() string {
	if p.embedder == nil {
		return ai.BackendLexical
	}
	return p.modelID
}

func (p *Pipeline) denseEmbedder(f *Fitted) (ai.Embedder, error) {
	if p.embedder != nil {
		return p.embedder, nil
	}
	return lexical.NewEmbedder(f.Vectorizer)
}

// Refresh fetches every provider and replaces the live generation with one
// built from their records. Malformed records are skipped and counted.
func (p *Pipeline) Refresh(ctx context.Context, providers ...feed.Provider) (*Report, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	batches, err := feed.FetchAll(ctx, providers)
	if err != nil {
		return nil, err
	}

	staging, err := concepts.New()
	if err != nil {
		return nil, err
	}
	report := &Report{}
	for _, batch := range batches {
		load, err := staging.Load(batch.System, batch.Records)
		if err != nil && !errors.Is(err, core.ErrMalformedConcept) {
			return nil, fmt.Errorf("load %s: %w", batch.Provider, err)
		}
		if load.Rejected > 0 {
			p.logger.Warn("skipped malformed records", "provider", batch.Provider, "rejected", load.Rejected, "err", err)
		}
		report.Loads = append(report.Loads, load)
		report.Rejected += load.Rejected
	}

	if err := p.build(ctx, staging.Snapshot(), report); err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)
	p.logger.Info("refresh complete", "build_id", report.BuildID, "concepts", report.Embedded, "rejected", report.Rejected, "duration", report.Duration)
	return report, nil
}

// Reindex rebuilds the index and mappings from the concepts already loaded,
// for example after the dense model changed.
func (p *Pipeline) Reindex(ctx context.Context) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	report := &Report{}
	if err := p.build(ctx, p.store.Snapshot(), report); err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)
	p.logger.Info("reindex complete", "build_id", report.BuildID, "concepts", report.Embedded, "duration", report.Duration)
	return report, nil
}

// Restore brings the concepts of the committed index generation back into
// the store. The mapping generation is restored from persistence when its
// build id matches and rebuilt otherwise. When the models or scoring
// configuration changed since the index was built, everything is rebuilt
// from the persisted concepts. Returns nil and no error when the index is
// empty.
func (p *Pipeline) Restore(ctx context.Context) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	manifest := p.index.Manifest()
	if manifest == nil {
		return nil, nil
	}
	stored, err := p.index.Concepts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load indexed concepts: %w", err)
	}
	if len(stored) == 0 {
		return nil, nil
	}
	snap := concepts.NewSnapshot(stored)

	fitted, err := Fit(snap, p.mapping.Config(), p.denseModel(), p.lexicalOpts...)
	if err != nil {
		return nil, err
	}
	report := &Report{}
	if fitted.BuildID != manifest.BuildID {
		p.logger.Warn("index was built with different settings, rebuilding", "index_build_id", manifest.BuildID, "build_id", fitted.BuildID)
		if err := p.build(ctx, snap, report); err != nil {
			return nil, err
		}
		report.Duration = time.Since(start)
		return report, nil
	}

	embedder, err := p.denseEmbedder(fitted)
	if err != nil {
		return nil, err
	}
	p.store.Replace(snap)

	committed := p.index.Snapshot()
	basis := fitted.Basis(committed)
	restored, err := p.mapping.Restore(basis)
	if err != nil {
		p.logger.Warn("failed to restore mapping generation", "err", err)
	}
	if !restored {
		g, err := p.mapping.Prepare(ctx, basis, snap)
		if err != nil {
			return nil, fmt.Errorf("rebuild mappings: %w", err)
		}
		if err := p.mapping.Publish(basis, g); err != nil {
			return nil, err
		}
	}

	*report = Report{
		BuildID:          manifest.BuildID,
		Manifest:         manifest,
		Embedded:         manifest.Count,
		Restored:         true,
		MappingsRestored: restored,
		Embedder:         embedder,
		Index:            committed,
		Concepts:         snap,
		Duration:         time.Since(start),
	}
	p.logger.Info("restored generation", "build_id", manifest.BuildID, "concepts", snap.Count(), "mappings_restored", restored)
	return report, nil
}

// build embeds snap into a staged generation and rebuilds the mappings, then
// swaps everything in. Before the commit any failure aborts the staged
// generation and leaves the live one untouched. After it the mapping view
// moves to snap before the concept store does, so a mapping read never pairs
// new concepts with the old generation.
func (p *Pipeline) build(ctx context.Context, snap *concepts.Snapshot, report *Report) (err error) {
	if snap.Count() == 0 {
		return fmt.Errorf("%w: no concepts to index", core.ErrEmptyCorpus)
	}
	fitted, err := Fit(snap, p.mapping.Config(), p.denseModel(), p.lexicalOpts...)
	if err != nil {
		return err
	}
	embedder, err := p.denseEmbedder(fitted)
	if err != nil {
		return err
	}
	r, err := reembed.NewReembedder(embedder, p.reembedCfg, p.progress)
	if err != nil {
		return err
	}

	w, err := p.index.BeginGeneration(ctx, fitted.BuildID)
	if err != nil {
		return fmt.Errorf("begin generation: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if abortErr := w.Abort(); abortErr != nil {
			p.logger.Warn("failed to abort generation", "build_id", fitted.BuildID, "err", abortErr)
		}
	}()

	n, err := r.Run(ctx, w, snap.Concepts())
	if err != nil {
		return fmt.Errorf("embed concepts: %w", err)
	}

	g, err := p.mapping.Prepare(ctx, fitted.Basis(w), snap)
	if err != nil {
		return fmt.Errorf("rebuild mappings: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	index, err := w.Commit(ctx)
	if err != nil {
		return fmt.Errorf("commit generation: %w", err)
	}
	committed = true

	publishErr := p.mapping.Publish(fitted.Basis(index), g)
	p.store.Replace(snap)
	if publishErr != nil {
		return fmt.Errorf("publish mappings: %w", publishErr)
	}

	report.BuildID = fitted.BuildID
	report.Manifest = index.Manifest()
	report.Embedded = n
	report.Embedder = embedder
	report.Index = index
	report.Concepts = snap
	return nil
}
