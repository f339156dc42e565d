// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package termbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/termbridge/ai"
	"github.com/poiesic/termbridge/ai/onnx"
	"github.com/poiesic/termbridge/ai/openai"
	"github.com/poiesic/termbridge/concepts"
	"github.com/poiesic/termbridge/config"
	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/feed"
	"github.com/poiesic/termbridge/ingestion"
	"github.com/poiesic/termbridge/mapping"
	"github.com/poiesic/termbridge/reembed"
	"github.com/poiesic/termbridge/retry"
	"github.com/poiesic/termbridge/search"
	"github.com/poiesic/termbridge/similarity"
	"github.com/poiesic/termbridge/storage"
	"github.com/poiesic/termbridge/storage/badger"
)

// On-disk layout under the engine directory.
const (
	IndexDir     = "index"
	MappingsFile = "mappings.db"
)

// ErrEngineClosed is returned by operations on a closed engine.
var ErrEngineClosed = errors.New("engine closed")

// Engine owns the concept store, vector index, mapping service and search
// service of one data directory.
type Engine struct {
	dir      string
	backend  *badger.Backend
	index    storage.VectorIndex
	bolt     *mapping.BoltStore
	store    *concepts.Store
	mapping  *mapping.Service
	pipeline *ingestion.Pipeline
	provider ai.AIProvider
	searcher atomic.Pointer[search.Searcher]
	buildMu  sync.Mutex // orders pipeline runs with their searcher swaps
	debounce time.Duration
	closeMu  sync.Mutex
	closed   atomic.Bool
	logger   *slog.Logger
}

// Option configures Open.
type Option func(*engineOptions) error

type engineOptions struct {
	aiConfig  *ai.Config
	simConfig similarity.Config
	workers   int
	threshold int
	reembed   *reembed.Config
	progress  io.Writer
	debounce  time.Duration
	logger    *slog.Logger
}

// WithConfig applies every engine-relevant section of a loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *engineOptions) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		aiCfg := cfg.AI
		o.aiConfig = &aiCfg
		o.simConfig = cfg.Similarity
		o.workers = cfg.Mapping.Workers
		o.threshold = cfg.Mapping.FeedbackThreshold
		o.debounce = cfg.Watch.Debounce
		o.reembed = &reembed.Config{
			BatchSize:      cfg.Embedding.BatchSize,
			ReportInterval: cfg.Embedding.BatchSize,
			Retry: retry.Policy{
				MaxAttempts: cfg.Embedding.RetryAttempts,
				BaseDelay:   cfg.Embedding.RetryDelay,
			},
		}
		return nil
	}
}

// WithAIConfig selects the dense embedding backend.
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *engineOptions) error {
		if cfg == nil {
			return errors.New("ai config is nil")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		o.aiConfig = cfg
		return nil
	}
}

// WithSimilarityConfig sets the scoring configuration.
func WithSimilarityConfig(cfg similarity.Config) Option {
	return func(o *engineOptions) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		o.simConfig = cfg
		return nil
	}
}

// WithWorkers sets how many system pairs are scored concurrently.
func WithWorkers(n int) Option {
	return func(o *engineOptions) error {
		o.workers = n
		return nil
	}
}

// WithFeedbackThreshold sets how many feedback records trigger a background
// mapping rebuild.
func WithFeedbackThreshold(n int) Option {
	return func(o *engineOptions) error {
		o.threshold = n
		return nil
	}
}

// WithReembedConfig sets batch size and retry policy for index builds.
func WithReembedConfig(cfg *reembed.Config) Option {
	return func(o *engineOptions) error {
		o.reembed = cfg
		return nil
	}
}

// WithProgress sets where embedding progress is written.
func WithProgress(w io.Writer) Option {
	return func(o *engineOptions) error {
		o.progress = w
		return nil
	}
}

// WithDebounce sets how long Watch waits for feed changes to settle.
func WithDebounce(d time.Duration) Option {
	return func(o *engineOptions) error {
		if d < 0 {
			return fmt.Errorf("negative debounce %s", d)
		}
		o.debounce = d
		return nil
	}
}

// WithLogger sets a custom logger for the engine and its components.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// Open opens or creates the engine rooted at dir: the vector index in
// dir/index and the mapping cache and feedback log in dir/mappings.db. The
// last committed generation is restored; its mapping generation is loaded
// when the build id matches and rebuilt otherwise.
func Open(ctx context.Context, dir string, opts ...Option) (*Engine, error) {
	aiCfg := ai.DefaultConfig()
	aiCfg.Backend = ai.BackendLexical
	options := &engineOptions{
		aiConfig:  aiCfg,
		simConfig: similarity.DefaultConfig(),
		workers:   runtime.NumCPU(),
		threshold: mapping.DefaultFeedbackThreshold,
		debounce:  2 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	e := &Engine{
		dir:      dir,
		debounce: options.debounce,
		logger:   options.logger.With("component", "engine"),
	}
	if err := e.open(ctx, options); err != nil {
		e.release()
		return nil, err
	}
	return e, nil
}

func (e *Engine) open(ctx context.Context, o *engineOptions) error {
	var err error
	e.backend, err = badger.OpenBackend(filepath.Join(e.dir, IndexDir), false)
	if err != nil {
		return fmt.Errorf("open index backend: %w", err)
	}
	e.index, err = badger.OpenIndex(ctx, e.backend, badger.WithLogger(o.logger))
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	e.bolt, err = mapping.OpenBoltStore(filepath.Join(e.dir, MappingsFile), o.logger)
	if err != nil {
		return err
	}
	e.store, err = concepts.New(concepts.WithLogger(o.logger))
	if err != nil {
		return err
	}
	e.mapping, err = mapping.NewService(e.store,
		mapping.WithConfig(o.simConfig),
		mapping.WithWorkers(o.workers),
		mapping.WithFeedbackThreshold(o.threshold),
		mapping.WithPersistence(e.bolt),
		mapping.WithLogger(o.logger))
	if err != nil {
		return err
	}

	pipelineOpts := []ingestion.Option{
		ingestion.WithReembedConfig(o.reembed),
		ingestion.WithProgress(o.progress),
		ingestion.WithLogger(o.logger),
	}
	e.provider, err = newProvider(o.aiConfig)
	if err != nil {
		return fmt.Errorf("create embedding provider: %w", err)
	}
	if e.provider != nil {
		pipelineOpts = append(pipelineOpts, ingestion.WithEmbedder(e.provider.Embedder(), e.provider.ModelID()))
	}
	e.pipeline, err = ingestion.NewPipeline(e.store, e.index, e.mapping, pipelineOpts...)
	if err != nil {
		return err
	}

	report, err := e.pipeline.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	return e.installSearcher(report)
}

// newProvider returns nil for the lexical backend, whose embedder is fitted
// per generation.
func newProvider(cfg *ai.Config) (ai.AIProvider, error) {
	switch cfg.Backend {
	case ai.BackendOpenAI:
		return openai.NewProvider(cfg)
	case ai.BackendONNX:
		return onnx.NewProvider(cfg)
	default:
		return nil, nil
	}
}

// installSearcher points search at the generation report committed, using
// the embedder and concepts that generation was built from.
func (e *Engine) installSearcher(report *ingestion.Report) error {
	if report == nil || report.Index == nil || report.Embedder == nil {
		return nil
	}
	if s := e.searcher.Load(); s != nil {
		return s.Swap(report.Index, report.Concepts, report.Embedder)
	}
	s, err := search.NewSearcher(report.Index, report.Concepts, report.Embedder, search.WithLogger(e.logger))
	if err != nil {
		return err
	}
	e.searcher.Store(s)
	return nil
}

// Dir returns the data directory.
func (e *Engine) Dir() string {
	return e.dir
}

// Concepts returns the live concept store.
func (e *Engine) Concepts() *concepts.Store {
	return e.store
}

// Mapping returns the mapping service.
func (e *Engine) Mapping() *mapping.Service {
	return e.mapping
}

// Index returns the vector index.
func (e *Engine) Index() storage.VectorIndex {
	return e.index
}

// Refresh fetches providers and replaces the live generation. On failure the
// previous generation stays live.
func (e *Engine) Refresh(ctx context.Context, providers ...feed.Provider) (*ingestion.Report, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	e.buildMu.Lock()
	defer e.buildMu.Unlock()
	report, err := e.pipeline.Refresh(ctx, providers...)
	if err != nil {
		return nil, err
	}
	if err := e.installSearcher(report); err != nil {
		return nil, err
	}
	return report, nil
}

// Reindex rebuilds the index and mappings from the loaded concepts.
func (e *Engine) Reindex(ctx context.Context) (*ingestion.Report, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	e.buildMu.Lock()
	defer e.buildMu.Unlock()
	report, err := e.pipeline.Reindex(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.installSearcher(report); err != nil {
		return nil, err
	}
	return report, nil
}

// Search returns up to topK concepts nearest to query. Returns
// core.ErrEmptyIndex before the first refresh.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]core.SearchHit, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	s := e.searcher.Load()
	if s == nil {
		return nil, core.ErrEmptyIndex
	}
	return s.Search(ctx, query, topK)
}

// Close releases every resource. It waits for a running background mapping
// rebuild.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	return e.release()
}

func (e *Engine) release() error {
	e.closeMu.Lock()
	defer e.closeMu.Unlock()

	var errs []error
	if e.mapping != nil {
		if err := e.mapping.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
		}
	}
	if e.bolt != nil {
		if err := e.bolt.Close(); err != nil {
			e.logger.Error("error closing mapping store", "err", err)
			errs = append(errs, err)
		}
	}
	if e.index != nil {
		if err := e.index.Close(); err != nil {
			e.logger.Error("error closing vector index", "err", err)
			errs = append(errs, err)
		}
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
