package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/termbridge/concepts"
	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/similarity"
)

// DefaultFeedbackThreshold is the number of unapplied feedback records that
// schedules a background rebuild.
const DefaultFeedbackThreshold = 10

// Basis is what a generation is scored against: the semantic scorer fitted
// to a corpus and the build id fingerprinting that corpus.
type Basis struct {
	Scorer  similarity.SemanticScorer
	BuildID string
}

// Service is the mapping façade. All methods are safe for concurrent use.
type Service struct {
	store       *concepts.Store
	cache       *Cache
	builder     *Builder
	feedback    *FeedbackLog
	persistence Persistence

	cfg       similarity.Config
	pairs     []core.SystemPair
	workers   int
	threshold int

	buildPool   *ants.Pool
	rebuildPool *ants.Pool
	rebuildMu   sync.Mutex
	closed      atomic.Bool
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithConfig sets the scoring configuration.
func WithConfig(cfg similarity.Config) Option {
	return func(s *Service) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.cfg = cfg
		return nil
	}
}

// WithPairs sets the system pairs a rebuild precomputes.
// Default is core.DefaultSystemPairs.
func WithPairs(pairs ...core.SystemPair) Option {
	return func(s *Service) error {
		for _, p := range pairs {
			if err := core.ValidateSystem(p.Source); err != nil {
				return err
			}
			if err := core.ValidateSystem(p.Target); err != nil {
				return err
			}
		}
		s.pairs = pairs
		return nil
	}
}

// WithWorkers sets how many pairs are built concurrently.
// Default is runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(s *Service) error {
		if n < 1 {
			return ErrInvalidWorkers
		}
		s.workers = n
		return nil
	}
}

// WithFeedbackThreshold sets how many unapplied feedback records schedule a
// background rebuild. Default is DefaultFeedbackThreshold.
func WithFeedbackThreshold(n int) Option {
	return func(s *Service) error {
		if n < 1 {
			return ErrInvalidThreshold
		}
		s.threshold = n
		return nil
	}
}

// WithPersistence stores generations and feedback durably. Previously
// stored feedback is loaded on construction.
func WithPersistence(p Persistence) Option {
	return func(s *Service) error {
		s.persistence = p
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "mapping-service")
		return nil
	}
}

// NewService creates a mapping service over store. The service serves
// lookups only after a basis is installed with Publish or Restore.
func NewService(store *concepts.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	s := &Service{
		store:     store,
		cfg:       similarity.DefaultConfig(),
		pairs:     core.DefaultSystemPairs,
		workers:   runtime.NumCPU(),
		threshold: DefaultFeedbackThreshold,
		logger:    slog.Default().With("component", "mapping-service"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	var records []core.Feedback
	if s.persistence != nil {
		var err error
		if records, err = s.persistence.LoadFeedback(); err != nil {
			return nil, fmt.Errorf("load feedback: %w", err)
		}
	}
	s.feedback = NewFeedbackLog(records)
	s.cache = NewCache(s.logger)

	buildPool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, err
	}
	rebuildPool, err := ants.NewPool(1, ants.WithNonblocking(true))
	if err != nil {
		buildPool.Release()
		return nil, err
	}
	s.buildPool, s.rebuildPool = buildPool, rebuildPool

	if s.builder, err = NewBuilder(buildPool, s.pairs, s.logger); err != nil {
		s.release()
		return nil, err
	}

	store.OnChange(func(concepts.Change) {
		s.cache.Invalidate(store.Snapshot())
	})
	return s, nil
}

// Config returns the scoring configuration.
func (s *Service) Config() similarity.Config {
	return s.cfg
}

// Pairs returns the precomputed system pairs.
func (s *Service) Pairs() []core.SystemPair {
	return s.builder.Pairs()
}

// Generation returns the published generation, or nil.
func (s *Service) Generation() *Generation {
	if v := s.cache.Current(); v != nil {
		return v.Generation
	}
	return nil
}

// Feedback returns the feedback log.
func (s *Service) Feedback() *FeedbackLog {
	return s.feedback
}

func (s *Service) newEngine(basis Basis, adjustments map[string]float64) (*similarity.Engine, error) {
	if basis.Scorer == nil {
		return nil, ErrScorerRequired
	}
	return similarity.NewEngine(basis.Scorer,
		similarity.WithConfig(s.cfg),
		similarity.WithAdjustments(adjustments),
		similarity.WithLogger(s.logger))
}

// Prepare builds a generation for basis over snap with the feedback recorded
// so far, without publishing it. A non-nil generation may come with a joined
// ErrPairFailed error for pairs that kept their previous entry.
func (s *Service) Prepare(ctx context.Context, basis Basis, snap *concepts.Snapshot) (*Generation, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	adj, applied := s.feedback.Adjustments()
	engine, err := s.newEngine(basis, adj)
	if err != nil {
		return nil, err
	}
	var previous *Generation
	if v := s.cache.Current(); v != nil {
		previous = v.Generation
	}
	return s.builder.Build(ctx, engine, snap, basis.BuildID, applied, previous)
}

// Publish installs basis and g as the live scoring state, then persists g.
// Lookups switch to the concept snapshot g was prepared from in the same
// step, so a caller replacing the concept store afterwards never exposes new
// concepts next to the old generation. It waits for a running rebuild so the
// published generation is never overwritten by one scored against an older
// basis.
func (s *Service) Publish(basis Basis, g *Generation) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()
	return s.publish(basis, g)
}

func (s *Service) publish(basis Basis, g *Generation) error {
	snap := g.snapshot
	if snap == nil {
		snap = s.store.Snapshot()
	}
	if err := s.install(basis, g, snap); err != nil {
		return err
	}
	if s.persistence != nil {
		if err := s.persistence.SaveGeneration(g); err != nil {
			return fmt.Errorf("persist generation: %w", err)
		}
	}
	return nil
}

// Restore installs the persisted generation for basis.BuildID if one exists.
// It reports whether a generation was restored.
func (s *Service) Restore(basis Basis) (bool, error) {
	if s.persistence == nil {
		return false, nil
	}
	g, err := s.persistence.LoadGeneration(basis.BuildID)
	if err != nil {
		return false, fmt.Errorf("load generation: %w", err)
	}
	if g == nil {
		s.logger.Info("no stored generation for build", "build_id", basis.BuildID)
		return false, nil
	}
	s.rebuildMu.Lock()
	err = s.install(basis, g, s.store.Snapshot())
	s.rebuildMu.Unlock()
	if err != nil {
		return false, err
	}
	s.logger.Info("restored generation", "build_id", g.BuildID, "pairs", len(g.Entries))
	return true, nil
}

func (s *Service) install(basis Basis, g *Generation, snap *concepts.Snapshot) error {
	adj, _ := s.feedback.Adjustments()
	engine, err := s.newEngine(basis, adj)
	if err != nil {
		return err
	}
	s.cache.Publish(&View{Snapshot: snap, Generation: g, basis: basis, engine: engine})
	s.feedback.MarkApplied(g.FeedbackApplied)
	return nil
}

// Rebuild recomputes every pair against the current concepts and feedback,
// then publishes the result. Rebuilds are serialized. On cancellation the
// published generation is left untouched.
func (s *Service) Rebuild(ctx context.Context) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	cur := s.cache.Current()
	if cur == nil {
		return ErrNotReady
	}
	g, buildErr := s.Prepare(ctx, cur.basis, s.store.Snapshot())
	if g == nil {
		return buildErr
	}
	if err := s.publish(cur.basis, g); err != nil {
		return errors.Join(buildErr, err)
	}
	// Concepts loaded while the rebuild ran were announced against the
	// previous view.
	s.cache.Invalidate(s.store.Snapshot())
	return buildErr
}

// FindMappings returns the mappings of one concept from source into each
// target system, in target order. Targets default to every other system.
// One call reads a single published view, so every result comes from the
// same generation and concept snapshot.
// Pairs missing from the published generation are scored on demand and not
// cached. Returns core.ErrConceptNotFound for an unknown code and an empty
// slice when nothing clears the confidence threshold.
func (s *Service) FindMappings(ctx context.Context, code string, source core.System, targets ...core.System) ([]*core.MappingResult, error) {
	if err := core.ValidateSystem(source); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		targets = source.Others()
	}
	for _, t := range targets {
		if err := core.ValidateSystem(t); err != nil {
			return nil, err
		}
	}

	v := s.cache.Current()
	if v == nil {
		if _, err := s.store.Get(source, code); err != nil {
			return nil, err
		}
		return nil, ErrNotReady
	}
	concept, err := v.Snapshot.Get(source, code)
	if err != nil {
		return nil, err
	}

	out := []*core.MappingResult{}
	for _, target := range targets {
		pair := core.SystemPair{Source: source, Target: target}
		if cached, ok := v.Generation.Lookup(pair, concept.ID()); ok {
			out = append(out, cached...)
			continue
		}
		matches, err := v.engine.Match(ctx, concept, v.Snapshot.All(target))
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}

// BatchMap maps each code from source to target. Codes unknown to the
// concept store map to an empty slice rather than failing the batch.
func (s *Service) BatchMap(ctx context.Context, codes []string, source, target core.System) (map[string][]*core.MappingResult, error) {
	out := make(map[string][]*core.MappingResult, len(codes))
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches, err := s.FindMappings(ctx, code, source, target)
		if errors.Is(err, core.ErrConceptNotFound) {
			out[code] = []*core.MappingResult{}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("map %s: %w", code, err)
		}
		out[code] = matches
	}
	return out, nil
}

// AddFeedback validates and records feedback, assigning its id and
// timestamp. Once the number of unapplied records reaches the threshold a
// rebuild is scheduled in the background; the call itself never rebuilds.
func (s *Service) AddFeedback(ctx context.Context, fb core.Feedback) (core.Feedback, error) {
	if s.closed.Load() {
		return core.Feedback{}, ErrServiceClosed
	}
	if err := ctx.Err(); err != nil {
		return core.Feedback{}, err
	}
	if err := core.ValidateFeedback(&fb); err != nil {
		return core.Feedback{}, err
	}
	fb.ID = uuid.NewString()
	fb.Timestamp = time.Now().UTC()

	if s.persistence != nil {
		if err := s.persistence.AppendFeedback(fb); err != nil {
			return core.Feedback{}, fmt.Errorf("persist feedback: %w", err)
		}
	}
	pending := s.feedback.Append(fb)
	src, tgt := fb.CodePair()
	s.logger.Info("recorded feedback", "id", fb.ID, "source", src, "target", tgt, "type", fb.Type, "pending", pending)

	if pending >= s.threshold {
		s.scheduleRebuild()
	}
	return fb, nil
}

func (s *Service) scheduleRebuild() {
	if s.cache.Current() == nil {
		return
	}
	err := s.rebuildPool.Submit(func() {
		if err := s.Rebuild(context.Background()); err != nil {
			s.logger.Error("feedback rebuild failed", "err", err)
		}
	})
	if err != nil {
		// A rebuild is already queued or running; the records stay pending
		// and the next feedback retries.
		s.logger.Debug("feedback rebuild not scheduled", "err", err)
	}
}

// Statistics summarizes the published generation.
func (s *Service) Statistics() core.Statistics {
	v := s.cache.Current()
	if v == nil {
		return emptyStatistics(s.store.Count(), s.feedback.Count())
	}
	return v.Generation.Statistics(v.Snapshot.Count(), s.feedback.Count())
}

// Close waits for a running background rebuild and releases the pools.
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()
	s.release()
	return nil
}

func (s *Service) release() {
	if s.rebuildPool != nil {
		s.rebuildPool.Release()
	}
	if s.buildPool != nil {
		s.buildPool.Release()
	}
}
