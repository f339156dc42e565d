package similarity

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/termbridge/core"
)

// Engine scores and ranks mapping candidates. It is immutable after
// construction and safe for concurrent use.
type Engine struct {
	cfg         Config
	scorer      SemanticScorer
	adjustments map[string]float64
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithConfig replaces the default scoring configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		e.cfg = cfg
		return nil
	}
}

// WithAdjustments sets per code-pair confidence adjustments, keyed by
// core.FeedbackKey.
func WithAdjustments(adj map[string]float64) Option {
	return func(e *Engine) error {
		e.adjustments = adj
		return nil
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "similarity-engine")
		return nil
	}
}

// NewEngine creates an engine around a semantic scorer.
func NewEngine(scorer SemanticScorer, opts ...Option) (*Engine, error) {
	if scorer == nil {
		return nil, ErrScorerRequired
	}
	e := &Engine{
		cfg:    DefaultConfig(),
		scorer: scorer,
		logger: slog.Default().With("component", "similarity-engine"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Config returns the engine's scoring configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Score computes every component for one pair. Feedback adjustments are not
// applied.
func (e *Engine) Score(source, target *core.Concept) *core.MappingResult {
	semantic := e.scorer.Semantic(source, target)
	lex := Lexical(source, target)
	structural := Structural(source, target, e.cfg.NeutralStructural)

	overall := clamp01(e.cfg.SemanticWeight*semantic + e.cfg.LexicalWeight*lex + e.cfg.StructuralWeight*structural)
	return &core.MappingResult{
		Source:      source,
		Target:      target,
		Confidence:  overall,
		Type:        e.cfg.Classify(overall),
		Semantic:    semantic,
		Lexical:     lex,
		Structural:  structural,
		Explanation: e.explain(source, target, semantic, lex, structural),
	}
}

func (e *Engine) explain(source, target *core.Concept, semantic, lex, structural float64) string {
	var parts []string
	if semantic > e.cfg.SemanticExplainAbove {
		parts = append(parts, ExplainSemantic)
	}
	if lex > e.cfg.LexicalExplainAbove {
		parts = append(parts, ExplainLexical)
	}
	if structural > e.cfg.StructuralExplainAbove {
		parts = append(parts, ExplainStructural)
	}
	if SynonymMatch(source, target) {
		parts = append(parts, ExplainSynonym)
	}
	if len(parts) == 0 {
		return ExplainDefault
	}
	return strings.Join(parts, "; ")
}

// Match scores source against every target and returns the retained
// candidates, strongest first. A feedback adjustment for the code pair is
// added to the confidence before filtering and the type follows the adjusted
// confidence. Ties rank by target id.
func (e *Engine) Match(ctx context.Context, source *core.Concept, targets []*core.Concept) ([]*core.MappingResult, error) {
	var kept []*core.MappingResult
	for i, target := range targets {
		if i%512 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if target.ID() == source.ID() {
			continue
		}
		res := e.Score(source, target)
		if adj, ok := e.adjustments[core.FeedbackKey(source.Code, target.Code)]; ok {
			res.Confidence = clamp01(res.Confidence + adj)
			res.Type = e.cfg.Classify(res.Confidence)
		}
		if res.Confidence > e.cfg.MinConfidence {
			kept = append(kept, res)
		}
	}
	slices.SortFunc(kept, func(a, b *core.MappingResult) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(a.Target.ID(), b.Target.ID())
	})
	if len(kept) > e.cfg.MaxCandidates {
		kept = kept[:e.cfg.MaxCandidates]
	}
	return kept, nil
}

// MatchAll runs Match for every source concept and concatenates the results
// in source order.
func (e *Engine) MatchAll(ctx context.Context, sources, targets []*core.Concept) ([]*core.MappingResult, error) {
	var out []*core.MappingResult
	for _, src := range sources {
		matches, err := e.Match(ctx, src, targets)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	e.logger.Debug("matched sources", "sources", len(sources), "targets", len(targets), "mappings", len(out))
	return out, nil
}
