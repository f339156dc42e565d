package similarity

import (
	"context"
	"slices"
	"testing"

	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/lexical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func concept(sys core.System, code, display, definition string, synonyms []string, tags ...string) *core.Concept {
	slices.Sort(tags)
	return &core.Concept{
		System:       sys,
		Code:         code,
		Display:      display,
		Definition:   definition,
		Synonyms:     synonyms,
		SemanticTags: slices.Compact(tags),
	}
}

var (
	jvara     = concept(core.SystemNAMASTE, "NAMC001", "Jvara", "Elevated body temperature", []string{"Fever", "Pyrexia"}, "symptom", "fever")
	shiroroga = concept(core.SystemNAMASTE, "NAMC002", "Shiroroga", "Pain in the head", []string{"Headache"}, "symptom", "pain")
	mg30      = concept(core.SystemICD11Biomedicine, "MG30", "Fever, unspecified", "Elevated body temperature", []string{"Pyrexia"}, "symptom", "fever")
	headache  = concept(core.SystemICD11Biomedicine, "8A80", "Headache disorders", "Pain in the head", []string{"Headache"}, "disorder", "pain")
	cough     = concept(core.SystemSNOMEDCT, "49727002", "Cough", "Sudden expulsion of air from the lungs", nil)
)

func fixture() []*core.Concept {
	return []*core.Concept{jvara, shiroroga, mg30, headache, cough}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	docs := make([]lexical.Document, 0)
	for _, c := range fixture() {
		docs = append(docs, ConceptDocument(c))
	}
	v, err := lexical.Fit(docs)
	require.NoError(t, err)
	scorer, err := NewTFIDFScorer(v, fixture())
	require.NoError(t, err)
	e, err := NewEngine(scorer, opts...)
	require.NoError(t, err)
	return e
}

func TestNewEngine_RequiresScorer(t *testing.T) {
	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, ErrScorerRequired)
}

func TestScore_SelfSimilarity(t *testing.T) {
	e := newTestEngine(t)
	for _, c := range fixture() {
		t.Run(c.ID(), func(t *testing.T) {
			res := e.Score(c, c)
			assert.Equal(t, 1.0, res.Semantic)
			assert.Equal(t, 1.0, res.Lexical)
		})
	}
}

func TestScore_NeutralStructural(t *testing.T) {
	e := newTestEngine(t)

	res := e.Score(jvara, cough)
	assert.Equal(t, 0.5, res.Structural)
	res = e.Score(cough, jvara)
	assert.Equal(t, 0.5, res.Structural)
}

func TestScore_Bounded(t *testing.T) {
	e := newTestEngine(t)
	for _, a := range fixture() {
		for _, b := range fixture() {
			res := e.Score(a, b)
			assert.GreaterOrEqual(t, res.Confidence, 0.0)
			assert.LessOrEqual(t, res.Confidence, 1.0)
			for _, v := range []float64{res.Semantic, res.Lexical, res.Structural} {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		}
	}
}

func TestScore_JvaraToFever(t *testing.T) {
	e := newTestEngine(t)

	res := e.Score(jvara, mg30)
	assert.Greater(t, res.Confidence, 0.6)
	assert.Contains(t, []core.MappingType{core.MappingEquivalent, core.MappingRelated}, res.Type)
	assert.NotEmpty(t, res.Explanation)
	assert.Contains(t, res.Explanation, ExplainSynonym)
	assert.InDelta(t, 0.5, res.Lexical, 1e-9)
	assert.Equal(t, 1.0, res.Structural)
}

func TestScore_DefaultExplanation(t *testing.T) {
	e := newTestEngine(t)
	res := e.Score(jvara, cough)
	assert.Equal(t, ExplainDefault, res.Explanation)
}

func TestClassify_Boundaries(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		confidence float64
		want       core.MappingType
	}{
		{0.901, core.MappingExact},
		{0.9, core.MappingEquivalent},
		{0.899, core.MappingEquivalent},
		{0.801, core.MappingEquivalent},
		{0.8, core.MappingRelated},
		{0.75, core.MappingRelated},
		{0.65, core.MappingNarrower},
		{0.6, core.MappingBroader},
		{0.0, core.MappingBroader},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.Classify(tt.confidence), "confidence %v", tt.confidence)
	}
}

func TestMatch(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	t.Run("finds the fever concept", func(t *testing.T) {
		got, err := e.Match(ctx, jvara, []*core.Concept{mg30, headache})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "MG30", got[0].Target.Code)
	})

	t.Run("nothing above threshold is empty not error", func(t *testing.T) {
		got, err := e.Match(ctx, cough, []*core.Concept{mg30, headache})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("respects cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := e.Match(cctx, jvara, []*core.Concept{mg30})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMatch_CapsAndOrders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinConfidence = 0
	cfg.MaxCandidates = 2
	e := newTestEngine(t, WithConfig(cfg))

	got, err := e.Match(context.Background(), jvara, []*core.Concept{cough, headache, mg30, shiroroga})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "MG30", got[0].Target.Code)
	assert.GreaterOrEqual(t, got[0].Confidence, got[1].Confidence)
}

func TestMatch_Adjustments(t *testing.T) {
	ctx := context.Background()

	t.Run("negative adjustment drops the candidate", func(t *testing.T) {
		e := newTestEngine(t, WithAdjustments(map[string]float64{core.FeedbackKey("NAMC001", "MG30"): -0.5}))
		got, err := e.Match(ctx, jvara, []*core.Concept{mg30})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("positive adjustment is clamped", func(t *testing.T) {
		e := newTestEngine(t, WithAdjustments(map[string]float64{core.FeedbackKey("NAMC001", "MG30"): 1}))
		got, err := e.Match(ctx, jvara, []*core.Concept{mg30})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 1.0, got[0].Confidence)
		assert.Equal(t, core.MappingExact, got[0].Type)
	})
}

func TestMatch_Deterministic(t *testing.T) {
	e := newTestEngine(t)
	a, err := e.MatchAll(context.Background(), fixture(), fixture())
	require.NoError(t, err)
	b, err := e.MatchAll(context.Background(), fixture(), fixture())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    error
	}{
		{"default", func(*Config) {}, nil},
		{"negative weight", func(c *Config) { c.LexicalWeight = -1 }, ErrInvalidConfig},
		{"zero weights", func(c *Config) { c.SemanticWeight, c.LexicalWeight, c.StructuralWeight = 0, 0, 0 }, ErrInvalidConfig},
		{"ascending cut-offs", func(c *Config) { c.NarrowerAbove = 0.95 }, ErrInvalidConfig},
		{"zero candidates", func(c *Config) { c.MaxCandidates = 0 }, ErrInvalidConfig},
		{"unknown model", func(c *Config) { c.SemanticModel = "bm25" }, ErrUnknownSemanticModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestFingerprint_ChangesWithConfig(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	b.MinConfidence = 0.5
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

type fakeVectors map[string][]float32

func (f fakeVectors) Vector(id string) ([]float32, bool) {
	v, ok := f[id]
	return v, ok
}

func TestDenseScorer(t *testing.T) {
	s := NewDenseScorer(fakeVectors{
		jvara.ID(): {1, 0},
		mg30.ID():  {0.6, 0.8},
		cough.ID(): {-1, 0},
	})

	assert.Equal(t, 1.0, s.Semantic(jvara, jvara))
	assert.InDelta(t, 0.6, s.Semantic(jvara, mg30), 1e-6)
	assert.Equal(t, 0.0, s.Semantic(jvara, cough), "negative cosine clamps to 0")
	assert.Equal(t, 0.0, s.Semantic(jvara, headache), "missing vector scores 0")
}

func TestCosineDense(t *testing.T) {
	assert.Equal(t, 0.0, CosineDense([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, CosineDense([]float32{0, 0}, []float32{1, 2}))
	assert.InDelta(t, 1.0, CosineDense([]float32{3, 4}, []float32{3, 4}), 1e-12)
}

func TestSynonymMatch(t *testing.T) {
	assert.True(t, SynonymMatch(jvara, mg30))
	assert.True(t, SynonymMatch(shiroroga, headache))
	assert.False(t, SynonymMatch(jvara, cough))
}
