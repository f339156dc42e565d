package ingestion

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/termbridge/ai/mock"
	"github.com/poiesic/termbridge/concepts"
	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/feed"
	"github.com/poiesic/termbridge/mapping"
	"github.com/poiesic/termbridge/reembed"
	"github.com/poiesic/termbridge/retry"
	"github.com/poiesic/termbridge/similarity"
	"github.com/poiesic/termbridge/storage"
	"github.com/poiesic/termbridge/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureProviders() []feed.Provider {
	return []feed.Provider{
		feed.NewStatic("namaste", core.SystemNAMASTE, []core.RawConcept{
			{Code: "NAMC001", Display: "Jvara", Definition: "Elevated body temperature", Synonyms: []string{"Fever", "Pyrexia"}, SemanticTags: []string{"symptom", "fever"}},
			{Code: "NAMC002", Display: "Shiroroga", Definition: "Pain in the head", Synonyms: []string{"Headache"}, SemanticTags: []string{"symptom", "pain"}},
		}),
		feed.NewStatic("icd11", core.SystemICD11Biomedicine, []core.RawConcept{
			{Code: "MG30", Display: "Fever, unspecified", Definition: "Elevated body temperature", Synonyms: []string{"Pyrexia"}, SemanticTags: []string{"symptom", "fever"}},
			{Code: "8A80", Display: "Headache disorders", Definition: "Pain in the head", Synonyms: []string{"Headache"}, SemanticTags: []string{"disorder", "pain"}},
		}),
		feed.NewStatic("snomed", core.SystemSNOMEDCT, []core.RawConcept{
			{Code: "49727002", Display: "Cough", Definition: "Sudden expulsion of air from the lungs"},
		}),
	}
}

// revisedProviders is a second corpus: NAMC001 is reworded, MG30 is
// replaced by MG31 and SNOMED gains a fever concept.
func revisedProviders() []feed.Provider {
	return []feed.Provider{
		feed.NewStatic("namaste", core.SystemNAMASTE, []core.RawConcept{
			{Code: "NAMC001", Display: "Jvara (Fever)", Definition: "Elevated body temperature", Synonyms: []string{"Fever", "Pyrexia"}, SemanticTags: []string{"symptom", "fever"}},
			{Code: "NAMC002", Display: "Shiroroga", Definition: "Pain in the head", Synonyms: []string{"Headache"}, SemanticTags: []string{"symptom", "pain"}},
		}),
		feed.NewStatic("icd11", core.SystemICD11Biomedicine, []core.RawConcept{
			{Code: "MG31", Display: "Fever, unspecified", Definition: "Elevated body temperature", Synonyms: []string{"Pyrexia"}, SemanticTags: []string{"symptom", "fever"}},
			{Code: "8A80", Display: "Headache disorders", Definition: "Pain in the head", Synonyms: []string{"Headache"}, SemanticTags: []string{"disorder", "pain"}},
		}),
		feed.NewStatic("snomed", core.SystemSNOMEDCT, []core.RawConcept{
			{Code: "49727002", Display: "Cough", Definition: "Sudden expulsion of air from the lungs"},
			{Code: "386661006", Display: "Fever", Definition: "Elevated body temperature", Synonyms: []string{"Pyrexia"}, SemanticTags: []string{"symptom", "fever"}},
		}),
	}
}

type failingProvider struct{ err error }

func (f failingProvider) Name() string        { return "failing" }
func (f failingProvider) System() core.System { return core.SystemLOINC }
func (f failingProvider) Fetch(context.Context) ([]core.RawConcept, error) {
	return nil, f.err
}

type harness struct {
	store    *concepts.Store
	index    storage.VectorIndex
	mapping  *mapping.Service
	pipeline *Pipeline
}

func newIndex(t *testing.T) storage.VectorIndex {
	t.Helper()
	index, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		backend.Close()
	})
	return index
}

func newHarness(t *testing.T, index storage.VectorIndex, svcOpts []mapping.Option, opts ...Option) *harness {
	t.Helper()
	store, err := concepts.New()
	require.NoError(t, err)
	svc, err := mapping.NewService(store, svcOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	cfg := reembed.DefaultConfig()
	cfg.Retry = retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	opts = append([]Option{WithReembedConfig(cfg)}, opts...)
	p, err := NewPipeline(store, index, svc, opts...)
	require.NoError(t, err)
	return &harness{store: store, index: index, mapping: svc, pipeline: p}
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	store, err := concepts.New()
	require.NoError(t, err)
	index := newIndex(t)
	svc, err := mapping.NewService(store)
	require.NoError(t, err)
	defer svc.Close()

	_, err = NewPipeline(nil, index, svc)
	assert.Equal(t, ErrStoreRequired, err)
	_, err = NewPipeline(store, nil, svc)
	assert.Equal(t, ErrIndexRequired, err)
	_, err = NewPipeline(store, index, nil)
	assert.Equal(t, ErrMappingRequired, err)
}

func TestRefresh(t *testing.T) {
	h := newHarness(t, newIndex(t), nil)
	ctx := context.Background()

	report, err := h.pipeline.Refresh(ctx, fixtureProviders()...)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Embedded)
	assert.Zero(t, report.Rejected)
	assert.Len(t, report.Loads, 3)
	require.NotNil(t, report.Manifest)
	assert.Equal(t, report.BuildID, report.Manifest.BuildID)
	assert.Equal(t, 5, report.Manifest.Concepts)
	assert.NotNil(t, report.Embedder)

	assert.Equal(t, 5, h.store.Count())
	assert.Equal(t, 5, h.index.Count())
	assert.Equal(t, report.BuildID, h.mapping.Generation().BuildID)

	results, err := h.mapping.FindMappings(ctx, "NAMC001", core.SystemNAMASTE, core.SystemICD11Biomedicine)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "MG30", results[0].Target.Code)
	assert.Greater(t, results[0].Confidence, 0.6)
	assert.NotEmpty(t, results[0].Explanation)
}

func TestRefresh_Idempotent(t *testing.T) {
	h := newHarness(t, newIndex(t), nil)
	ctx := context.Background()

	first, err := h.pipeline.Refresh(ctx, fixtureProviders()...)
	require.NoError(t, err)
	second, err := h.pipeline.Refresh(ctx, fixtureProviders()...)
	require.NoError(t, err)

	assert.Equal(t, first.BuildID, second.BuildID)
	assert.Greater(t, second.Manifest.Generation, first.Manifest.Generation)
	assert.Equal(t, 5, h.index.Count())
}

func TestRefresh_ReadersSeeOneBuild(t *testing.T) {
	h := newHarness(t, newIndex(t), nil)
	ctx := context.Background()

	revised, err := h.pipeline.Refresh(ctx, revisedProviders()...)
	require.NoError(t, err)
	original, err := h.pipeline.Refresh(ctx, fixtureProviders()...)
	require.NoError(t, err)
	require.NotEqual(t, original.BuildID, revised.BuildID)

	totals := map[string]int{original.BuildID: 5, revised.BuildID: 6}
	targets := map[string][]string{
		"Jvara":         {"MG30"},
		"Jvara (Fever)": {"MG31", "386661006"},
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			providers := fixtureProviders()
			if i%2 == 0 {
				providers = revisedProviders()
			}
			_, err := h.pipeline.Refresh(ctx, providers...)
			assert.NoError(t, err)
		}
	}()

	for range 200 {
		stats := h.mapping.Statistics()
		want, ok := totals[stats.BuildID]
		require.True(t, ok, "unknown build %q", stats.BuildID)
		assert.Equal(t, want, stats.TotalConcepts, "statistics of build %s", stats.BuildID)

		results, err := h.mapping.FindMappings(ctx, "NAMC001", core.SystemNAMASTE)
		require.NoError(t, err)
		for _, r := range results {
			assert.Equal(t, results[0].Source.Display, r.Source.Display, "one call reads one generation")
			assert.Contains(t, targets[r.Source.Display], r.Target.Code, "target of %q", r.Source.Display)
		}
	}
	close(stop)
	wg.Wait()
}

func TestRefresh_MalformedRecordsSkipped(t *testing.T) {
	h := newHarness(t, newIndex(t), nil)
	providers := append(fixtureProviders(), feed.NewStatic("loinc", core.SystemLOINC, []core.RawConcept{
		{Code: "8310-5", Display: "Body temperature"},
		{Code: "", Display: "No code"},
		{Code: "8480-6", Display: "   "},
	}))

	report, err := h.pipeline.Refresh(context.Background(), providers...)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Rejected)
	assert.Equal(t, 6, report.Embedded)
	assert.Equal(t, 6, h.store.Count())
}

func TestRefresh_FailureKeepsPreviousGeneration(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("upstream down")

	tests := []struct {
		name      string
		opts      []Option
		providers func() []feed.Provider
		want      error
	}{
		{
			name: "provider failure",
			providers: func() []feed.Provider {
				return append(fixtureProviders(), failingProvider{err: boom})
			},
			want: feed.ErrProviderFailed,
		},
		{
			name:      "empty corpus",
			providers: func() []feed.Provider { return []feed.Provider{feed.NewStatic("none", core.SystemLOINC, nil)} },
			want:      core.ErrEmptyCorpus,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, newIndex(t), nil, tt.opts...)
			before, err := h.pipeline.Refresh(ctx, fixtureProviders()...)
			require.NoError(t, err)

			_, err = h.pipeline.Refresh(ctx, tt.providers()...)
			require.ErrorIs(t, err, tt.want)

			assert.Equal(t, before.Manifest.Generation, h.index.Manifest().Generation)
			assert.Equal(t, 5, h.store.Count())
			assert.Equal(t, before.BuildID, h.mapping.Generation().BuildID)
		})
	}
}

func TestRefresh_EmbeddingFailureAborts(t *testing.T) {
	ctx := context.Background()
	index := newIndex(t)

	good := newHarness(t, index, nil)
	before, err := good.pipeline.Refresh(ctx, fixtureProviders()...)
	require.NoError(t, err)

	failing := mock.NewMockEmbedder()
	failing.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("model offline")
	}
	bad := newHarness(t, index, nil, WithEmbedder(failing, "mock"))
	_, err = bad.pipeline.Refresh(ctx, fixtureProviders()...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed concepts")

	assert.Equal(t, before.Manifest.Generation, index.Manifest().Generation)
	assert.Equal(t, 5, index.Count())
	assert.Zero(t, bad.store.Count(), "store is only swapped after commit")
}

func TestRefresh_Cancelled(t *testing.T) {
	h := newHarness(t, newIndex(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.pipeline.Refresh(ctx, fixtureProviders()...)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, h.index.Manifest())
	assert.Zero(t, h.store.Count())
}

func TestRefresh_NoProviders(t *testing.T) {
	h := newHarness(t, newIndex(t), nil)
	_, err := h.pipeline.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestRefresh_DenseEmbedder(t *testing.T) {
	cfg := similarity.DefaultConfig()
	cfg.SemanticModel = similarity.SemanticDense
	embedder := mock.NewMockEmbedder()
	h := newHarness(t, newIndex(t), []mapping.Option{mapping.WithConfig(cfg)}, WithEmbedder(embedder, "mock:384"))

	report, err := h.pipeline.Refresh(context.Background(), fixtureProviders()...)
	require.NoError(t, err)
	assert.Same(t, embedder, report.Embedder)
	assert.Equal(t, mock.DefaultDimension, report.Manifest.Dimension)

	_, err = h.mapping.FindMappings(context.Background(), "NAMC001", core.SystemNAMASTE)
	require.NoError(t, err)
}

func TestReindex(t *testing.T) {
	h := newHarness(t, newIndex(t), nil)
	ctx := context.Background()

	_, err := h.pipeline.Reindex(ctx)
	assert.ErrorIs(t, err, core.ErrEmptyCorpus)

	first, err := h.pipeline.Refresh(ctx, fixtureProviders()...)
	require.NoError(t, err)
	again, err := h.pipeline.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.BuildID, again.BuildID)
	assert.Equal(t, 5, again.Embedded)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	index := newIndex(t)
	path := filepath.Join(t.TempDir(), "mappings.db")

	bolt, err := mapping.OpenBoltStore(path, nil)
	require.NoError(t, err)
	first := newHarness(t, index, []mapping.Option{mapping.WithPersistence(bolt)})
	built, err := first.pipeline.Refresh(ctx, fixtureProviders()...)
	require.NoError(t, err)
	require.NoError(t, first.mapping.Close())
	require.NoError(t, bolt.Close())

	t.Run("mappings restored from persistence", func(t *testing.T) {
		bolt, err := mapping.OpenBoltStore(path, nil)
		require.NoError(t, err)
		defer bolt.Close()
		h := newHarness(t, index, []mapping.Option{mapping.WithPersistence(bolt)})

		report, err := h.pipeline.Restore(ctx)
		require.NoError(t, err)
		require.NotNil(t, report)
		assert.True(t, report.Restored)
		assert.True(t, report.MappingsRestored)
		assert.Equal(t, built.BuildID, report.BuildID)
		assert.NotNil(t, report.Embedder)
		assert.Equal(t, 5, h.store.Count())
		assert.Equal(t, built.Manifest.Generation, index.Manifest().Generation)

		results, err := h.mapping.FindMappings(ctx, "NAMC001", core.SystemNAMASTE, core.SystemICD11Biomedicine)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "MG30", results[0].Target.Code)
	})

	t.Run("mappings rebuilt without persistence", func(t *testing.T) {
		h := newHarness(t, index, nil)
		report, err := h.pipeline.Restore(ctx)
		require.NoError(t, err)
		assert.True(t, report.Restored)
		assert.False(t, report.MappingsRestored)
		assert.Equal(t, built.BuildID, h.mapping.Generation().BuildID)
	})

	t.Run("changed settings rebuild the index", func(t *testing.T) {
		cfg := similarity.DefaultConfig()
		cfg.MaxCandidates = 2
		h := newHarness(t, index, []mapping.Option{mapping.WithConfig(cfg)})
		report, err := h.pipeline.Restore(ctx)
		require.NoError(t, err)
		assert.False(t, report.Restored)
		assert.NotEqual(t, built.BuildID, report.BuildID)
		assert.Equal(t, report.BuildID, index.Manifest().BuildID)
		assert.Equal(t, 5, h.store.Count())
	})
}

func TestRestore_EmptyIndex(t *testing.T) {
	h := newHarness(t, newIndex(t), nil)
	report, err := h.pipeline.Restore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report)
}
