package badger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryIndex(t *testing.T) storage.VectorIndex {
	t.Helper()
	index, backend, err := NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		backend.Close()
	})
	return index
}

func TestQuery_EmptyIndex(t *testing.T) {
	index := newMemoryIndex(t)
	_, err := index.Query(context.Background(), []float32{1, 0}, 5)
	assert.ErrorIs(t, err, core.ErrEmptyIndex)
	assert.Nil(t, index.Manifest())
}

func TestUpsertBatch_AndQuery(t *testing.T) {
	index := newMemoryIndex(t)
	ctx := context.Background()

	err := index.UpsertBatch(ctx,
		[]string{"SNOMED_CT:b", "SNOMED_CT:a", "SNOMED_CT:c"},
		[][]float32{{1, 0}, {1, 0}, {0, 1}},
		[]map[string]string{{"display": "B"}, {"display": "A"}, {"display": "C"}},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, index.Count())

	hits, err := index.Query(ctx, []float32{2, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "SNOMED_CT:a", hits[0].ID, "ties rank by id")
	assert.Equal(t, "SNOMED_CT:b", hits[1].ID)
	assert.InDelta(t, 0, hits[0].Distance, 1e-9)
	assert.InDelta(t, 1, hits[2].Distance, 1e-9)
	assert.Equal(t, "A", hits[0].Metadata["display"])

	hits, err = index.Query(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "SNOMED_CT:c", hits[0].ID)
}

func TestUpsertBatch_Overwrites(t *testing.T) {
	index := newMemoryIndex(t)
	ctx := context.Background()

	require.NoError(t, index.UpsertBatch(ctx, []string{"x"}, [][]float32{{1, 0}}, nil))
	require.NoError(t, index.UpsertBatch(ctx, []string{"x"}, [][]float32{{0, 1}}, nil))

	assert.Equal(t, 1, index.Count())
	vec, ok := index.Vector("x")
	require.True(t, ok)
	assert.Equal(t, []float32{0, 1}, vec)
	assert.Equal(t, 1, index.Manifest().Count)
}

func TestUpsertBatch_Errors(t *testing.T) {
	index := newMemoryIndex(t)
	ctx := context.Background()

	ids := make([]string, storage.MaxBatchSize+1)
	vecs := make([][]float32, len(ids))
	for i := range ids {
		ids[i] = string(rune('a' + i%26))
		vecs[i] = []float32{1}
	}
	assert.ErrorIs(t, index.UpsertBatch(ctx, ids, vecs, nil), storage.ErrBatchTooLarge)
	assert.ErrorIs(t, index.UpsertBatch(ctx, []string{"a"}, nil, nil), storage.ErrInvalidBatch)

	require.NoError(t, index.UpsertBatch(ctx, []string{"a"}, [][]float32{{1, 2}}, nil))
	assert.ErrorIs(t, index.UpsertBatch(ctx, []string{"b"}, [][]float32{{1}}, nil), storage.ErrDimensionMismatch)

	_, err := index.Query(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
	_, err = index.Query(ctx, []float32{1, 2}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestGeneration_InvisibleUntilCommit(t *testing.T) {
	index := newMemoryIndex(t)
	ctx := context.Background()
	require.NoError(t, index.UpsertBatch(ctx, []string{"old"}, [][]float32{{1, 0}}, nil))

	w, err := index.BeginGeneration(ctx, "build-2")
	require.NoError(t, err)
	require.NoError(t, w.UpsertBatch(ctx, []string{"new"}, [][]float32{{0, 1}}, nil))
	require.NoError(t, w.PutConcepts(ctx, []*core.Concept{{System: core.SystemNAMASTE, Code: "new", Display: "New"}}))

	_, ok := index.Vector("new")
	assert.False(t, ok, "staged entries are not visible")
	staged, ok := w.Vector("new")
	assert.True(t, ok)
	assert.Equal(t, []float32{0, 1}, staged)

	previous := index.Snapshot()
	committed, err := w.Commit(ctx)
	require.NoError(t, err)
	m := committed.Manifest()
	assert.Equal(t, "build-2", m.BuildID)
	assert.Equal(t, 1, m.Count)
	assert.Equal(t, 1, m.Concepts)
	assert.Equal(t, 1, committed.Count())

	_, ok = index.Vector("old")
	assert.False(t, ok, "previous generation is replaced")
	assert.Equal(t, "build-2", index.Manifest().BuildID)

	// A snapshot taken before the commit keeps answering from its own build.
	hits, err := previous.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "old", hits[0].ID)
	_, err = previous.Query(ctx, []float32{1, 0, 0}, 5)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	concepts, err := index.Concepts(ctx)
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.Equal(t, "new", concepts[0].Code)

	_, err = w.Commit(ctx)
	assert.ErrorIs(t, err, storage.ErrGenerationClosed)
	assert.ErrorIs(t, w.UpsertBatch(ctx, []string{"z"}, [][]float32{{1, 1}}, nil), storage.ErrGenerationClosed)
	assert.NoError(t, w.Abort())
}

func TestGeneration_Abort(t *testing.T) {
	index := newMemoryIndex(t)
	ctx := context.Background()
	require.NoError(t, index.UpsertBatch(ctx, []string{"old"}, [][]float32{{1, 0}}, nil))
	before := index.Manifest()

	w, err := index.BeginGeneration(ctx, "doomed")
	require.NoError(t, err)
	require.NoError(t, w.UpsertBatch(ctx, []string{"new"}, [][]float32{{0, 1}}, nil))
	require.NoError(t, w.Abort())

	assert.Equal(t, before, index.Manifest())
	_, ok := index.Vector("old")
	assert.True(t, ok)
}

func TestGeneration_CommitCancelled(t *testing.T) {
	index := newMemoryIndex(t)
	w, err := index.BeginGeneration(context.Background(), "b")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.Commit(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, index.Manifest())
	require.NoError(t, w.Abort())
}

func TestIndex_ReopenRestoresGeneration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	ctx := context.Background()

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	index, err := OpenIndex(ctx, backend)
	require.NoError(t, err)

	w, err := index.BeginGeneration(ctx, "committed")
	require.NoError(t, err)
	require.NoError(t, w.UpsertBatch(ctx, []string{"a"}, [][]float32{{1, 0}}, []map[string]string{{"code": "a"}}))
	_, err = w.Commit(ctx)
	require.NoError(t, err)

	// Simulate a crash mid-rebuild: staged writes never committed.
	orphan, err := index.BeginGeneration(ctx, "crashed")
	require.NoError(t, err)
	require.NoError(t, orphan.UpsertBatch(ctx, []string{"b"}, [][]float32{{0, 1}}, nil))

	require.NoError(t, index.Close())
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()
	index, err = OpenIndex(ctx, backend)
	require.NoError(t, err)
	defer index.Close()

	assert.Equal(t, "committed", index.Manifest().BuildID)
	assert.Equal(t, 1, index.Count())
	hits, err := index.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].Metadata["code"])

	var orphanKeys int
	require.NoError(t, backend.ScanKeys([]byte(generationRoot), func(key []byte) error {
		if gen, ok := parseGeneration(key); ok && gen != index.Manifest().Generation {
			orphanKeys++
		}
		return nil
	}))
	assert.Zero(t, orphanKeys)

	// New generations never reuse a number.
	w, err = index.BeginGeneration(ctx, "next")
	require.NoError(t, err)
	defer w.Abort()
	assert.Greater(t, w.(*generationWriter).gen, index.Manifest().Generation)
}

func TestQuery_ConsistentDuringCommit(t *testing.T) {
	index := newMemoryIndex(t)
	ctx := context.Background()

	ids := []string{"a", "b"}
	require.NoError(t, index.UpsertBatch(ctx, ids, [][]float32{{1, 0}, {1, 0}}, []map[string]string{{"gen": "1"}, {"gen": "1"}}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			w, err := index.BeginGeneration(ctx, "next")
			if !assert.NoError(t, err) {
				return
			}
			gen := "2"
			if i%2 == 1 {
				gen = "1"
			}
			assert.NoError(t, w.UpsertBatch(ctx, ids, [][]float32{{1, 0}, {1, 0}}, []map[string]string{{"gen": gen}, {"gen": gen}}))
			_, err = w.Commit(ctx)
			assert.NoError(t, err)
		}
	}()

	for i := 0; i < 200; i++ {
		hits, err := index.Query(ctx, []float32{1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, hits[0].Metadata["gen"], hits[1].Metadata["gen"], "a query never mixes generations")
	}
	wg.Wait()
}
