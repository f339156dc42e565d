package reembed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/termbridge/ai/mock"
	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// recordingSink captures writes for assertions.
type recordingSink struct {
	ids       []string
	vectors   [][]float32
	metadata  []map[string]string
	concepts  []*core.Concept
	upsertErr error
}

func (s *recordingSink) UpsertBatch(_ context.Context, ids []string, vectors [][]float32, metadata []map[string]string) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.ids = append(s.ids, ids...)
	s.vectors = append(s.vectors, vectors...)
	s.metadata = append(s.metadata, metadata...)
	return nil
}

func (s *recordingSink) PutConcepts(_ context.Context, concepts []*core.Concept) error {
	s.concepts = append(s.concepts, concepts...)
	return nil
}

func testConcepts(n int) []*core.Concept {
	out := make([]*core.Concept, n)
	for i := range out {
		out[i] = &core.Concept{
			System:     core.SystemSNOMEDCT,
			Code:       fmt.Sprintf("%06d", i),
			Display:    fmt.Sprintf("Finding %d", i),
			Definition: "Clinical finding",
		}
	}
	return out
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond}
}

func TestBatchProcessor_Process(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 2, 2} // magnitude 3
		}
		return out, nil
	}
	sink := &recordingSink{}
	concepts := testConcepts(2)

	err := NewBatchProcessor(embedder, fastPolicy()).Process(context.Background(), sink, concepts)
	require.NoError(t, err)

	assert.Equal(t, []string{"SNOMED_CT:000000", "SNOMED_CT:000001"}, sink.ids)
	for _, v := range sink.vectors {
		assert.InDelta(t, 1.0, magnitude(v), 1e-6)
	}
	assert.Equal(t, "Finding 0", sink.metadata[0]["display"])
	assert.Equal(t, "SNOMED_CT", sink.metadata[0]["system"])
	assert.Equal(t, "000001", sink.metadata[1]["code"])
	assert.Equal(t, concepts, sink.concepts)
}

func TestBatchProcessor_EmbedsSearchText(t *testing.T) {
	var seen []string
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		seen = texts
		return make([][]float32, len(texts)), nil
	}
	c := &core.Concept{System: core.SystemNAMASTE, Code: "NAMC001", Display: "Jvara", Definition: "Elevated body temperature"}

	require.NoError(t, NewBatchProcessor(embedder, fastPolicy()).Process(context.Background(), &recordingSink{}, []*core.Concept{c}))
	assert.Equal(t, []string{"Jvara: Elevated body temperature"}, seen)
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	err := NewBatchProcessor(embedder, fastPolicy()).Process(context.Background(), &recordingSink{}, nil)
	require.NoError(t, err)
	assert.Zero(t, embedder.CallCount())
}

func TestBatchProcessor_Retry(t *testing.T) {
	var attempts atomic.Int32
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("temporary error")
		}
		return make([][]float32, len(texts)), nil
	}

	err := NewBatchProcessor(embedder, fastPolicy()).Process(context.Background(), &recordingSink{}, testConcepts(1))
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestBatchProcessor_Errors(t *testing.T) {
	tests := []struct {
		name    string
		embed   func(context.Context, []string) ([][]float32, error)
		sinkErr error
		want    string
	}{
		{
			name:  "embedding fails",
			embed: func(context.Context, []string) ([][]float32, error) { return nil, errors.New("embedding error") },
			want:  "embedding error",
		},
		{
			name:  "count mismatch",
			embed: func(context.Context, []string) ([][]float32, error) { return [][]float32{{1}}, nil },
			want:  ErrEmbeddingCountMismatch.Error(),
		},
		{
			name:    "sink fails",
			sinkErr: errors.New("disk full"),
			want:    "disk full",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := mock.NewMockEmbedder()
			embedder.EmbedTextsFunc = tt.embed
			err := NewBatchProcessor(embedder, fastPolicy()).Process(context.Background(), &recordingSink{upsertErr: tt.sinkErr}, testConcepts(2))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
