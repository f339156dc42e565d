package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/termbridge/ai"
	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/retry"
)

// Sink receives embedded batches. storage.GenerationWriter satisfies it.
type Sink interface {
	UpsertBatch(ctx context.Context, ids []string, vectors [][]float32, metadata []map[string]string) error
	PutConcepts(ctx context.Context, concepts []*core.Concept) error
}

// BatchProcessor embeds one batch of concepts and writes it to a sink.
type BatchProcessor struct {
	embedder ai.Embedder
	policy   retry.Policy
}

// NewBatchProcessor creates a processor that retries embedding per policy.
func NewBatchProcessor(embedder ai.Embedder, policy retry.Policy) *BatchProcessor {
	return &BatchProcessor{embedder: embedder, policy: policy}
}

// Metadata is the index metadata stored with a concept's vector. Search
// falls back to it when the concept is missing from the concept store.
func Metadata(c *core.Concept) map[string]string {
	return map[string]string{
		"system":  string(c.System),
		"code":    c.Code,
		"display": c.Display,
	}
}

// Process embeds the search text of each concept, normalizes the vectors and
// writes them together with the concept records.
func (bp *BatchProcessor) Process(ctx context.Context, sink Sink, concepts []*core.Concept) error {
	if len(concepts) == 0 {
		return nil
	}

	texts := make([]string, len(concepts))
	for i, c := range concepts {
		texts[i] = c.SearchText()
	}

	var embeddings [][]float32
	err := retry.Do(ctx, bp.policy, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.policy.MaxAttempts, err)
	}
	if len(embeddings) != len(concepts) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(concepts), len(embeddings))
	}

	ids := make([]string, len(concepts))
	vectors := make([][]float32, len(concepts))
	metadata := make([]map[string]string, len(concepts))
	for i, c := range concepts {
		ids[i] = c.ID()
		vectors[i] = ai.NormalizeVector(embeddings[i])
		metadata[i] = Metadata(c)
	}

	if err := sink.UpsertBatch(ctx, ids, vectors, metadata); err != nil {
		return fmt.Errorf("failed to write vectors: %w", err)
	}
	if err := sink.PutConcepts(ctx, concepts); err != nil {
		return fmt.Errorf("failed to write concepts: %w", err)
	}
	return nil
}
