package reembed

import (
	"context"

	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/storage"
)

// ConceptIterator walks a concept slice in fixed-size batches.
type ConceptIterator struct {
	concepts  []*core.Concept
	batchSize int
}

// NewConceptIterator creates an iterator. Batch sizes outside
// (0, storage.MaxBatchSize] fall back to storage.MaxBatchSize.
func NewConceptIterator(concepts []*core.Concept, batchSize int) *ConceptIterator {
	if batchSize <= 0 || batchSize > storage.MaxBatchSize {
		batchSize = storage.MaxBatchSize
	}
	return &ConceptIterator{concepts: concepts, batchSize: batchSize}
}

// Len returns the number of concepts.
func (it *ConceptIterator) Len() int {
	return len(it.concepts)
}

// ForEach calls fn with each batch in order, stopping at the first error or
// when ctx is done.
func (it *ConceptIterator) ForEach(ctx context.Context, fn func([]*core.Concept) error) error {
	for i := 0; i < len(it.concepts); i += it.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+it.batchSize, len(it.concepts))
		if err := fn(it.concepts[i:end]); err != nil {
			return err
		}
	}
	return ctx.Err()
}
