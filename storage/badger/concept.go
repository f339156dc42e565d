package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/storage"
)

// ConceptRepository persists the concept records of each index generation.
type ConceptRepository struct {
	backend *Backend
}

// NewConceptRepository creates a new ConceptRepository.
func NewConceptRepository(backend *Backend) (*ConceptRepository, error) {
	if backend == nil {
		return nil, storage.ErrBackendRequired
	}
	return &ConceptRepository{
		backend: backend,
	}, nil
}

// PutConcepts writes concepts into a generation starting at position offset,
// MaxBatchSize per transaction.
func (r *ConceptRepository) PutConcepts(ctx context.Context, gen uint64, offset int, concepts []*core.Concept) error {
	for start := 0; start < len(concepts); start += storage.MaxBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+storage.MaxBatchSize, len(concepts))
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			for i, concept := range concepts[start:end] {
				value := storage.MarshalConcept(concept)
				if err := tx.Set(makeConceptKey(gen, offset+start+i), value); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadConcepts returns every concept of a generation in the order written.
func (r *ConceptRepository) LoadConcepts(ctx context.Context, gen uint64) ([]*core.Concept, error) {
	var concepts []*core.Concept
	err := r.backend.ScanPrefix(ctx, makeConceptPrefix(gen), func(_, value []byte) error {
		concept, err := storage.UnmarshalConcept(value)
		if err != nil {
			return err
		}
		concepts = append(concepts, concept)
		return nil
	})
	return concepts, err
}
