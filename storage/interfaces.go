package storage

import (
	"context"
	"time"

	"github.com/poiesic/termbridge/core"
)

// MaxBatchSize caps the number of entries in one upsert batch.
const MaxBatchSize = 256

// FormatVersion is the on-disk layout version written to manifests.
const FormatVersion = 1

// Manifest describes the live generation of a persisted index.
type Manifest struct {
	FormatVersion int       `json:"format_version"`
	BuildID       string    `json:"build_id"`
	Generation    uint64    `json:"generation"`
	Dimension     int       `json:"dimension"`
	Count         int       `json:"count"`
	Concepts      int       `json:"concepts"`
	CreatedAt     time.Time `json:"created_at"`
}

// Snapshot is one committed generation of a VectorIndex. It never changes
// and stays queryable after later commits replace it, so a reader holding a
// snapshot sees a single build.
type Snapshot interface {
	// Query returns the topK entries nearest to vector by cosine distance
	// (1 - cosine similarity), ascending, ties broken by id.
	// Returns core.ErrEmptyIndex when the snapshot holds no entries.
	Query(ctx context.Context, vector []float32, topK int) ([]core.IndexHit, error)

	// Vector returns the stored embedding for id.
	Vector(id string) ([]float32, bool)

	// Count returns the number of entries.
	Count() int

	// Manifest returns the snapshot's manifest, or nil if none was committed.
	Manifest() *Manifest
}

// VectorIndex is a persistent nearest-neighbor index over dense embeddings.
// Implementations must be thread-safe and support concurrent access.
type VectorIndex interface {
	// UpsertBatch writes up to MaxBatchSize entries into the live generation
	// in one transaction. An existing id is overwritten.
	// metadata may be nil; otherwise it must match ids in length.
	UpsertBatch(ctx context.Context, ids []string, vectors [][]float32, metadata []map[string]string) error

	// Query returns the topK entries nearest to vector by cosine distance
	// (1 - cosine similarity), ascending, ties broken by id.
	// Returns core.ErrEmptyIndex when the index holds no entries.
	Query(ctx context.Context, vector []float32, topK int) ([]core.IndexHit, error)

	// Vector returns the stored embedding for id.
	Vector(id string) ([]float32, bool)

	// Count returns the number of live entries.
	Count() int

	// Manifest returns the live generation's manifest, or nil if none was committed.
	Manifest() *Manifest

	// Snapshot returns the live generation.
	Snapshot() Snapshot

	// Concepts returns the concepts persisted with the live generation.
	Concepts(ctx context.Context) ([]*core.Concept, error)

	// BeginGeneration starts a new generation invisible to readers until Commit.
	BeginGeneration(ctx context.Context, buildID string) (GenerationWriter, error)

	// Close releases resources. The backend is closed by its owner.
	Close() error
}

// GenerationWriter stages a complete replacement of a VectorIndex.
type GenerationWriter interface {
	// UpsertBatch stages up to MaxBatchSize entries in one transaction.
	UpsertBatch(ctx context.Context, ids []string, vectors [][]float32, metadata []map[string]string) error

	// PutConcepts stages the concept records of the generation.
	PutConcepts(ctx context.Context, concepts []*core.Concept) error

	// Vector returns a staged embedding.
	Vector(id string) ([]float32, bool)

	// Commit publishes the generation, drops the previous one from disk and
	// returns the committed snapshot.
	Commit(ctx context.Context) (Snapshot, error)

	// Abort discards every staged write. Safe to call after Commit.
	Abort() error
}

// ValidateBatch checks batch size and parallel slice lengths.
func ValidateBatch(ids []string, vectors [][]float32, metadata []map[string]string) error {
	if len(ids) > MaxBatchSize {
		return ErrBatchTooLarge
	}
	if len(ids) != len(vectors) {
		return ErrInvalidBatch
	}
	if metadata != nil && len(metadata) != len(ids) {
		return ErrInvalidBatch
	}
	for _, id := range ids {
		if id == "" {
			return ErrInvalidBatch
		}
	}
	return nil
}
