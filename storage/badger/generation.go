package badger

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/storage"
)

// generationWriter stages a new generation under its own key prefix.
type generationWriter struct {
	index   *VectorIndex
	gen     uint64
	buildID string

	mu        sync.Mutex
	entries   map[string]entry
	dimension int
	concepts  int
	closed    bool
}

var _ storage.GenerationWriter = (*generationWriter)(nil)

func (w *generationWriter) UpsertBatch(ctx context.Context, ids []string, vectors [][]float32, metadata []map[string]string) error {
	if err := storage.ValidateBatch(ids, vectors, metadata); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return storage.ErrGenerationClosed
	}
	if len(ids) == 0 {
		return nil
	}
	if w.dimension == 0 {
		w.dimension = len(vectors[0])
	}
	if err := checkDimensions(vectors, w.dimension); err != nil {
		return err
	}

	err := w.index.backend.WithTx(func(tx *badger.Txn) error {
		if err := writeVectors(tx, w.gen, ids, vectors, metadata); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}
	for i, id := range ids {
		w.entries[id] = newEntry(vectors[i], metaAt(metadata, i))
	}
	return nil
}

func (w *generationWriter) PutConcepts(ctx context.Context, concepts []*core.Concept) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return storage.ErrGenerationClosed
	}
	if err := w.index.concepts.PutConcepts(ctx, w.gen, w.concepts, concepts); err != nil {
		return err
	}
	w.concepts += len(concepts)
	return nil
}

func (w *generationWriter) Vector(id string) ([]float32, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[id]
	return e.vector, ok
}

func (w *generationWriter) Commit(ctx context.Context) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, storage.ErrGenerationClosed
	}

	manifest := &storage.Manifest{
		FormatVersion: storage.FormatVersion,
		BuildID:       w.buildID,
		Generation:    w.gen,
		Dimension:     w.dimension,
		Count:         len(w.entries),
		Concepts:      w.concepts,
		CreatedAt:     time.Now().UTC(),
	}

	idx := w.index
	idx.writeMu.Lock()
	err := idx.backend.WithTx(func(tx *badger.Txn) error {
		if err := idx.manifests.SetManifest(tx, manifest); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		idx.writeMu.Unlock()
		return nil, err
	}
	committed := &snapshot{manifest: manifest, entries: w.entries}
	old := idx.current.Swap(committed)
	idx.writeMu.Unlock()
	w.closed = true

	idx.logger.Info("committed generation", "generation", w.gen, "build_id", w.buildID, "count", manifest.Count)
	if old.manifest != nil && old.manifest.Generation != w.gen {
		if err := idx.backend.DropPrefix(makeGenerationPrefix(old.manifest.Generation)); err != nil {
			idx.logger.Warn("failed to drop previous generation", "generation", old.manifest.Generation, "err", err)
		}
	}
	return committed, nil
}

func (w *generationWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.entries = nil
	w.index.logger.Debug("aborted generation", "generation", w.gen)
	return w.index.backend.DropPrefix(makeGenerationPrefix(w.gen))
}
