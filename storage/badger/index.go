package badger

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/storage"
)

type entry struct {
	vector   []float32
	metadata map[string]string
	norm     float64
}

func newEntry(vector []float32, metadata map[string]string) entry {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	return entry{vector: vector, metadata: metadata, norm: math.Sqrt(sum)}
}

// snapshot is an immutable in-memory copy of one committed generation.
type snapshot struct {
	manifest *storage.Manifest
	entries  map[string]entry
}

var _ storage.Snapshot = (*snapshot)(nil)

// VectorIndex implements storage.VectorIndex over BadgerDB. Every committed
// entry is mirrored in memory for brute-force cosine search.
type VectorIndex struct {
	backend   *Backend
	manifests *ManifestRepository
	concepts  *ConceptRepository
	seq       *badger.Sequence
	current   atomic.Pointer[snapshot]
	writeMu   sync.Mutex
	logger    *slog.Logger
}

var _ storage.VectorIndex = (*VectorIndex)(nil)

// Option configures a VectorIndex.
type Option func(*VectorIndex) error

// WithLogger sets a custom logger for the index.
func WithLogger(logger *slog.Logger) Option {
	return func(v *VectorIndex) error {
		if logger == nil {
			logger = slog.Default()
		}
		v.logger = logger.With("component", "vector-index")
		return nil
	}
}

// OpenIndex loads the live generation from backend and discards generations
// left behind by interrupted rebuilds.
//
// Returns storage.VectorIndex interface to enforce abstraction.
func OpenIndex(ctx context.Context, backend *Backend, opts ...Option) (storage.VectorIndex, error) {
	return openIndex(ctx, backend, opts...)
}

func openIndex(ctx context.Context, backend *Backend, opts ...Option) (*VectorIndex, error) {
	if backend == nil {
		return nil, storage.ErrBackendRequired
	}
	concepts, err := NewConceptRepository(backend)
	if err != nil {
		return nil, err
	}
	v := &VectorIndex{
		backend:   backend,
		manifests: NewManifestRepository(backend),
		concepts:  concepts,
		logger:    slog.Default().With("component", "vector-index"),
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	manifest, err := v.manifests.LoadManifest()
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	snap := &snapshot{manifest: manifest, entries: make(map[string]entry)}
	if manifest != nil {
		prefix := makeVectorPrefix(manifest.Generation)
		err := backend.ScanPrefix(ctx, prefix, func(key, value []byte) error {
			vector, metadata, err := storage.UnmarshalVectorRecord(value)
			if err != nil {
				return err
			}
			snap.entries[idFromKey(key, prefix)] = newEntry(vector, metadata)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("load generation %d: %w", manifest.Generation, err)
		}
	}
	v.current.Store(snap)

	if err := v.dropOrphans(manifest); err != nil {
		v.logger.Warn("failed to drop orphaned generations", "err", err)
	}

	v.seq, err = backend.GetSequence(generationSeq)
	if err != nil {
		return nil, err
	}

	if manifest != nil {
		v.logger.Info("opened index", "generation", manifest.Generation, "build_id", manifest.BuildID, "count", len(snap.entries))
	}
	return v, nil
}

func (v *VectorIndex) dropOrphans(live *storage.Manifest) error {
	orphans := make(map[uint64]struct{})
	err := v.backend.ScanKeys([]byte(generationRoot), func(key []byte) error {
		if gen, ok := parseGeneration(key); ok && (live == nil || gen != live.Generation) {
			orphans[gen] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for gen := range orphans {
		v.logger.Info("dropping orphaned generation", "generation", gen)
		if err := v.backend.DropPrefix(makeGenerationPrefix(gen)); err != nil {
			return err
		}
	}
	return nil
}

func (v *VectorIndex) nextGeneration() (uint64, error) {
	live := v.current.Load().manifest
	for {
		n, err := v.seq.Next()
		if err != nil {
			return 0, err
		}
		if gen := n + 1; live == nil || gen > live.Generation {
			return gen, nil
		}
	}
}

// UpsertBatch implements storage.VectorIndex.
func (v *VectorIndex) UpsertBatch(ctx context.Context, ids []string, vectors [][]float32, metadata []map[string]string) error {
	if err := storage.ValidateBatch(ids, vectors, metadata); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	old := v.current.Load()
	manifest := &storage.Manifest{FormatVersion: storage.FormatVersion, CreatedAt: time.Now().UTC()}
	if old.manifest != nil {
		*manifest = *old.manifest
	} else {
		gen, err := v.nextGeneration()
		if err != nil {
			return err
		}
		manifest.Generation = gen
	}
	if manifest.Dimension == 0 {
		manifest.Dimension = len(vectors[0])
	}
	if err := checkDimensions(vectors, manifest.Dimension); err != nil {
		return err
	}

	next := &snapshot{manifest: manifest, entries: make(map[string]entry, len(old.entries)+len(ids))}
	for id, e := range old.entries {
		next.entries[id] = e
	}
	for i, id := range ids {
		next.entries[id] = newEntry(vectors[i], metaAt(metadata, i))
	}
	manifest.Count = len(next.entries)

	err := v.backend.WithTx(func(tx *badger.Txn) error {
		if err := writeVectors(tx, manifest.Generation, ids, vectors, metadata); err != nil {
			return err
		}
		if err := v.manifests.SetManifest(tx, manifest); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}
	v.current.Store(next)
	return nil
}

func writeVectors(tx *badger.Txn, gen uint64, ids []string, vectors [][]float32, metadata []map[string]string) error {
	for i, id := range ids {
		value := storage.MarshalVectorRecord(vectors[i], metaAt(metadata, i))
		if err := tx.Set(makeVectorKey(gen, id), value); err != nil {
			return err
		}
	}
	return nil
}

func checkDimensions(vectors [][]float32, dim int) error {
	for _, vec := range vectors {
		if len(vec) != dim {
			return fmt.Errorf("%w: got %d, want %d", storage.ErrDimensionMismatch, len(vec), dim)
		}
	}
	return nil
}

func metaAt(metadata []map[string]string, i int) map[string]string {
	if metadata == nil {
		return nil
	}
	return metadata[i]
}

// Query implements storage.VectorIndex.
func (v *VectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]core.IndexHit, error) {
	return v.current.Load().Query(ctx, vector, topK)
}

// Query implements storage.Snapshot.
func (s *snapshot) Query(ctx context.Context, vector []float32, topK int) ([]core.IndexHit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", storage.ErrInvalidQuery)
	}
	if len(s.entries) == 0 {
		return nil, core.ErrEmptyIndex
	}
	if s.manifest != nil && len(vector) != s.manifest.Dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", storage.ErrDimensionMismatch, len(vector), s.manifest.Dimension)
	}

	query := newEntry(vector, nil)
	hits := make([]core.IndexHit, 0, len(s.entries))
	n := 0
	for id, e := range s.entries {
		if n++; n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		hits = append(hits, core.IndexHit{
			ID:       id,
			Metadata: e.metadata,
			Distance: cosineDistance(query, e),
		})
	}

	slices.SortFunc(hits, func(a, b core.IndexHit) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// cosineDistance returns 1 - cosine similarity in [0, 2]. A zero vector is
// treated as orthogonal to everything.
func cosineDistance(a, b entry) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 1
	}
	var dot float64
	for i := range a.vector {
		dot += float64(a.vector[i]) * float64(b.vector[i])
	}
	sim := dot / (a.norm * b.norm)
	return math.Max(0, math.Min(2, 1-sim))
}

// Vector implements storage.VectorIndex.
func (v *VectorIndex) Vector(id string) ([]float32, bool) {
	return v.current.Load().Vector(id)
}

// Count implements storage.VectorIndex.
func (v *VectorIndex) Count() int {
	return v.current.Load().Count()
}

// Manifest implements storage.VectorIndex.
func (v *VectorIndex) Manifest() *storage.Manifest {
	return v.current.Load().Manifest()
}

// Snapshot implements storage.VectorIndex.
func (v *VectorIndex) Snapshot() storage.Snapshot {
	return v.current.Load()
}

func (s *snapshot) Vector(id string) ([]float32, bool) {
	e, ok := s.entries[id]
	return e.vector, ok
}

func (s *snapshot) Count() int {
	return len(s.entries)
}

func (s *snapshot) Manifest() *storage.Manifest {
	if s.manifest == nil {
		return nil
	}
	cp := *s.manifest
	return &cp
}

// Concepts implements storage.VectorIndex.
func (v *VectorIndex) Concepts(ctx context.Context) ([]*core.Concept, error) {
	m := v.current.Load().manifest
	if m == nil {
		return nil, nil
	}
	return v.concepts.LoadConcepts(ctx, m.Generation)
}

// BeginGeneration implements storage.VectorIndex.
func (v *VectorIndex) BeginGeneration(ctx context.Context, buildID string) (storage.GenerationWriter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.writeMu.Lock()
	gen, err := v.nextGeneration()
	v.writeMu.Unlock()
	if err != nil {
		return nil, err
	}
	v.logger.Debug("began generation", "generation", gen, "build_id", buildID)
	return &generationWriter{
		index:   v,
		gen:     gen,
		buildID: buildID,
		entries: make(map[string]entry),
	}, nil
}

// Close releases the generation sequence. The backend is closed by its owner.
func (v *VectorIndex) Close() error {
	if v.seq == nil {
		return nil
	}
	err := v.seq.Release()
	v.seq = nil
	return err
}
