package mapping

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/termbridge/core"
	bolt "go.etcd.io/bbolt"
)

// Bucket keys
var (
	bucketGenerations = []byte("generations")
	bucketFeedback    = []byte("feedback")
)

// Persistence stores the published generation and the feedback log.
type Persistence interface {
	// SaveGeneration replaces the stored generation with g.
	SaveGeneration(g *Generation) error

	// LoadGeneration returns the stored generation for buildID, or nil, nil
	// when none is stored under that build id.
	LoadGeneration(buildID string) (*Generation, error)

	// AppendFeedback durably appends one feedback record.
	AppendFeedback(fb core.Feedback) error

	// LoadFeedback returns every stored feedback record in append order.
	LoadFeedback() ([]core.Feedback, error)
}

// BoltStore implements Persistence on a bbolt file. Generations are JSON
// blobs keyed by build id; feedback records are JSON values keyed by a
// big-endian sequence number. Writes are transactional, so a crash mid-save
// leaves the previously committed data intact.
type BoltStore struct {
	db     *bolt.DB
	logger *slog.Logger
}

var _ Persistence = (*BoltStore)(nil)

// OpenBoltStore opens (or creates) a bbolt database at path.
func OpenBoltStore(path string, logger *slog.Logger) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketGenerations, bucketFeedback} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt init buckets: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BoltStore{db: db, logger: logger.With("component", "mapping-store")}, nil
}

// Close closes the underlying bbolt database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveGeneration implements Persistence. Older generations are deleted in the
// same transaction.
func (s *BoltStore) SaveGeneration(g *Generation) error {
	if g == nil {
		return fmt.Errorf("nil generation")
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal generation: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGenerations)
		var stale [][]byte
		err := b.ForEach(func(k, _ []byte) error {
			if string(k) != g.BuildID {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return b.Put([]byte(g.BuildID), data)
	})
	if err != nil {
		return err
	}
	s.logger.Debug("saved generation", "build_id", g.BuildID, "bytes", len(data))
	return nil
}

// LoadGeneration implements Persistence.
func (s *BoltStore) LoadGeneration(buildID string) (*Generation, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		// Copy bytes out of the transaction (bbolt slices are only valid within tx)
		if v := tx.Bucket(bucketGenerations).Get([]byte(buildID)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var g Generation
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("unmarshal generation: %w", err)
	}
	if g.Entries == nil {
		g.Entries = make(map[string]*Entry)
	}
	g.reindex()
	return &g, nil
}

// AppendFeedback implements Persistence.
func (s *BoltStore) AppendFeedback(fb core.Feedback) error {
	data, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFeedback)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
}

// LoadFeedback implements Persistence.
func (s *BoltStore) LoadFeedback() ([]core.Feedback, error) {
	var out []core.Feedback
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFeedback).ForEach(func(k, v []byte) error {
			var fb core.Feedback
			if err := json.Unmarshal(v, &fb); err != nil {
				return fmt.Errorf("unmarshal feedback %x: %w", k, err)
			}
			out = append(out, fb)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
