// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/termbridge/ai"
	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/retry"
	"github.com/poiesic/termbridge/storage"
)

// Config holds configuration for an embedding run.
type Config struct {
	// BatchSize is the number of concepts embedded and written together.
	// Capped at storage.MaxBatchSize.
	BatchSize int

	// ReportInterval is how often to report progress (number of concepts).
	ReportInterval int

	// Retry bounds embedding attempts per batch.
	Retry retry.Policy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      storage.MaxBatchSize,
		ReportInterval: storage.MaxBatchSize,
		Retry:          retry.DefaultPolicy(),
	}
}

// Reembedder writes the dense embeddings of a corpus into a sink.
type Reembedder struct {
	embedder  ai.Embedder
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr), may be nil
func NewReembedder(embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	return &Reembedder{
		embedder:  embedder,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(embedder, config.Retry),
		logger:    slog.Default().With("component", "reembedder"),
	}, nil
}

// Run embeds every concept into sink in batches and returns how many were
// written. Any batch failure stops the run; the caller aborts the sink.
func (r *Reembedder) Run(ctx context.Context, sink Sink, concepts []*core.Concept) (int, error) {
	if sink == nil {
		return 0, ErrSinkRequired
	}
	iterator := NewConceptIterator(concepts, r.config.BatchSize)
	total := iterator.Len()
	if total == 0 {
		r.logger.Info("no concepts to embed")
		return 0, nil
	}

	r.logger.Info("starting embedding", "concepts", total, "batch_size", r.config.BatchSize)
	tracker := NewProgressTracker(r.progress, "Embedding", total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err := iterator.ForEach(ctx, func(batch []*core.Concept) error {
		if err := r.processor.Process(ctx, sink, batch); err != nil {
			return fmt.Errorf("failed to process batch at %d: %w", processed, err)
		}
		processed += len(batch)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return processed, err
	}
	tracker.Finish()

	elapsed := tracker.Elapsed()
	r.logger.Info("embedding complete",
		"concepts", total,
		"duration", elapsed.Round(time.Millisecond),
		"rate", float64(total)/elapsed.Seconds())
	return processed, nil
}
