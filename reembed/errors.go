package reembed

import "errors"

var (
	// ErrEmbedderRequired is returned when a reembedder is created without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrSinkRequired is returned when Run is called without a destination.
	ErrSinkRequired = errors.New("index sink is required")

	// ErrEmbeddingCountMismatch is returned when the embedder returns a
	// different number of vectors than texts.
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")
)
