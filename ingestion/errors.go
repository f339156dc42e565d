package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a concept store is not provided.
	ErrStoreRequired = errors.New("concept store required")

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrMappingRequired is returned when a mapping service is not provided.
	ErrMappingRequired = errors.New("mapping service required")

	// ErrNoProviders is returned by Refresh when called without providers.
	ErrNoProviders = errors.New("no feed providers")
)
