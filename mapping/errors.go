package mapping

import "errors"

var (
	// ErrStoreRequired is returned when a service is created without a concept store.
	ErrStoreRequired = errors.New("concept store is required")

	// ErrPoolRequired is returned when a builder is created without a worker pool.
	ErrPoolRequired = errors.New("worker pool is required")

	// ErrScorerRequired is returned when a basis carries no semantic scorer.
	ErrScorerRequired = errors.New("semantic scorer is required")

	// ErrNotReady is returned when no scoring basis has been installed yet.
	ErrNotReady = errors.New("mapping service has no scoring basis")

	// ErrPairFailed wraps the failure of a single system pair during a build.
	ErrPairFailed = errors.New("system pair build failed")

	// ErrInvalidThreshold is returned for a feedback threshold below 1.
	ErrInvalidThreshold = errors.New("feedback threshold must be positive")

	// ErrInvalidWorkers is returned for a worker count below 1.
	ErrInvalidWorkers = errors.New("worker count must be positive")

	// ErrServiceClosed is returned when using a closed service.
	ErrServiceClosed = errors.New("mapping service is closed")
)
