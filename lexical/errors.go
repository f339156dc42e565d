package lexical

import "errors"

var (
	// ErrNotFitted is returned when a vectorizer is used before Fit.
	ErrNotFitted = errors.New("vectorizer has not been fitted")

	// ErrInvalidNGramRange is returned for an n-gram range outside 1 <= min <= max.
	ErrInvalidNGramRange = errors.New("invalid n-gram range")

	// ErrInvalidMaxFeatures is returned for a non-positive feature cap.
	ErrInvalidMaxFeatures = errors.New("max features must be positive")
)
