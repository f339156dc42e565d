package similarity

import "errors"

var (
	// ErrScorerRequired is returned when an engine is built without a semantic scorer.
	ErrScorerRequired = errors.New("semantic scorer is required")

	// ErrInvalidConfig is returned when weights or thresholds are out of range.
	ErrInvalidConfig = errors.New("invalid similarity config")

	// ErrUnknownSemanticModel is returned for an unsupported Config.SemanticModel.
	ErrUnknownSemanticModel = errors.New("unknown semantic model")
)
