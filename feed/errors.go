package feed

import "errors"

var (
	// ErrProviderFailed wraps any failure of a single provider.
	ErrProviderFailed = errors.New("feed provider failed")

	// ErrUnsupportedFormat is returned for a records file with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported feed file format")

	// ErrNotCodeSystem is returned when a FHIR resource is not a CodeSystem.
	ErrNotCodeSystem = errors.New("resource is not a FHIR CodeSystem")

	// ErrSystemRequired is returned when a provider's system cannot be determined.
	ErrSystemRequired = errors.New("terminology system is required")

	// ErrUnexpectedStatus is returned for an HTTP response that is neither
	// success nor retryable.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrInvalidOption is returned by a provider option given an unusable value.
	ErrInvalidOption = errors.New("invalid provider option")
)
