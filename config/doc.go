// Package config loads termbridge settings from an optional YAML file and
// TERMBRIDGE_* environment variables.
//
// Nested keys map to environment variables by upper-casing and replacing
// dots with underscores, so similarity.min_confidence is read from
// TERMBRIDGE_SIMILARITY_MIN_CONFIDENCE.
package config
