// Package retry runs fallible operations with bounded exponential backoff.
package retry
