// Package mapping maintains precomputed cross-terminology mappings.
//
// A Generation holds the ranked MappingResults for every configured system
// pair, built by the Builder on an ants worker pool from one concept
// snapshot. The Cache publishes generations atomically so readers always see
// a complete generation. Service is the façade callers use: it looks up
// cached mappings, scores uncached pairs on demand, records reviewer
// feedback and schedules rebuilds that fold the feedback into confidence
// scores. BoltStore persists the published generation and the feedback log
// in a bbolt file.
package mapping
