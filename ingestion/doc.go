// Package ingestion runs the refresh pipeline that turns concept feeds into
// a live generation.
//
// A refresh fetches every provider concurrently, loads the records into a
// staging concept store, fits the lexical vectorizer, embeds every concept
// into a new vector index generation and rebuilds the mapping cache. Only
// when all of that succeeded is the generation committed, the concept store
// swapped and the mapping generation published. A failed or cancelled
// refresh aborts the staged generation and leaves the previous one live.
package ingestion
