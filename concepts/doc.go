// Package concepts holds the normalized in-memory representation of every
// loaded terminology concept.
//
// A Store publishes immutable Snapshots through an atomic pointer. Readers
// never lock; writers build a new snapshot and swap it in, then notify
// change listeners with the affected system so derived data can be dropped.
package concepts
