// Package reembed embeds a concept corpus into a vector index generation.
//
// Concepts are processed in batches no larger than storage.MaxBatchSize:
// each batch is embedded with retry and exponential backoff, normalized to
// unit length and written with the concept records in one batch write, so a
// generation is either fully staged or aborted by the caller. Progress is
// reported to an io.Writer.
package reembed
