// Package similarity scores pairs of concepts from different terminology
// systems and ranks candidate mappings.
//
// Three components feed one weighted confidence:
//
//   - semantic: cosine similarity of the concepts' vectors, clamped to [0, 1]
//   - lexical: Jaccard overlap of the words in display and definition
//   - structural: Jaccard overlap of semantic tags, neutral when tags are absent
//
// The confidence picks a mapping type and the components that cleared their
// own thresholds produce a human-readable explanation. Every weight and
// threshold lives in Config.
//
// Semantic vectors come from a SemanticScorer. TFIDFScorer uses the
// corpus-fit lexical vectorizer and DenseScorer uses stored dense embeddings;
// Config.SemanticModel names the one to build.
package similarity
