// Package lexical implements the corpus-fit TF-IDF vectorizer used for
// concept mapping, plus an ai.Embedder adapter so the same vectors can back
// nearest-neighbor search when no dense model is available.
//
// Text is NFKC-normalized and lower-cased, split into tokens of two or more
// letters or digits, filtered against an English stop-word list, and expanded
// into n-grams formed inside each field of a document. Weights are raw term
// counts times the smoothed inverse document frequency ln((1+n)/(1+df))+1,
// and every vector is l2-normalized.
package lexical
