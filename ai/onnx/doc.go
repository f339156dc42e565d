// Package onnx runs a sentence-transformer model such as all-MiniLM-L6-v2
// locally with ONNX Runtime.
//
// Texts are tokenized with a HuggingFace tokenizer.json, run through the
// model in batches, mean-pooled over the attention mask and normalized to unit
// length. Embeddings are memoized in memory keyed by text.
package onnx
