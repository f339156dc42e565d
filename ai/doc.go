// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ai provides abstractions for the dense embedding models used by
// termbridge.
//
// Concept descriptions and search queries are turned into vectors by an
// Embedder. Which model produces them is a deployment choice, so the rest of
// the module depends only on the interfaces declared here.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible embedding APIs through langchaingo
//   - ai/onnx: a local sentence-transformer run with ONNX Runtime
//   - ai/mock: deterministic test doubles
//
// The lexical package provides a fourth Embedder backed by the corpus-fit
// TF-IDF vectorizer; it needs no model at all.
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, onnx.NewProvider) return INTERFACE
// types so callers cannot couple to a concrete backend:
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//
// Test utility constructors return CONCRETE types so tests can inject behavior
// and assert on call counts:
//
//	mockEmbed := mock.NewMockEmbedder()  // returns *mock.MockEmbedder
//	count := mockEmbed.CallCount()
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithBackend(ai.BackendONNX))
//	provider, err := onnx.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Jvara: elevated body temperature")
package ai
