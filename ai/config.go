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


package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Dense embedding backends.
const (
	// BackendOpenAI calls an OpenAI-compatible embeddings endpoint.
	BackendOpenAI = "openai"
	// BackendONNX runs a sentence-transformer model locally with ONNX Runtime.
	BackendONNX = "onnx"
	// BackendLexical uses the corpus-fit TF-IDF vectors as dense embeddings.
	BackendLexical = "lexical"
)

// Config holds configuration for the dense embedding backend.
type Config struct {
	// Backend selects the implementation: "openai", "onnx" or "lexical".
	Backend string `mapstructure:"backend"`

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string `mapstructure:"embedding_host"`

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "all-minilm", "text-embedding-3-small"
	EmbeddingModel string `mapstructure:"embedding_model"`

	// ModelPath is the ONNX model file for the onnx backend.
	ModelPath string `mapstructure:"model_path"`

	// TokenizerPath is the HuggingFace tokenizer.json for the onnx backend.
	TokenizerPath string `mapstructure:"tokenizer_path"`

	// OrtLibrary is the path to the ONNX Runtime shared library.
	// Empty uses the platform default lookup.
	OrtLibrary string `mapstructure:"ort_library"`

	// MaxSeqLen truncates tokenized input for the onnx backend.
	// Default: 256
	MaxSeqLen int `mapstructure:"max_seq_len"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBackend selects the embedding backend.
func WithBackend(backend string) ConfigOption {
	return func(c *Config) {
		c.Backend = backend
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithModelFiles sets the ONNX model and tokenizer paths.
func WithModelFiles(modelPath, tokenizerPath string) ConfigOption {
	return func(c *Config) {
		c.ModelPath = modelPath
		c.TokenizerPath = tokenizerPath
	}
}

// WithOrtLibrary sets the ONNX Runtime shared library path.
func WithOrtLibrary(path string) ConfigOption {
	return func(c *Config) {
		c.OrtLibrary = path
	}
}

// WithMaxSeqLen sets the token limit for the onnx backend.
func WithMaxSeqLen(n int) ConfigOption {
	return func(c *Config) {
		c.MaxSeqLen = n
	}
}

// DefaultConfig returns a Config for a local OpenAI-compatible server serving
// all-MiniLM-L6-v2.
func DefaultConfig() *Config {
	return &Config{
		Backend:        BackendOpenAI,
		EmbeddingHost:  "http://localhost:11434/v1",
		EmbeddingModel: "all-minilm",
		ModelPath:      "./models/all-MiniLM-L6-v2/model.onnx",
		TokenizerPath:  "./models/all-MiniLM-L6-v2/tokenizer.json",
		MaxSeqLen:      256,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
// This is the recommended way to create a Config with custom settings.
//
// Example:
//   cfg := NewConfig(
//       WithBackend(BackendONNX),
//       WithModelFiles("model.onnx", "tokenizer.json"),
//   )
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It lower-cases the backend and adds the /v1 suffix to the embedding host,
// which most OpenAI-compatible APIs (Ollama, LocalAI, vLLM) require.
func (c *Config) Normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		// Remove trailing slash if present before adding /v1
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
}

// ModelID identifies the configured dense model for build identifiers.
func (c *Config) ModelID() string {
	switch c.Backend {
	case BackendOpenAI:
		return "openai:" + c.EmbeddingModel
	case BackendONNX:
		return "onnx:" + c.ModelPath
	default:
		return c.Backend
	}
}

// Validate checks that the configuration is valid and complete for its backend.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Backend {
	case BackendOpenAI:
		if c.EmbeddingHost == "" {
			return errors.New("ai config: EmbeddingHost is required")
		}
		if c.EmbeddingModel == "" {
			return errors.New("ai config: EmbeddingModel is required")
		}
	case BackendONNX:
		if c.ModelPath == "" {
			return errors.New("ai config: ModelPath is required")
		}
		if c.TokenizerPath == "" {
			return errors.New("ai config: TokenizerPath is required")
		}
		if c.MaxSeqLen < 8 || c.MaxSeqLen > 512 {
			return errors.New("ai config: MaxSeqLen must be between 8 and 512")
		}
	case BackendLexical:
	default:
		return fmt.Errorf("ai config: unknown Backend %q", c.Backend)
	}
	return nil
}
