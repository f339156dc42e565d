package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, BackendOpenAI, cfg.Backend)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "all-minilm", cfg.EmbeddingModel)
	assert.Equal(t, 256, cfg.MaxSeqLen)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, BackendOpenAI, cfg.Backend)
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("with onnx model files", func(t *testing.T) {
		cfg := NewConfig(
			WithBackend(BackendONNX),
			WithModelFiles("/models/m.onnx", "/models/tokenizer.json"),
			WithOrtLibrary("/usr/lib/libonnxruntime.so"),
			WithMaxSeqLen(128),
		)

		assert.Equal(t, BackendONNX, cfg.Backend)
		assert.Equal(t, "/models/m.onnx", cfg.ModelPath)
		assert.Equal(t, "/models/tokenizer.json", cfg.TokenizerPath)
		assert.Equal(t, "/usr/lib/libonnxruntime.so", cfg.OrtLibrary)
		assert.Equal(t, 128, cfg.MaxSeqLen)
	})

	t.Run("with custom host and model", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithEmbeddingModel("text-embedding-3-small"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name            string
		backend         string
		embeddingHost   string
		expectedBackend string
		expectedHost    string
	}{
		{
			name:            "already has /v1",
			backend:         "openai",
			embeddingHost:   "http://localhost:11434/v1",
			expectedBackend: "openai",
			expectedHost:    "http://localhost:11434/v1",
		},
		{
			name:            "missing /v1",
			backend:         "openai",
			embeddingHost:   "http://localhost:11434",
			expectedBackend: "openai",
			expectedHost:    "http://localhost:11434/v1",
		},
		{
			name:            "has trailing slash",
			backend:         "openai",
			embeddingHost:   "http://localhost:11434/",
			expectedBackend: "openai",
			expectedHost:    "http://localhost:11434/v1",
		},
		{
			name:            "empty host",
			backend:         "lexical",
			embeddingHost:   "",
			expectedBackend: "lexical",
			expectedHost:    "",
		},
		{
			name:            "mixed case backend",
			backend:         " ONNX ",
			embeddingHost:   "",
			expectedBackend: "onnx",
			expectedHost:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Backend:       tt.backend,
				EmbeddingHost: tt.embeddingHost,
			}

			cfg.Normalize()

			assert.Equal(t, tt.expectedBackend, cfg.Backend)
			assert.Equal(t, tt.expectedHost, cfg.EmbeddingHost)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid openai config", func(t *testing.T) {
		cfg := &Config{
			Backend:        BackendOpenAI,
			EmbeddingHost:  "http://localhost:11434",
			EmbeddingModel: "all-minilm",
		}

		err := cfg.Validate()
		assert.NoError(t, err)

		// Should also normalize
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("missing embedding host", func(t *testing.T) {
		cfg := &Config{Backend: BackendOpenAI, EmbeddingModel: "all-minilm"}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingHost")
	})

	t.Run("missing embedding model", func(t *testing.T) {
		cfg := &Config{Backend: BackendOpenAI, EmbeddingHost: "http://localhost:11434/v1"}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingModel")
	})

	t.Run("onnx requires model files", func(t *testing.T) {
		cfg := &Config{Backend: BackendONNX, MaxSeqLen: 256}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ModelPath")

		cfg.ModelPath = "model.onnx"
		err = cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "TokenizerPath")
	})

	t.Run("onnx sequence length bounds", func(t *testing.T) {
		cfg := &Config{
			Backend:       BackendONNX,
			ModelPath:     "model.onnx",
			TokenizerPath: "tokenizer.json",
			MaxSeqLen:     4,
		}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "MaxSeqLen")

		cfg.MaxSeqLen = 8
		assert.NoError(t, cfg.Validate())

		cfg.MaxSeqLen = 512
		assert.NoError(t, cfg.Validate())

		cfg.MaxSeqLen = 513
		assert.Error(t, cfg.Validate())
	})

	t.Run("lexical needs nothing else", func(t *testing.T) {
		cfg := &Config{Backend: BackendLexical}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := &Config{Backend: "word2vec"}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "word2vec")
	})
}

func TestConfigModelID(t *testing.T) {
	assert.Equal(t, "openai:all-minilm", DefaultConfig().ModelID())
	assert.Equal(t, "onnx:m.onnx", NewConfig(WithBackend(BackendONNX), WithModelFiles("m.onnx", "t.json")).ModelID())
	assert.Equal(t, "lexical", NewConfig(WithBackend(BackendLexical)).ModelID())
}

func TestConfigValidate_Integration(t *testing.T) {
	// Test that NewConfig produces a valid configuration
	cfg := NewConfig()
	err := cfg.Validate()
	require.NoError(t, err)

	// Test that DefaultConfig produces a valid configuration
	cfg = DefaultConfig()
	err = cfg.Validate()
	require.NoError(t, err)
}
