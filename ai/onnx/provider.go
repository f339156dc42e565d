package onnx

import (
	"log/slog"

	"github.com/poiesic/termbridge/ai"
)

// Provider implements ai.AIProvider with a local ONNX model.
type Provider struct {
	embedder *Embedder
	logger   *slog.Logger
}

// NewProvider loads the model named by config.
//
// Returns ai.AIProvider interface to enforce abstraction.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	return &Provider{
		embedder: embedder,
		logger:   slog.Default().With("component", "onnx-provider"),
	}, nil
}

// Embedder returns the local embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// ModelID identifies the model file.
func (p *Provider) ModelID() string {
	return p.embedder.ModelID()
}

// Close releases the ONNX session.
func (p *Provider) Close() error {
	p.logger.Debug("closing onnx provider")
	return p.embedder.Close()
}
