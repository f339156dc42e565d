package lexical

import (
	"context"
	"log/slog"

	"github.com/poiesic/termbridge/ai"
)

// Embedder adapts a fitted Vectorizer to ai.Embedder. Each text becomes a
// dense vector with one unit-normalized weight per vocabulary term.
type Embedder struct {
	vectorizer *Vectorizer
	logger     *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder wraps a fitted vectorizer.
func NewEmbedder(v *Vectorizer) (*Embedder, error) {
	if v == nil {
		return nil, ErrNotFitted
	}
	return &Embedder{
		vectorizer: v,
		logger:     slog.Default().With("component", "lexical-embedder"),
	}, nil
}

// EmbedText vectorizes a single text.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vectorizer.Transform(Document{text}).Dense(e.vectorizer.Dimension()), nil
}

// EmbedTexts vectorizes texts in order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("vectorizing texts", "count", len(texts))
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vectorizer.Transform(Document{text}).Dense(e.vectorizer.Dimension())
	}
	return out, nil
}

// ModelID identifies the underlying vectorizer.
func (e *Embedder) ModelID() string {
	return e.vectorizer.ModelID()
}
