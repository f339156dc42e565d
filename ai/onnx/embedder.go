package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/poiesic/termbridge/ai"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrClosed is returned when the embedder is used after Close.
var ErrClosed = errors.New("onnx embedder is closed")

var (
	inputNames  = []string{"input_ids", "attention_mask", "token_type_ids"}
	outputNames = []string{"last_hidden_state"}
)

var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnvironment(library string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		if library != "" {
			ort.SetSharedLibraryPath(library)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()
	envRefs--
	if envRefs == 0 {
		return ort.DestroyEnvironment()
	}
	return nil
}

// Embedder implements ai.Embedder with a local ONNX model.
type Embedder struct {
	session   *ort.DynamicAdvancedSession
	tokenizer *tokenizer.Tokenizer
	maxSeqLen int
	modelID   string
	logger    *slog.Logger

	mu    sync.RWMutex
	cache *vectorCache
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	tk, err := pretrained.FromFile(config.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", config.TokenizerPath, err)
	}
	if err := acquireEnvironment(config.OrtLibrary); err != nil {
		return nil, err
	}
	session, err := ort.NewDynamicAdvancedSession(config.ModelPath, inputNames, outputNames, nil)
	if err != nil {
		_ = releaseEnvironment()
		return nil, fmt.Errorf("open model %s: %w", config.ModelPath, err)
	}
	cache, err := newVectorCache(maxCachedTexts)
	if err != nil {
		_ = session.Destroy()
		_ = releaseEnvironment()
		return nil, err
	}
	return &Embedder{
		session:   session,
		tokenizer: tk,
		maxSeqLen: config.MaxSeqLen,
		modelID:   config.ModelID(),
		logger:    slog.Default().With("component", "onnx-embedder"),
		cache:     cache,
	}, nil
}

// NewEmbedder loads the model and tokenizer named by config.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText embeds a single string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts embeds texts in one model invocation, skipping cached texts.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	var missing []int

	e.mu.RLock()
	if e.session == nil {
		e.mu.RUnlock()
		return nil, ErrClosed
	}
	for i, text := range texts {
		if vec, ok := e.cache.get(text); ok {
			out[i] = vec
		} else {
			missing = append(missing, i)
		}
	}
	e.mu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}
	e.logger.Debug("running model", "count", len(missing), "cached", len(texts)-len(missing))

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}
	vecs, err := e.run(batch)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(batch), "err", err)
		return nil, err
	}

	e.mu.RLock()
	for j, i := range missing {
		out[i] = vecs[j]
		if e.session != nil {
			e.cache.put(texts[i], vecs[j])
		}
	}
	e.mu.RUnlock()
	return out, nil
}

func (e *Embedder) run(texts []string) ([][]float32, error) {
	ids, mask, types, seq, err := e.encode(texts)
	if err != nil {
		return nil, err
	}
	shape := ort.NewShape(int64(len(texts)), int64(seq))

	idsT, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, err
	}
	defer idsT.Destroy()
	maskT, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, err
	}
	defer maskT.Destroy()
	typesT, err := ort.NewTensor(shape, types)
	if err != nil {
		return nil, err
	}
	defer typesT.Destroy()

	outputs := []ort.Value{nil}
	e.mu.RLock()
	if e.session == nil {
		e.mu.RUnlock()
		return nil, ErrClosed
	}
	err = e.session.Run([]ort.Value{idsT, maskT, typesT}, outputs)
	e.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}
	defer outputs[0].Destroy()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	dims := hidden.GetShape()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	return meanPool(hidden.GetData(), mask, len(texts), seq, int(dims[2])), nil
}

// encode tokenizes texts into right-padded int64 matrices of equal width.
func (e *Embedder) encode(texts []string) (ids, mask, types []int64, seq int, err error) {
	encs := make([]*tokenizer.Encoding, len(texts))
	for i, text := range texts {
		enc, err := e.tokenizer.EncodeSingle(text, true)
		if err != nil {
			return nil, nil, nil, 0, fmt.Errorf("tokenize: %w", err)
		}
		encs[i] = enc
		if n := min(len(enc.Ids), e.maxSeqLen); n > seq {
			seq = n
		}
	}
	if seq == 0 {
		seq = 1
	}
	ids = make([]int64, len(texts)*seq)
	mask = make([]int64, len(texts)*seq)
	types = make([]int64, len(texts)*seq)
	for i, enc := range encs {
		n := min(len(enc.Ids), seq)
		for j := 0; j < n; j++ {
			ids[i*seq+j] = int64(enc.Ids[j])
			if j < len(enc.AttentionMask) {
				mask[i*seq+j] = int64(enc.AttentionMask[j])
			} else {
				mask[i*seq+j] = 1
			}
			if j < len(enc.TypeIds) {
				types[i*seq+j] = int64(enc.TypeIds[j])
			}
		}
		// Keep the closing special token when truncating.
		if len(enc.Ids) > seq && seq > 1 {
			ids[i*seq+seq-1] = int64(enc.Ids[len(enc.Ids)-1])
		}
	}
	return ids, mask, types, seq, nil
}

// meanPool averages token states under the attention mask and normalizes each
// row to unit length. hidden is laid out [batch][seq][dim].
func meanPool(hidden []float32, mask []int64, batch, seq, dim int) [][]float32 {
	out := make([][]float32, batch)
	for b := 0; b < batch; b++ {
		vec := make([]float64, dim)
		var count float64
		for s := 0; s < seq; s++ {
			if mask[b*seq+s] == 0 {
				continue
			}
			count++
			base := (b*seq + s) * dim
			for d := 0; d < dim; d++ {
				vec[d] += float64(hidden[base+d])
			}
		}
		var sumSquares float64
		for d := range vec {
			if count > 0 {
				vec[d] /= count
			}
			sumSquares += vec[d] * vec[d]
		}
		row := make([]float32, dim)
		norm := math.Sqrt(sumSquares)
		for d := range vec {
			if norm > 0 {
				row[d] = float32(vec[d] / norm)
			}
		}
		out[b] = row
	}
	return out
}

// ModelID identifies the model file.
func (e *Embedder) ModelID() string {
	return e.modelID
}

// Close releases the session and the runtime environment reference.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	e.cache.close()
	return errors.Join(err, releaseEnvironment())
}
