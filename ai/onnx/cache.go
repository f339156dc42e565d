package onnx

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// maxCachedTexts bounds the number of embeddings kept in memory.
const maxCachedTexts = 10_000

// vectorCache holds recent embeddings keyed by input text. Each entry costs
// one unit, so maxEntries caps the entry count.
type vectorCache struct {
	c *ristretto.Cache[string, []float32]
}

func newVectorCache(maxEntries int64) (*vectorCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []float32]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &vectorCache{c: c}, nil
}

func (vc *vectorCache) get(text string) ([]float32, bool) {
	return vc.c.Get(text)
}

// put is asynchronous; a rejected or dropped entry is simply recomputed later.
func (vc *vectorCache) put(text string, vec []float32) {
	vc.c.Set(text, vec, 1)
}

func (vc *vectorCache) wait() {
	vc.c.Wait()
}

func (vc *vectorCache) close() {
	vc.c.Close()
}
