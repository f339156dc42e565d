package lexical

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/poiesic/termbridge/core"
)

// Config controls how a Vectorizer turns text into terms.
type Config struct {
	// MaxFeatures caps the vocabulary to the most frequent terms in the corpus.
	MaxFeatures int

	// MinN and MaxN bound the n-gram sizes, inclusive.
	MinN int
	MaxN int

	// StopWords enables English stop-word removal.
	StopWords bool
}

// DefaultConfig returns the vectorizer settings used for concept mapping:
// 10,000 features, 1- to 3-grams, English stop words removed.
func DefaultConfig() Config {
	return Config{
		MaxFeatures: 10000,
		MinN:        1,
		MaxN:        3,
		StopWords:   true,
	}
}

// Option adjusts a Config before fitting.
type Option func(*Config) error

// WithMaxFeatures sets the vocabulary cap.
func WithMaxFeatures(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return ErrInvalidMaxFeatures
		}
		c.MaxFeatures = n
		return nil
	}
}

// WithNGramRange sets the inclusive n-gram range.
func WithNGramRange(minN, maxN int) Option {
	return func(c *Config) error {
		if minN < 1 || maxN < minN {
			return fmt.Errorf("%w: (%d, %d)", ErrInvalidNGramRange, minN, maxN)
		}
		c.MinN, c.MaxN = minN, maxN
		return nil
	}
}

// WithStopWords toggles English stop-word removal.
func WithStopWords(enabled bool) Option {
	return func(c *Config) error {
		c.StopWords = enabled
		return nil
	}
}

// Document is the text of one corpus entry, split into fields.
// N-grams never span two fields.
type Document []string

// Vectorizer is a fitted TF-IDF model. It is immutable after Fit and safe
// for concurrent use.
type Vectorizer struct {
	cfg   Config
	vocab map[string]int
	terms []string
	idf   []float64
	docs  int
}

// Fit learns the vocabulary and inverse document frequencies of the corpus.
// Returns core.ErrEmptyCorpus if there are no documents or no terms survive
// tokenization.
func Fit(docs []Document, opts ...Option) (*Vectorizer, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents to fit", core.ErrEmptyCorpus)
	}

	termFreq := make(map[string]int)
	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range cfg.analyze(doc) {
			termFreq[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				docFreq[term]++
			}
		}
	}
	if len(termFreq) == 0 {
		return nil, fmt.Errorf("%w: no terms remain after tokenization", core.ErrEmptyCorpus)
	}

	terms := make([]string, 0, len(termFreq))
	for term := range termFreq {
		terms = append(terms, term)
	}
	if len(terms) > cfg.MaxFeatures {
		// Most frequent first; ties broken alphabetically so fits are repeatable.
		slices.SortFunc(terms, func(a, b string) int {
			if c := cmp.Compare(termFreq[b], termFreq[a]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		terms = terms[:cfg.MaxFeatures]
	}
	sort.Strings(terms)

	v := &Vectorizer{
		cfg:   cfg,
		vocab: make(map[string]int, len(terms)),
		terms: terms,
		idf:   make([]float64, len(terms)),
		docs:  len(docs),
	}
	n := float64(len(docs))
	for i, term := range terms {
		v.vocab[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}
	return v, nil
}

// Transform returns the l2-normalized TF-IDF vector of a document.
// Terms outside the fitted vocabulary are ignored.
func (v *Vectorizer) Transform(doc Document) SparseVector {
	counts := make(map[int]float64)
	for _, term := range v.cfg.analyze(doc) {
		if idx, ok := v.vocab[term]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return SparseVector{}
	}

	vec := SparseVector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		vec.Indices = append(vec.Indices, idx)
	}
	slices.Sort(vec.Indices)

	var sumSquares float64
	for _, idx := range vec.Indices {
		w := counts[idx] * v.idf[idx]
		vec.Values = append(vec.Values, w)
		sumSquares += w * w
	}
	if norm := math.Sqrt(sumSquares); norm > 0 {
		for i := range vec.Values {
			vec.Values[i] /= norm
		}
	}
	return vec
}

// Dimension returns the vocabulary size.
func (v *Vectorizer) Dimension() int {
	return len(v.terms)
}

// Documents returns the number of documents the vectorizer was fitted on.
func (v *Vectorizer) Documents() int {
	return v.docs
}

// Term returns the vocabulary entry at index i.
func (v *Vectorizer) Term(i int) string {
	return v.terms[i]
}

// ModelID identifies the vectorizer settings and fitted vocabulary size.
func (v *Vectorizer) ModelID() string {
	return fmt.Sprintf("tfidf-%d-%d-%d-%t-%d", v.cfg.MaxFeatures, v.cfg.MinN, v.cfg.MaxN, v.cfg.StopWords, len(v.terms))
}

func (c Config) analyze(doc Document) []string {
	var out []string
	for _, field := range doc {
		out = append(out, ngrams(Tokens(field, c.StopWords), c.MinN, c.MaxN)...)
	}
	return out
}

// SparseVector holds the non-zero entries of a term vector, sorted by index.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// IsZero reports whether the vector has no non-zero entries.
func (s SparseVector) IsZero() bool {
	return len(s.Indices) == 0
}

// Dot returns the inner product of two sparse vectors.
func (s SparseVector) Dot(o SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(s.Indices) && j < len(o.Indices) {
		switch {
		case s.Indices[i] == o.Indices[j]:
			sum += s.Values[i] * o.Values[j]
			i++
			j++
		case s.Indices[i] < o.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Norm returns the l2 norm.
func (s SparseVector) Norm() float64 {
	var sum float64
	for _, v := range s.Values {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Equal reports whether both vectors hold exactly the same entries.
func (s SparseVector) Equal(o SparseVector) bool {
	return slices.Equal(s.Indices, o.Indices) && slices.Equal(s.Values, o.Values)
}

// Dense expands the vector to a dense float32 slice of length dim.
func (s SparseVector) Dense(dim int) []float32 {
	out := make([]float32, dim)
	for i, idx := range s.Indices {
		if idx < dim {
			out[idx] = float32(s.Values[i])
		}
	}
	return out
}

// Cosine returns the cosine similarity of two sparse vectors.
// Identical non-zero vectors score exactly 1; a zero vector scores 0.
func Cosine(a, b SparseVector) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	if a.Equal(b) {
		return 1
	}
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	return a.Dot(b) / (na * nb)
}
