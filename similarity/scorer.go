package similarity

import (
	"math"

	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/lexical"
)

// SemanticScorer returns the semantic similarity of two concepts in [0, 1].
// A concept compared with itself scores exactly 1.
type SemanticScorer interface {
	Semantic(a, b *core.Concept) float64
}

// TFIDFScorer scores concepts by the cosine of their TF-IDF vectors.
// Vectors for the fitted corpus are computed once; other concepts are
// vectorized on demand.
type TFIDFScorer struct {
	vectorizer *lexical.Vectorizer
	vectors    map[string]lexical.SparseVector
}

var _ SemanticScorer = (*TFIDFScorer)(nil)

// NewTFIDFScorer precomputes vectors for concepts.
func NewTFIDFScorer(v *lexical.Vectorizer, concepts []*core.Concept) (*TFIDFScorer, error) {
	if v == nil {
		return nil, lexical.ErrNotFitted
	}
	vectors := make(map[string]lexical.SparseVector, len(concepts))
	for _, c := range concepts {
		vectors[c.ID()] = v.Transform(ConceptDocument(c))
	}
	return &TFIDFScorer{vectorizer: v, vectors: vectors}, nil
}

// ConceptDocument is the text a concept contributes to the lexical corpus.
func ConceptDocument(c *core.Concept) lexical.Document {
	return lexical.Document(c.TextFields())
}

func (s *TFIDFScorer) vector(c *core.Concept) lexical.SparseVector {
	if vec, ok := s.vectors[c.ID()]; ok {
		return vec
	}
	return s.vectorizer.Transform(ConceptDocument(c))
}

// Semantic implements SemanticScorer.
func (s *TFIDFScorer) Semantic(a, b *core.Concept) float64 {
	if a.ID() == b.ID() {
		return 1
	}
	return clamp01(lexical.Cosine(s.vector(a), s.vector(b)))
}

// VectorLookup resolves a concept id to its stored dense embedding.
type VectorLookup interface {
	Vector(id string) ([]float32, bool)
}

// DenseScorer scores concepts by the cosine of their dense embeddings.
// Concepts without a stored embedding score 0.
type DenseScorer struct {
	lookup VectorLookup
}

var _ SemanticScorer = (*DenseScorer)(nil)

// NewDenseScorer reads embeddings from lookup.
func NewDenseScorer(lookup VectorLookup) *DenseScorer {
	return &DenseScorer{lookup: lookup}
}

// Semantic implements SemanticScorer.
func (s *DenseScorer) Semantic(a, b *core.Concept) float64 {
	if a.ID() == b.ID() {
		return 1
	}
	va, ok := s.lookup.Vector(a.ID())
	if !ok {
		return 0
	}
	vb, ok := s.lookup.Vector(b.ID())
	if !ok {
		return 0
	}
	return clamp01(CosineDense(va, vb))
}

// CosineDense returns the cosine similarity of two dense vectors, or 0 when
// their lengths differ or either is zero.
func CosineDense(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Lexical returns the Jaccard overlap of the lower-cased words of display and
// definition, or 0 when either side has no words.
func Lexical(a, b *core.Concept) float64 {
	if a.ID() == b.ID() {
		return 1
	}
	return jaccard(lexical.Words(a.Display+" "+a.Definition), lexical.Words(b.Display+" "+b.Definition), 0)
}

// Structural returns the Jaccard overlap of semantic tags, or neutral when
// either concept has none.
func Structural(a, b *core.Concept, neutral float64) float64 {
	if len(a.SemanticTags) == 0 || len(b.SemanticTags) == 0 {
		return neutral
	}
	inter := 0
	for _, t := range a.SemanticTags {
		if b.HasTag(t) {
			inter++
		}
	}
	union := len(a.SemanticTags) + len(b.SemanticTags) - inter
	return float64(inter) / float64(union)
}

// SynonymMatch reports whether the concepts share a display name or synonym,
// compared case-insensitively.
func SynonymMatch(a, b *core.Concept) bool {
	terms := termSet(a)
	for t := range termSet(b) {
		if _, ok := terms[t]; ok {
			return true
		}
	}
	return false
}

func termSet(c *core.Concept) map[string]struct{} {
	set := make(map[string]struct{}, 1+len(c.Synonyms))
	for _, t := range append([]string{c.Display}, c.Synonyms...) {
		if key := lexical.Fold(t); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}, empty float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return empty
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
