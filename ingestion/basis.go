package ingestion

import (
	"github.com/poiesic/termbridge/concepts"
	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/lexical"
	"github.com/poiesic/termbridge/mapping"
	"github.com/poiesic/termbridge/similarity"
)

// Fitted is the lexical model of one corpus together with the build id that
// fingerprints the corpus, the models and the scoring configuration.
type Fitted struct {
	Vectorizer *lexical.Vectorizer
	BuildID    string

	cfg   similarity.Config
	tfidf *similarity.TFIDFScorer
}

// Fit fits the lexical vectorizer over every concept in snap. denseModel
// identifies the dense embedder so a model change yields a new build id.
func Fit(snap *concepts.Snapshot, cfg similarity.Config, denseModel string, opts ...lexical.Option) (*Fitted, error) {
	all := snap.Concepts()
	docs := make([]lexical.Document, len(all))
	for i, c := range all {
		docs[i] = similarity.ConceptDocument(c)
	}
	v, err := lexical.Fit(docs, opts...)
	if err != nil {
		return nil, err
	}
	tfidf, err := similarity.NewTFIDFScorer(v, all)
	if err != nil {
		return nil, err
	}
	return &Fitted{
		Vectorizer: v,
		BuildID:    core.BuildIDForConcepts(all, v.ModelID(), denseModel, cfg.Fingerprint()),
		cfg:        cfg,
		tfidf:      tfidf,
	}, nil
}

// Basis returns the mapping basis. The dense semantic model reads embeddings
// from vectors; the TF-IDF model ignores it.
func (f *Fitted) Basis(vectors similarity.VectorLookup) mapping.Basis {
	var scorer similarity.SemanticScorer = f.tfidf
	if f.cfg.SemanticModel == similarity.SemanticDense {
		scorer = similarity.NewDenseScorer(vectors)
	}
	return mapping.Basis{Scorer: scorer, BuildID: f.BuildID}
}
