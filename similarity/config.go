package similarity

import (
	"fmt"

	"github.com/poiesic/termbridge/core"
)

// Semantic models.
const (
	SemanticTFIDF = "tfidf"
	SemanticDense = "dense"
)

// Explanation fragments.
const (
	ExplainSemantic   = "Strong semantic similarity in meaning"
	ExplainLexical    = "High lexical overlap in terminology"
	ExplainStructural = "Similar structural classification"
	ExplainSynonym    = "Direct synonym match found"
	ExplainDefault    = "General conceptual similarity"
)

// Config holds every weight and threshold used for scoring.
type Config struct {
	SemanticWeight   float64 `mapstructure:"semantic_weight"`
	LexicalWeight    float64 `mapstructure:"lexical_weight"`
	StructuralWeight float64 `mapstructure:"structural_weight"`

	// Mapping type cut-offs; a confidence strictly above a cut-off earns the type.
	ExactAbove      float64 `mapstructure:"exact_above"`
	EquivalentAbove float64 `mapstructure:"equivalent_above"`
	RelatedAbove    float64 `mapstructure:"related_above"`
	NarrowerAbove   float64 `mapstructure:"narrower_above"`

	// Component scores strictly above these add to the explanation.
	SemanticExplainAbove   float64 `mapstructure:"semantic_explain_above"`
	LexicalExplainAbove    float64 `mapstructure:"lexical_explain_above"`
	StructuralExplainAbove float64 `mapstructure:"structural_explain_above"`

	// MinConfidence is the retention cut-off; candidates must score strictly above it.
	MinConfidence float64 `mapstructure:"min_confidence"`

	// MaxCandidates caps retained candidates per source concept.
	MaxCandidates int `mapstructure:"max_candidates"`

	// NeutralStructural is the structural score when either concept has no tags.
	NeutralStructural float64 `mapstructure:"neutral_structural"`

	// SemanticModel selects the SemanticScorer: "tfidf" or "dense".
	SemanticModel string `mapstructure:"semantic_model"`
}

// DefaultConfig returns the standard scoring configuration.
func DefaultConfig() Config {
	return Config{
		SemanticWeight:         0.5,
		LexicalWeight:          0.3,
		StructuralWeight:       0.2,
		ExactAbove:             0.9,
		EquivalentAbove:        0.8,
		RelatedAbove:           0.7,
		NarrowerAbove:          0.6,
		SemanticExplainAbove:   0.8,
		LexicalExplainAbove:    0.7,
		StructuralExplainAbove: 0.6,
		MinConfidence:          0.6,
		MaxCandidates:          3,
		NeutralStructural:      0.5,
		SemanticModel:          SemanticTFIDF,
	}
}

// Validate checks that weights and thresholds are usable.
func (c Config) Validate() error {
	for name, w := range map[string]float64{
		"semantic_weight":   c.SemanticWeight,
		"lexical_weight":    c.LexicalWeight,
		"structural_weight": c.StructuralWeight,
	} {
		if w < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, name)
		}
	}
	if c.SemanticWeight+c.LexicalWeight+c.StructuralWeight == 0 {
		return fmt.Errorf("%w: weights must not all be zero", ErrInvalidConfig)
	}
	if !(c.ExactAbove >= c.EquivalentAbove && c.EquivalentAbove >= c.RelatedAbove && c.RelatedAbove >= c.NarrowerAbove) {
		return fmt.Errorf("%w: mapping type cut-offs must be descending", ErrInvalidConfig)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence must be within [0, 1]", ErrInvalidConfig)
	}
	if c.NeutralStructural < 0 || c.NeutralStructural > 1 {
		return fmt.Errorf("%w: neutral_structural must be within [0, 1]", ErrInvalidConfig)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("%w: max_candidates must be positive", ErrInvalidConfig)
	}
	if c.SemanticModel != SemanticTFIDF && c.SemanticModel != SemanticDense {
		return fmt.Errorf("%w: %q", ErrUnknownSemanticModel, c.SemanticModel)
	}
	return nil
}

// Classify maps a confidence to its mapping type.
func (c Config) Classify(confidence float64) core.MappingType {
	switch {
	case confidence > c.ExactAbove:
		return core.MappingExact
	case confidence > c.EquivalentAbove:
		return core.MappingEquivalent
	case confidence > c.RelatedAbove:
		return core.MappingRelated
	case confidence > c.NarrowerAbove:
		return core.MappingNarrower
	default:
		return core.MappingBroader
	}
}

// Fingerprint renders every setting so derived data can be versioned by it.
func (c Config) Fingerprint() string {
	return fmt.Sprintf("%s|w=%g,%g,%g|t=%g,%g,%g,%g|x=%g,%g,%g|min=%g|max=%d|neutral=%g",
		c.SemanticModel,
		c.SemanticWeight, c.LexicalWeight, c.StructuralWeight,
		c.ExactAbove, c.EquivalentAbove, c.RelatedAbove, c.NarrowerAbove,
		c.SemanticExplainAbove, c.LexicalExplainAbove, c.StructuralExplainAbove,
		c.MinConfidence, c.MaxCandidates, c.NeutralStructural)
}
