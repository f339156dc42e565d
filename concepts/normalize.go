package concepts

import (
	"slices"
	"strings"

	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/lexical"
)

// FromRaw validates and normalizes a feed record into a Concept.
// Text is NFKC-normalized and trimmed, empty or repeated synonyms are
// dropped and tags are lower-cased, sorted and de-duplicated.
func FromRaw(system core.System, raw *core.RawConcept) (*core.Concept, error) {
	if err := core.ValidateRawConcept(raw); err != nil {
		return nil, err
	}
	c := &core.Concept{
		System:     system,
		Code:       lexical.Normalize(raw.Code),
		Display:    lexical.Normalize(raw.Display),
		Definition: lexical.Normalize(raw.Definition),
	}

	seen := make(map[string]struct{}, len(raw.Synonyms))
	for _, s := range raw.Synonyms {
		s = lexical.Normalize(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		c.Synonyms = append(c.Synonyms, s)
	}

	for _, t := range raw.SemanticTags {
		if t = strings.ToLower(lexical.Normalize(t)); t != "" {
			c.SemanticTags = append(c.SemanticTags, t)
		}
	}
	slices.Sort(c.SemanticTags)
	c.SemanticTags = slices.Compact(c.SemanticTags)
	return c, nil
}
