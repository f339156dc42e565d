package core

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// System identifies a terminology system.
type System string

const (
	// SystemNAMASTE is the national traditional-medicine code set.
	SystemNAMASTE System = "NAMASTE"
	// SystemICD11TM2 is the ICD-11 Traditional Medicine Module 2.
	SystemICD11TM2 System = "ICD11_TM2"
	// SystemICD11Biomedicine is the ICD-11 biomedical classification.
	SystemICD11Biomedicine System = "ICD11_BIOMEDICINE"
	// SystemSNOMEDCT is SNOMED CT.
	SystemSNOMEDCT System = "SNOMED_CT"
	// SystemLOINC is LOINC.
	SystemLOINC System = "LOINC"
)

// Systems lists every supported terminology system in canonical order.
var Systems = []System{
	SystemNAMASTE,
	SystemICD11TM2,
	SystemICD11Biomedicine,
	SystemSNOMEDCT,
	SystemLOINC,
}

var systemURIs = map[System]string{
	SystemNAMASTE:          "http://ayush.gov.in/fhir/CodeSystem/NAMASTE",
	SystemICD11TM2:         "http://id.who.int/icd/release/11/tm2",
	SystemICD11Biomedicine: "http://id.who.int/icd/release/11/mms",
	SystemSNOMEDCT:         "http://snomed.info/sct",
	SystemLOINC:            "http://loinc.org",
}

// URI returns the canonical FHIR system URI.
func (s System) URI() string {
	return systemURIs[s]
}

// Others returns every supported system except s, in canonical order.
func (s System) Others() []System {
	out := make([]System, 0, len(Systems)-1)
	for _, sys := range Systems {
		if sys != s {
			out = append(out, sys)
		}
	}
	return out
}

// ParseSystem resolves a system name or FHIR system URI.
// Names are matched case-insensitively and "-" is accepted for "_".
func ParseSystem(name string) (System, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	for _, sys := range Systems {
		if string(sys) == normalized || sys.URI() == strings.TrimSpace(name) {
			return sys, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSystem, name)
}

// RawConcept is a concept record as supplied by a feed provider.
type RawConcept struct {
	Code         string   `json:"code" yaml:"code"`
	Display      string   `json:"display" yaml:"display"`
	Definition   string   `json:"definition,omitempty" yaml:"definition,omitempty"`
	Synonyms     []string `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
	SemanticTags []string `json:"semantic_tags,omitempty" yaml:"semantic_tags,omitempty"`
}

// Concept is one coded entry within a terminology system.
// Concepts are immutable once loaded into a store.
type Concept struct {
	System       System   `json:"system"`
	Code         string   `json:"code"`
	Display      string   `json:"display"`
	Definition   string   `json:"definition,omitempty"`
	Synonyms     []string `json:"synonyms,omitempty"`
	SemanticTags []string `json:"semantic_tags,omitempty"` // sorted, unique
}

// ConceptID returns the string identity "SYSTEM:code".
func ConceptID(system System, code string) string {
	return string(system) + ":" + code
}

// ParseConceptID splits a "SYSTEM:code" identity.
func ParseConceptID(id string) (System, string, error) {
	name, code, ok := strings.Cut(id, ":")
	if !ok || code == "" {
		return "", "", fmt.Errorf("%w: malformed concept id %q", ErrUnknownSystem, id)
	}
	sys, err := ParseSystem(name)
	if err != nil {
		return "", "", err
	}
	return sys, code, nil
}

// ID returns the concept identity "SYSTEM:code".
func (c *Concept) ID() string {
	return ConceptID(c.System, c.Code)
}

// SearchText is the text embedded for nearest-neighbor search.
func (c *Concept) SearchText() string {
	if c.Definition == "" {
		return c.Display
	}
	return c.Display + ": " + c.Definition
}

// TextFields returns display, definition and synonyms, skipping empty values.
func (c *Concept) TextFields() []string {
	fields := make([]string, 0, 2+len(c.Synonyms))
	if c.Display != "" {
		fields = append(fields, c.Display)
	}
	if c.Definition != "" {
		fields = append(fields, c.Definition)
	}
	for _, s := range c.Synonyms {
		if s != "" {
			fields = append(fields, s)
		}
	}
	return fields
}

// HasTag reports whether the concept carries the semantic tag.
func (c *Concept) HasTag(tag string) bool {
	_, found := slices.BinarySearch(c.SemanticTags, tag)
	return found
}

// MappingType classifies the strength of a mapping.
type MappingType string

const (
	MappingExact      MappingType = "EXACT"
	MappingEquivalent MappingType = "EQUIVALENT"
	MappingRelated    MappingType = "RELATED"
	MappingNarrower   MappingType = "NARROWER"
	MappingBroader    MappingType = "BROADER"
)

// MappingTypes lists every mapping type from strongest to weakest.
var MappingTypes = []MappingType{
	MappingExact,
	MappingEquivalent,
	MappingRelated,
	MappingNarrower,
	MappingBroader,
}

// MappingResult is a scored correspondence between two concepts.
type MappingResult struct {
	Source      *Concept    `json:"source"`
	Target      *Concept    `json:"target"`
	Confidence  float64     `json:"confidence_score"`
	Type        MappingType `json:"mapping_type"`
	Semantic    float64     `json:"semantic_similarity"`
	Lexical     float64     `json:"lexical_similarity"`
	Structural  float64     `json:"structural_similarity"`
	Explanation string      `json:"explanation"`
}

// MappingID returns the identity "SRC:code->TGT:code".
func MappingID(source, target *Concept) string {
	return source.ID() + "->" + target.ID()
}

// ID returns the mapping identity used by feedback records.
func (m *MappingResult) ID() string {
	return MappingID(m.Source, m.Target)
}

// SystemPair is a directional (source, target) system pair.
type SystemPair struct {
	Source System `json:"source"`
	Target System `json:"target"`
}

// Key returns the cache key "SRC_to_TGT".
func (p SystemPair) Key() string {
	return string(p.Source) + "_to_" + string(p.Target)
}

// DefaultSystemPairs are the pairs precomputed by a cache rebuild.
var DefaultSystemPairs = []SystemPair{
	{SystemNAMASTE, SystemICD11TM2},
	{SystemNAMASTE, SystemICD11Biomedicine},
	{SystemNAMASTE, SystemSNOMEDCT},
	{SystemICD11Biomedicine, SystemSNOMEDCT},
	{SystemSNOMEDCT, SystemLOINC},
}

// FeedbackType classifies a reviewer's judgement of a mapping.
type FeedbackType string

const (
	FeedbackCorrect   FeedbackType = "CORRECT"
	FeedbackIncorrect FeedbackType = "INCORRECT"
	FeedbackPartial   FeedbackType = "PARTIAL"
)

// Feedback is one append-only review of a mapping.
type Feedback struct {
	ID                   string       `json:"id"`
	MappingID            string       `json:"mapping_id,omitempty"`
	SourceCode           string       `json:"source_code,omitempty"`
	TargetCode           string       `json:"target_code,omitempty"`
	Type                 FeedbackType `json:"feedback_type"`
	ConfidenceAdjustment float64      `json:"confidence_adjustment"`
	Comments             string       `json:"comments,omitempty"`
	UserID               string       `json:"user_id,omitempty"`
	Timestamp            time.Time    `json:"timestamp"`
}

// CodePair resolves the (source code, target code) the feedback refers to.
// A mapping id takes precedence over explicit codes.
func (f *Feedback) CodePair() (string, string) {
	if f.MappingID != "" {
		src, tgt, ok := strings.Cut(f.MappingID, "->")
		if ok {
			return codeOf(src), codeOf(tgt)
		}
	}
	return f.SourceCode, f.TargetCode
}

// FeedbackKey is the aggregation key for confidence adjustments.
func FeedbackKey(sourceCode, targetCode string) string {
	return sourceCode + "->" + targetCode
}

func codeOf(id string) string {
	if _, code, ok := strings.Cut(id, ":"); ok {
		return code
	}
	return id
}

// IndexHit is one nearest-neighbor match from the vector index.
type IndexHit struct {
	ID       string
	Metadata map[string]string
	Distance float64 // 1 - cosine similarity, in [0, 2]
}

// SearchHit is one free-text search result.
type SearchHit struct {
	Code     string  `json:"code"`
	Display  string  `json:"display"`
	System   System  `json:"system"`
	Distance float64 `json:"distance"`
}

// Statistics summarizes the published mapping generation.
type Statistics struct {
	TotalConcepts           int            `json:"total_concepts"`
	MappingsBySystemPair    map[string]int `json:"mappings_by_system_pair"`
	ConfidenceDistribution  map[string]int `json:"confidence_distribution"`
	MappingTypeDistribution map[string]int `json:"mapping_type_distribution"`
	FeedbackCount           int            `json:"feedback_count"`
	BuildID                 string         `json:"build_id"`
	GeneratedAt             time.Time      `json:"generated_at"`
}

// BuildIDFromContent derives a generation identifier from content using BLAKE2b.
// Identical input parts always produce the same identifier.
func BuildIDFromContent(parts ...string) string {
	h, _ := blake2b.New(16, nil) // 128 bits
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// BuildIDForConcepts fingerprints a concept corpus plus any extra settings
// (model identifiers, scoring configuration) that affect derived data.
func BuildIDForConcepts(concepts []*Concept, extra ...string) string {
	parts := make([]string, 0, len(concepts)+len(extra))
	for _, c := range concepts {
		parts = append(parts, c.ID()+"\x1f"+c.Display+"\x1f"+c.Definition+"\x1f"+
			strings.Join(c.Synonyms, "\x1e")+"\x1f"+strings.Join(c.SemanticTags, "\x1e"))
	}
	slices.Sort(parts)
	parts = append(parts, extra...)
	return BuildIDFromContent(parts...)
}
