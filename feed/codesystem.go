package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/poiesic/termbridge/core"
)

// Coding is a FHIR Coding datatype.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// Designation is an alternate representation of a concept.
type Designation struct {
	Language string  `json:"language,omitempty"`
	Use      *Coding `json:"use,omitempty"`
	Value    string  `json:"value"`
}

// Property is a concept property. Only the string-like value types are read.
type Property struct {
	Code        string  `json:"code"`
	ValueCode   string  `json:"valueCode,omitempty"`
	ValueString string  `json:"valueString,omitempty"`
	ValueCoding *Coding `json:"valueCoding,omitempty"`
}

func (p Property) value() string {
	switch {
	case p.ValueCode != "":
		return p.ValueCode
	case p.ValueString != "":
		return p.ValueString
	case p.ValueCoding != nil:
		return p.ValueCoding.Code
	}
	return ""
}

// CodeSystemConcept is one entry of a CodeSystem, possibly with children.
type CodeSystemConcept struct {
	Code        string              `json:"code"`
	Display     string              `json:"display,omitempty"`
	Definition  string              `json:"definition,omitempty"`
	Designation []Designation       `json:"designation,omitempty"`
	Property    []Property          `json:"property,omitempty"`
	Concept     []CodeSystemConcept `json:"concept,omitempty"`

	// Non-standard fields found in hand-built code systems.
	Synonyms         []string `json:"synonyms,omitempty"`
	AlternativeTerms []string `json:"alternative_terms,omitempty"`
	Category         string   `json:"category,omitempty"`
	SemanticType     string   `json:"semantic_type,omitempty"`
}

// CodeSystem is the subset of a FHIR R4 CodeSystem resource the feed reads.
type CodeSystem struct {
	ResourceType string              `json:"resourceType"`
	ID           string              `json:"id,omitempty"`
	URL          string              `json:"url,omitempty"`
	Version      string              `json:"version,omitempty"`
	Name         string              `json:"name,omitempty"`
	Concept      []CodeSystemConcept `json:"concept,omitempty"`
}

// Flatten walks the concept hierarchy depth-first and returns one record per
// distinct code; the first occurrence of a code wins. Designations and
// synonym fields become synonyms, property values and category fields
// become semantic tags.
func (cs *CodeSystem) Flatten() []core.RawConcept {
	seen := make(map[string]struct{})
	var out []core.RawConcept
	var walk func([]CodeSystemConcept)
	walk = func(concepts []CodeSystemConcept) {
		for i := range concepts {
			c := &concepts[i]
			if _, dup := seen[c.Code]; !dup {
				seen[c.Code] = struct{}{}
				out = append(out, c.raw())
			}
			walk(c.Concept)
		}
	}
	walk(cs.Concept)
	return out
}

func (c *CodeSystemConcept) raw() core.RawConcept {
	rec := core.RawConcept{
		Code:       c.Code,
		Display:    c.Display,
		Definition: c.Definition,
	}
	for _, d := range c.Designation {
		rec.Synonyms = append(rec.Synonyms, d.Value)
	}
	rec.Synonyms = append(rec.Synonyms, c.Synonyms...)
	rec.Synonyms = append(rec.Synonyms, c.AlternativeTerms...)
	for _, p := range c.Property {
		if v := p.value(); v != "" {
			rec.SemanticTags = append(rec.SemanticTags, v)
		}
	}
	for _, tag := range []string{c.Category, c.SemanticType} {
		if tag != "" {
			rec.SemanticTags = append(rec.SemanticTags, tag)
		}
	}
	return rec
}

// ParseCodeSystem decodes a FHIR CodeSystem resource.
func ParseCodeSystem(data []byte) (*CodeSystem, error) {
	var cs CodeSystem
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("decode CodeSystem: %w", err)
	}
	if cs.ResourceType != "CodeSystem" {
		return nil, fmt.Errorf("%w: resourceType %q", ErrNotCodeSystem, cs.ResourceType)
	}
	return &cs, nil
}

// CodeSystemFile reads a FHIR CodeSystem JSON file.
type CodeSystemFile struct {
	path   string
	system core.System
	logger *slog.Logger
}

var _ Provider = (*CodeSystemFile)(nil)

// NewCodeSystemFile creates a provider for path. An empty system is
// resolved from the resource url on each Fetch; use ResolveCodeSystemFile to
// resolve it up front.
func NewCodeSystemFile(path string, system core.System) *CodeSystemFile {
	return &CodeSystemFile{
		path:   path,
		system: system,
		logger: slog.Default().With("component", "feed-codesystem"),
	}
}

// ResolveCodeSystemFile creates a provider whose system is read from the
// CodeSystem url.
func ResolveCodeSystemFile(path string) (*CodeSystemFile, error) {
	cs, err := readCodeSystem(path)
	if err != nil {
		return nil, err
	}
	system, err := core.ParseSystem(cs.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSystemRequired, path, err)
	}
	return NewCodeSystemFile(path, system), nil
}

func readCodeSystem(path string) (*CodeSystem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCodeSystem(data)
}

// Name implements Provider.
func (f *CodeSystemFile) Name() string { return "codesystem:" + f.path }

// System implements Provider.
func (f *CodeSystemFile) System() core.System { return f.system }

// Fetch implements Provider.
func (f *CodeSystemFile) Fetch(ctx context.Context) ([]core.RawConcept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.system == "" {
		return nil, ErrSystemRequired
	}
	cs, err := readCodeSystem(f.path)
	if err != nil {
		return nil, err
	}
	if cs.URL != "" {
		if sys, err := core.ParseSystem(cs.URL); err == nil && sys != f.system {
			f.logger.Warn("CodeSystem url does not match provider system", "url", cs.URL, "system", f.system)
		}
	}
	records := cs.Flatten()
	f.logger.Info("read CodeSystem", "path", f.path, "name", cs.Name, "concepts", len(records))
	return records, nil
}
