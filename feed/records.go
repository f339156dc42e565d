package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/termbridge/core"
	"gopkg.in/yaml.v3"
)

// RecordsDocument is the on-disk layout of a records file.
//
//	system: NAMASTE
//	concepts:
//	  - code: NAMC001
//	    display: Jvara
//	    synonyms: [Fever]
type RecordsDocument struct {
	System   string            `json:"system" yaml:"system"`
	Concepts []core.RawConcept `json:"concepts" yaml:"concepts"`
}

// RecordsFile reads raw records from a YAML (.yaml, .yml) or JSON (.json)
// file.
type RecordsFile struct {
	path   string
	system core.System
}

var _ Provider = (*RecordsFile)(nil)

// NewRecordsFile creates a provider for path with a fixed system.
func NewRecordsFile(path string, system core.System) *RecordsFile {
	return &RecordsFile{path: path, system: system}
}

// OpenRecordsFile creates a provider whose system is read from the file.
func OpenRecordsFile(path string) (*RecordsFile, error) {
	doc, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	if doc.System == "" {
		return nil, fmt.Errorf("%w: %s", ErrSystemRequired, path)
	}
	system, err := core.ParseSystem(doc.System)
	if err != nil {
		return nil, err
	}
	return NewRecordsFile(path, system), nil
}

func readRecords(path string) (*RecordsDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc RecordsDocument
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	case ".json":
		err = json.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &doc, nil
}

// IsFeedFile reports whether path has an extension a file provider reads.
func IsFeedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Name implements Provider.
func (f *RecordsFile) Name() string { return "records:" + f.path }

// System implements Provider.
func (f *RecordsFile) System() core.System { return f.system }

// Fetch implements Provider.
func (f *RecordsFile) Fetch(ctx context.Context) ([]core.RawConcept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := readRecords(f.path)
	if err != nil {
		return nil, err
	}
	return doc.Concepts, nil
}

// OpenFile picks a provider for a feed file: JSON files holding a FHIR
// CodeSystem resource become CodeSystemFile, everything else RecordsFile.
func OpenFile(path string) (Provider, error) {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var header struct {
			ResourceType string `json:"resourceType"`
		}
		if json.Unmarshal(data, &header) == nil && header.ResourceType == "CodeSystem" {
			return ResolveCodeSystemFile(path)
		}
	}
	return OpenRecordsFile(path)
}

// OpenDir opens every feed file directly inside dir, in name order.
func OpenDir(dir string) ([]Provider, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var providers []Provider
	for _, e := range entries {
		if e.IsDir() || !IsFeedFile(e.Name()) {
			continue
		}
		p, err := OpenFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}
