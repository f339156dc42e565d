package core

import (
	"errors"
	"testing"
)

func TestBuildIDFromContent(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
	}{
		{
			name:  "single part",
			parts: []string{"test content"},
		},
		{
			name:  "no parts",
			parts: nil,
		},
		{
			name:  "several parts",
			parts: []string{"NAMASTE:NAMC001", "Jvara", "elevated body temperature"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := BuildIDFromContent(tt.parts...)
			id2 := BuildIDFromContent(tt.parts...)

			if id1 != id2 {
				t.Errorf("BuildIDFromContent() produced different IDs for same content: %s vs %s", id1, id2)
			}
			if len(id1) != 32 {
				t.Errorf("BuildIDFromContent() length = %d, want 32", len(id1))
			}
		})
	}
}

func TestBuildIDFromContent_PartBoundaries(t *testing.T) {
	id1 := BuildIDFromContent("ab", "c")
	id2 := BuildIDFromContent("a", "bc")

	if id1 == id2 {
		t.Errorf("BuildIDFromContent() ignored part boundaries")
	}
}

func TestBuildIDForConcepts_OrderIndependent(t *testing.T) {
	a := &Concept{System: SystemNAMASTE, Code: "A", Display: "Alpha"}
	b := &Concept{System: SystemLOINC, Code: "B", Display: "Beta"}

	if BuildIDForConcepts([]*Concept{a, b}) != BuildIDForConcepts([]*Concept{b, a}) {
		t.Errorf("BuildIDForConcepts() depends on input order")
	}
	if BuildIDForConcepts([]*Concept{a, b}) == BuildIDForConcepts([]*Concept{a, b}, "model-x") {
		t.Errorf("BuildIDForConcepts() ignored extra settings")
	}

	changed := &Concept{System: SystemLOINC, Code: "B", Display: "Beta", Definition: "changed"}
	if BuildIDForConcepts([]*Concept{a, b}) == BuildIDForConcepts([]*Concept{a, changed}) {
		t.Errorf("BuildIDForConcepts() ignored a definition change")
	}
}

func TestParseSystem(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    System
		wantErr error
	}{
		{name: "exact name", input: "NAMASTE", want: SystemNAMASTE},
		{name: "lower case", input: "snomed_ct", want: SystemSNOMEDCT},
		{name: "dash separator", input: "icd11-tm2", want: SystemICD11TM2},
		{name: "fhir uri", input: "http://loinc.org", want: SystemLOINC},
		{name: "unknown", input: "MEDDRA", wantErr: ErrUnknownSystem},
		{name: "empty", input: "", wantErr: ErrUnknownSystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSystem(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ParseSystem() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSystem() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseSystem() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConceptIDRoundTrip(t *testing.T) {
	c := &Concept{System: SystemICD11TM2, Code: "TM2.A01"}
	if c.ID() != "ICD11_TM2:TM2.A01" {
		t.Fatalf("Concept.ID() = %s", c.ID())
	}

	sys, code, err := ParseConceptID(c.ID())
	if err != nil {
		t.Fatalf("ParseConceptID() error = %v", err)
	}
	if sys != SystemICD11TM2 || code != "TM2.A01" {
		t.Errorf("ParseConceptID() = %v, %v", sys, code)
	}

	if _, _, err := ParseConceptID("no-separator"); err == nil {
		t.Errorf("ParseConceptID() accepted malformed id")
	}
}

func TestSystem_Others(t *testing.T) {
	others := SystemNAMASTE.Others()
	if len(others) != len(Systems)-1 {
		t.Fatalf("Others() returned %d systems", len(others))
	}
	for _, s := range others {
		if s == SystemNAMASTE {
			t.Errorf("Others() included the receiver")
		}
	}
}

func TestSystemPair_Key(t *testing.T) {
	p := SystemPair{Source: SystemNAMASTE, Target: SystemICD11TM2}
	if p.Key() != "NAMASTE_to_ICD11_TM2" {
		t.Errorf("SystemPair.Key() = %s", p.Key())
	}
}

func TestFeedback_CodePair(t *testing.T) {
	tests := []struct {
		name    string
		fb      Feedback
		wantSrc string
		wantTgt string
	}{
		{
			name:    "mapping id",
			fb:      Feedback{MappingID: "NAMASTE:NAMC001->ICD11_TM2:TM2.A01"},
			wantSrc: "NAMC001",
			wantTgt: "TM2.A01",
		},
		{
			name:    "explicit codes",
			fb:      Feedback{SourceCode: "NAMC001", TargetCode: "MG30"},
			wantSrc: "NAMC001",
			wantTgt: "MG30",
		},
		{
			name:    "mapping id wins",
			fb:      Feedback{MappingID: "NAMASTE:A->LOINC:B", SourceCode: "X", TargetCode: "Y"},
			wantSrc: "A",
			wantTgt: "B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, tgt := tt.fb.CodePair()
			if src != tt.wantSrc || tgt != tt.wantTgt {
				t.Errorf("CodePair() = (%s, %s), want (%s, %s)", src, tgt, tt.wantSrc, tt.wantTgt)
			}
		})
	}
}

func TestConcept_TextFields(t *testing.T) {
	c := &Concept{Display: "Fever", Synonyms: []string{"Pyrexia", ""}}
	fields := c.TextFields()
	if len(fields) != 2 || fields[0] != "Fever" || fields[1] != "Pyrexia" {
		t.Errorf("TextFields() = %v", fields)
	}
	if c.SearchText() != "Fever" {
		t.Errorf("SearchText() = %q", c.SearchText())
	}

	c.Definition = "Raised temperature"
	if c.SearchText() != "Fever: Raised temperature" {
		t.Errorf("SearchText() = %q", c.SearchText())
	}
}
