// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"math"
)

// ValidateRawConcept validates a feed record according to domain rules.
//
// Validation rules:
//   - Code must not be empty (after trimming)
//   - Display must not be empty (after trimming)
//
// NOT validated (optional, degrade gracefully during scoring):
//   - Definition
//   - Synonyms
//   - SemanticTags
func ValidateRawConcept(record *RawConcept) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrMalformedConcept)
	}

	if isBlank(record.Code) {
		return fmt.Errorf("%w: %w", ErrMalformedConcept, ErrEmptyCode)
	}

	if isBlank(record.Display) {
		return fmt.Errorf("%w: code %q: %w", ErrMalformedConcept, record.Code, ErrEmptyDisplay)
	}

	return nil
}

// ValidateSystem validates that a System has a supported value.
func ValidateSystem(system System) error {
	for _, s := range Systems {
		if s == system {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownSystem, system)
}

// ValidateFeedback validates a Feedback record according to domain rules.
//
// Validation rules:
//   - Either MappingID or both SourceCode and TargetCode must be set
//   - Type must be CORRECT, INCORRECT or PARTIAL
//   - ConfidenceAdjustment must be a finite value in [-1, 1]
func ValidateFeedback(fb *Feedback) error {
	if fb == nil {
		return fmt.Errorf("%w: feedback is nil", ErrInvalidFeedback)
	}

	src, tgt := fb.CodePair()
	if isBlank(src) || isBlank(tgt) {
		return fmt.Errorf("%w: %w", ErrInvalidFeedback, ErrMissingMappingRef)
	}

	if err := ValidateFeedbackType(fb.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFeedback, err)
	}

	adj := fb.ConfidenceAdjustment
	if math.IsNaN(adj) || adj < -1 || adj > 1 {
		return fmt.Errorf("%w: %w", ErrInvalidFeedback, ErrInvalidAdjustment)
	}

	return nil
}

// ValidateFeedbackType validates that a FeedbackType has a valid value.
func ValidateFeedbackType(t FeedbackType) error {
	switch t {
	case FeedbackCorrect, FeedbackIncorrect, FeedbackPartial:
		return nil
	}
	return fmt.Errorf("%w: value %q", ErrInvalidFeedbackType, t)
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
