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

import "errors"

// Domain errors
var (
	// ErrMalformedConcept indicates a feed record failed validation.
	ErrMalformedConcept = errors.New("malformed concept")

	// ErrEmptyCode indicates the concept Code field is empty.
	ErrEmptyCode = errors.New("concept code cannot be empty")

	// ErrEmptyDisplay indicates the concept Display field is empty.
	ErrEmptyDisplay = errors.New("concept display cannot be empty")

	// ErrUnknownSystem indicates a terminology system name that is not supported.
	ErrUnknownSystem = errors.New("unknown terminology system")

	// ErrEmptyCorpus indicates the lexical vectorizer or mapping engine was used
	// before any concepts were loaded.
	ErrEmptyCorpus = errors.New("empty corpus")

	// ErrEmptyIndex indicates the vector index was queried before any upsert.
	ErrEmptyIndex = errors.New("empty index")

	// ErrConceptNotFound indicates an unknown code for the given system.
	ErrConceptNotFound = errors.New("concept not found")

	// ErrInvalidFeedback indicates a Feedback record failed validation.
	ErrInvalidFeedback = errors.New("invalid feedback")

	// ErrInvalidFeedbackType indicates an unsupported FeedbackType value.
	ErrInvalidFeedbackType = errors.New("invalid feedback type")

	// ErrMissingMappingRef indicates feedback names neither a mapping id nor a code pair.
	ErrMissingMappingRef = errors.New("feedback requires a mapping id or source and target codes")

	// ErrInvalidAdjustment indicates a confidence adjustment outside [-1, 1].
	ErrInvalidAdjustment = errors.New("confidence adjustment must be between -1 and 1")
)
