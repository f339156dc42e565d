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

package storage

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery indicates invalid query parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")

	// ErrBatchTooLarge indicates an upsert batch above MaxBatchSize.
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrInvalidBatch indicates mismatched ids, vectors and metadata.
	ErrInvalidBatch = errors.New("invalid batch")

	// ErrDimensionMismatch indicates a vector whose length differs from the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnsupportedFormat indicates a manifest written by an incompatible version.
	ErrUnsupportedFormat = errors.New("unsupported index format")

	// ErrGenerationClosed indicates use of a generation writer after Commit or Abort.
	ErrGenerationClosed = errors.New("generation is closed")

	// ErrBackendRequired is returned when a repository is built without a backend.
	ErrBackendRequired = errors.New("storage backend is required")
)
