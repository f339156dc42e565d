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

// Package storage provides the storage abstraction layer for termbridge.
//
// This package defines the persisted vector index contract and the codecs
// shared by storage backends. The BadgerDB implementation lives in
// storage/badger.
//
// # Generations
//
// The index is versioned. Bulk rebuilds open a GenerationWriter, which
// writes vectors and concepts under a fresh generation prefix that readers
// cannot see. Commit flips the manifest to the new generation in a single
// transaction and publishes an in-memory snapshot; the previous generation is
// then dropped. A crash before Commit leaves the previous generation intact
// and the orphaned writes are discarded on the next open.
//
// Every manifest carries a build identifier, a fingerprint of the concept
// corpus and model settings, so callers can detect stale derived data.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces:
//
//	index, err := badger.OpenIndex(backend)  // returns storage.VectorIndex
//
// # Thread Safety
//
// All implementations must be safe for concurrent use. Queries read an
// immutable snapshot and never block on writers.
package storage
