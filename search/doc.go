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

// Package search provides free-text nearest-neighbor search over indexed
// concepts.
//
// The Searcher embeds a query with the dense embedder, asks the vector index
// for the closest concept vectors by cosine distance and resolves each hit to
// its concept for display. Hits whose concept is no longer in the store fall
// back to the metadata stored alongside the vector.
package search
