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


package badger

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/termbridge/storage"
)

// ManifestRepository reads and writes the live generation manifest.
type ManifestRepository struct {
	backend *Backend
}

// NewManifestRepository creates a new ManifestRepository.
func NewManifestRepository(backend *Backend) *ManifestRepository {
	return &ManifestRepository{
		backend: backend,
	}
}

// SetManifest stages the manifest in an open write transaction.
func (r *ManifestRepository) SetManifest(tx *badger.Txn, manifest *storage.Manifest) error {
	return tx.Set([]byte(manifestKey), storage.MarshalManifest(manifest))
}

// LoadManifest retrieves the live manifest.
// Returns nil, nil if no generation was ever committed.
func (r *ManifestRepository) LoadManifest() (*storage.Manifest, error) {
	var manifest *storage.Manifest
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(manifestKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			manifest, unmarshalErr = storage.UnmarshalManifest(val)
			return unmarshalErr
		})
	}, false)

	return manifest, err
}
