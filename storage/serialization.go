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

import (
	"errors"
	"fmt"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/termbridge/core"
)

// VectorRecord is the stored value of one index entry.
type VectorRecord struct {
	Vector   []float32
	Metadata map[string]string
}

var (
	vectorMUS   = ord.NewSliceSer[float32](raw.Float32)
	metadataMUS = ord.NewMapSer[string, string](ord.String, ord.String)
	stringsMUS  = ord.NewSliceSer[string](ord.String)

	// VectorRecordMUS serializes index entries.
	VectorRecordMUS = vectorRecordMUS{}
	// ConceptMUS serializes concepts persisted with a generation.
	ConceptMUS = conceptMUS{}
	// ManifestMUS serializes the live manifest.
	ManifestMUS = manifestMUS{}
)

type vectorRecordMUS struct{}

func (vectorRecordMUS) Marshal(v VectorRecord, bs []byte) (n int) {
	n = vectorMUS.Marshal(v.Vector, bs)
	return n + metadataMUS.Marshal(v.Metadata, bs[n:])
}

func (vectorRecordMUS) Unmarshal(bs []byte) (v VectorRecord, n int, err error) {
	// A corrupt length must not size the allocation.
	length, _, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 || length > len(bs)/4 {
		err = mus.ErrTooSmallByteSlice
		return
	}
	v.Vector, n, err = vectorMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Metadata, n1, err = metadataMUS.Unmarshal(bs[n:])
	n += n1
	if len(v.Metadata) == 0 {
		v.Metadata = nil
	}
	return
}

func (vectorRecordMUS) Size(v VectorRecord) (size int) {
	return vectorMUS.Size(v.Vector) + metadataMUS.Size(v.Metadata)
}

func (vectorRecordMUS) Skip(bs []byte) (n int, err error) {
	n, err = vectorMUS.Skip(bs)
	if err != nil {
		return
	}
	n1, err := metadataMUS.Skip(bs[n:])
	return n + n1, err
}

type conceptMUS struct{}

func (conceptMUS) Marshal(v core.Concept, bs []byte) (n int) {
	n = ord.String.Marshal(string(v.System), bs)
	n += ord.String.Marshal(v.Code, bs[n:])
	n += ord.String.Marshal(v.Display, bs[n:])
	n += ord.String.Marshal(v.Definition, bs[n:])
	n += stringsMUS.Marshal(v.Synonyms, bs[n:])
	return n + stringsMUS.Marshal(v.SemanticTags, bs[n:])
}

func (conceptMUS) Unmarshal(bs []byte) (v core.Concept, n int, err error) {
	var (
		n1     int
		system string
	)
	if system, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	v.System = core.System(system)
	if v.Code, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Display, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Definition, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Synonyms, n1, err = unmarshalStrings(bs[n:]); err != nil {
		return
	}
	n += n1
	v.SemanticTags, n1, err = unmarshalStrings(bs[n:])
	n += n1
	return
}

func (conceptMUS) Size(v core.Concept) (size int) {
	size = ord.String.Size(string(v.System))
	size += ord.String.Size(v.Code)
	size += ord.String.Size(v.Display)
	size += ord.String.Size(v.Definition)
	size += stringsMUS.Size(v.Synonyms)
	return size + stringsMUS.Size(v.SemanticTags)
}

func (conceptMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	for range 4 {
		if n1, err = ord.String.Skip(bs[n:]); err != nil {
			return n + n1, err
		}
		n += n1
	}
	if n1, err = stringsMUS.Skip(bs[n:]); err != nil {
		return n + n1, err
	}
	n += n1
	n1, err = stringsMUS.Skip(bs[n:])
	return n + n1, err
}

// unmarshalStrings keeps an empty list nil so decoded concepts compare equal
// to the ones that were stored.
func unmarshalStrings(bs []byte) ([]string, int, error) {
	length, _, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return nil, 0, err
	}
	if length < 0 || length > len(bs) {
		return nil, 0, mus.ErrTooSmallByteSlice
	}
	v, n, err := stringsMUS.Unmarshal(bs)
	if len(v) == 0 {
		v = nil
	}
	return v, n, err
}

type manifestMUS struct{}

func (manifestMUS) Marshal(v Manifest, bs []byte) (n int) {
	n = varint.Int.Marshal(v.FormatVersion, bs)
	n += ord.String.Marshal(v.BuildID, bs[n:])
	n += varint.Uint64.Marshal(v.Generation, bs[n:])
	n += varint.Int.Marshal(v.Dimension, bs[n:])
	n += varint.Int.Marshal(v.Count, bs[n:])
	n += varint.Int.Marshal(v.Concepts, bs[n:])
	return n + raw.TimeUnixNanoUTC.Marshal(v.CreatedAt, bs[n:])
}

func (manifestMUS) Unmarshal(bs []byte) (v Manifest, n int, err error) {
	var n1 int
	if v.FormatVersion, n, err = varint.Int.Unmarshal(bs); err != nil {
		return
	}
	if v.BuildID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Generation, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	for _, field := range []*int{&v.Dimension, &v.Count, &v.Concepts} {
		if *field, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
			return
		}
		n += n1
	}
	v.CreatedAt, n1, err = raw.TimeUnixNanoUTC.Unmarshal(bs[n:])
	n += n1
	return
}

func (manifestMUS) Size(v Manifest) (size int) {
	size = varint.Int.Size(v.FormatVersion)
	size += ord.String.Size(v.BuildID)
	size += varint.Uint64.Size(v.Generation)
	size += varint.Int.Size(v.Dimension)
	size += varint.Int.Size(v.Count)
	size += varint.Int.Size(v.Concepts)
	return size + raw.TimeUnixNanoUTC.Size(v.CreatedAt)
}

func (manifestMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = manifestMUS{}.Unmarshal(bs)
	return
}

func decodeErr(err error) error {
	if errors.Is(err, mus.ErrTooSmallByteSlice) {
		return fmt.Errorf("%w: %w", ErrTruncatedData, err)
	}
	return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
}

// MarshalVectorRecord serializes a vector and its metadata to bytes.
func MarshalVectorRecord(vector []float32, metadata map[string]string) []byte {
	record := VectorRecord{Vector: vector, Metadata: metadata}
	buf := make([]byte, VectorRecordMUS.Size(record))
	VectorRecordMUS.Marshal(record, buf)
	return buf
}

// UnmarshalVectorRecord deserializes a value written by MarshalVectorRecord.
func UnmarshalVectorRecord(data []byte) ([]float32, map[string]string, error) {
	record, _, err := VectorRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, nil, decodeErr(err)
	}
	return record.Vector, record.Metadata, nil
}

// MarshalConcept serializes a Concept to bytes.
func MarshalConcept(concept *core.Concept) []byte {
	buf := make([]byte, ConceptMUS.Size(*concept))
	ConceptMUS.Marshal(*concept, buf)
	return buf
}

// UnmarshalConcept deserializes a Concept from bytes.
func UnmarshalConcept(data []byte) (*core.Concept, error) {
	concept, _, err := ConceptMUS.Unmarshal(data)
	if err != nil {
		return nil, decodeErr(err)
	}
	return &concept, nil
}

// MarshalManifest serializes a Manifest to bytes.
func MarshalManifest(m *Manifest) []byte {
	buf := make([]byte, ManifestMUS.Size(*m))
	ManifestMUS.Marshal(*m, buf)
	return buf
}

// UnmarshalManifest deserializes a Manifest and checks its format version.
func UnmarshalManifest(data []byte) (*Manifest, error) {
	m, _, err := ManifestMUS.Unmarshal(data)
	if err != nil {
		return nil, decodeErr(err)
	}
	if m.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, m.FormatVersion)
	}
	return &m, nil
}
