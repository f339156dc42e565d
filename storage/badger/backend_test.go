package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "index")
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	info, err := os.Stat(tmpDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0o644))

	_, err := OpenBackend(tmpFile, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
}

func TestScanPrefix(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	err = backend.WithTx(func(tx *badger.Txn) error {
		for _, k := range []string{"a:2", "a:1", "b:1"} {
			if err := tx.Set([]byte(k), []byte("v"+k)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	var keys, values []string
	err = backend.ScanPrefix(context.Background(), []byte("a:"), func(key, value []byte) error {
		keys = append(keys, string(key))
		values = append(values, string(value))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "a:2"}, keys)
	assert.Equal(t, []string{"va:1", "va:2"}, values)

	require.NoError(t, backend.DropPrefix([]byte("a:")))
	var remaining []string
	require.NoError(t, backend.ScanKeys(nil, func(key []byte) error {
		remaining = append(remaining, string(key))
		return nil
	}))
	assert.Equal(t, []string{"b:1"}, remaining)
}

func TestGetSequence(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	seq, err := backend.GetSequence("test_sequence")
	require.NoError(t, err)
	require.NotNil(t, seq)
	defer seq.Release()

	id1, err := seq.Next()
	require.NoError(t, err)

	id2, err := seq.Next()
	require.NoError(t, err)

	assert.Greater(t, id2, id1)
}

func TestKeys(t *testing.T) {
	key := makeVectorKey(7, "NAMASTE:NAMC001")
	gen, ok := parseGeneration(key)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), gen)
	assert.Equal(t, "NAMASTE:NAMC001", idFromKey(key, makeVectorPrefix(7)))

	_, ok = parseGeneration([]byte(manifestKey))
	assert.False(t, ok)

	assert.Less(t, string(makeConceptKey(1, 9)), string(makeConceptKey(1, 10)))
	assert.Less(t, string(makeGenerationPrefix(9)), string(makeGenerationPrefix(10)))
}
