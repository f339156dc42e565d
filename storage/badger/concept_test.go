package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConceptRepository_RequiresBackend(t *testing.T) {
	_, err := NewConceptRepository(nil)
	assert.ErrorIs(t, err, storage.ErrBackendRequired)
}

func TestConceptRepository_LoadOrder(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	repo, err := NewConceptRepository(backend)
	require.NoError(t, err)
	ctx := context.Background()

	// More than one batch, codes deliberately out of lexical order.
	var concepts []*core.Concept
	for i := 300; i > 0; i-- {
		concepts = append(concepts, &core.Concept{System: core.SystemLOINC, Code: fmt.Sprintf("%d", i), Display: "x"})
	}
	require.NoError(t, repo.PutConcepts(ctx, 1, 0, concepts[:150]))
	require.NoError(t, repo.PutConcepts(ctx, 1, 150, concepts[150:]))

	got, err := repo.LoadConcepts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 300)
	assert.Equal(t, "300", got[0].Code)
	assert.Equal(t, "1", got[299].Code)

	other, err := repo.LoadConcepts(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestManifestRepository_Missing(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	m, err := NewManifestRepository(backend).LoadManifest()
	require.NoError(t, err)
	assert.Nil(t, m)
}
