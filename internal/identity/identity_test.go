package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/identity"
)

func TestDocumentID_Deterministic(t *testing.T) {
	hash := identity.ContentHash([]byte("hello world"))

	a, err := identity.DocumentID("user-1", hash)
	require.NoError(t, err)
	b, err := identity.DocumentID("user-1", hash)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestDocumentID_TenantIsolation(t *testing.T) {
	hash := identity.ContentHash([]byte("identical bytes"))

	a, err := identity.DocumentID("owner-a", hash)
	require.NoError(t, err)
	b, err := identity.DocumentID("owner-b", hash)
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "same content for different owners must not collide")
}

func TestDocumentID_RejectsMalformedInputs(t *testing.T) {
	hash := identity.ContentHash([]byte("x"))

	_, err := identity.DocumentID("", hash)
	assert.ErrorIs(t, err, identity.ErrEmptyOwner)

	_, err = identity.DocumentID("user-1", "not-a-hash")
	assert.ErrorIs(t, err, identity.ErrBadContentHash)

	// Right length, bad alphabet.
	_, err = identity.DocumentID("user-1", "zz"+identity.ContentHash([]byte("x"))[2:])
	assert.ErrorIs(t, err, identity.ErrBadContentHash)
}

func TestChunkID_Deterministic(t *testing.T) {
	docID, err := identity.DocumentID("user-1", identity.ContentHash([]byte("doc")))
	require.NoError(t, err)

	a, err := identity.ChunkID(docID, "markdown", "v1", 3)
	require.NoError(t, err)
	b, err := identity.ChunkID(docID, "markdown", "v1", 3)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestChunkID_VersionDisjoint(t *testing.T) {
	docID, err := identity.DocumentID("user-1", identity.ContentHash([]byte("doc")))
	require.NoError(t, err)

	v1, err := identity.ChunkID(docID, "markdown", "v1", 0)
	require.NoError(t, err)
	v2, err := identity.ChunkID(docID, "markdown", "v2", 0)
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2, "chunker version bump must produce a disjoint id space")
}

func TestChunkID_RejectsMalformedInputs(t *testing.T) {
	docID, err := identity.DocumentID("user-1", identity.ContentHash([]byte("doc")))
	require.NoError(t, err)

	_, err = identity.ChunkID(docID, "", "v1", 0)
	assert.ErrorIs(t, err, identity.ErrEmptyChunker)

	_, err = identity.ChunkID(docID, "markdown", "", 0)
	assert.ErrorIs(t, err, identity.ErrEmptyChunker)

	_, err = identity.ChunkID(docID, "markdown", "v1", -1)
	assert.ErrorIs(t, err, identity.ErrBadOrdinal)
}
