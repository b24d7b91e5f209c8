// Package identity derives stable identifiers from semantic inputs so that
// every pipeline stage independently computes the same id for the same entity.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrEmptyOwner     = errors.New("identity: owner id is empty")
	ErrBadContentHash = errors.New("identity: content hash is not a sha256 hex digest")
	ErrEmptyChunker   = errors.New("identity: chunker name or version is empty")
	ErrBadOrdinal     = errors.New("identity: ordinal is negative")
)

// Name-based UUID namespaces. Fixed forever; changing either one silently
// re-keys every document and chunk in the system.
var (
	nsDocument = uuid.MustParse("8c5f1e6a-4b0d-4f2e-9c3a-7d1b2e8f5a60")
	nsChunk    = uuid.MustParse("d2a9c7b1-0e5f-4d38-8b6c-3f4a1e9d7c52")
)

// ContentHash returns the lowercase hex sha256 digest of raw.
func ContentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// DocumentID derives the document id from (owner, content hash). Same owner and
// same bytes always map to the same id; a different owner with identical bytes
// maps to a different id.
func DocumentID(ownerID, contentHash string) (uuid.UUID, error) {
	if ownerID == "" {
		return uuid.Nil, ErrEmptyOwner
	}
	if !isSHA256Hex(contentHash) {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrBadContentHash, contentHash)
	}
	name := fmt.Sprintf("%s:%s", ownerID, contentHash)
	return uuid.NewSHA1(nsDocument, []byte(name)), nil
}

// ChunkID derives the chunk id from the owning document, the chunker identity
// and the chunk's position. A new chunker version yields a disjoint id space.
func ChunkID(documentID uuid.UUID, chunkerName, chunkerVersion string, ordinal int) (uuid.UUID, error) {
	if documentID == uuid.Nil {
		return uuid.Nil, errors.New("identity: document id is nil")
	}
	if chunkerName == "" || chunkerVersion == "" {
		return uuid.Nil, ErrEmptyChunker
	}
	if ordinal < 0 {
		return uuid.Nil, fmt.Errorf("%w: %d", ErrBadOrdinal, ordinal)
	}
	name := fmt.Sprintf("%s:%s:%s:%d", documentID, chunkerName, chunkerVersion, ordinal)
	return uuid.NewSHA1(nsChunk, []byte(name)), nil
}

func isSHA256Hex(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
