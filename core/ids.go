package core

import (
	"encoding/hex"
	"fmt"

	"github.com/go-crypt/x/blake2b"
)

const ownerNamespacePrefix = "user_"

// ChunkID returns the deterministic vector id for a chunk of a document.
// Re-processing the same document produces the same ids, so upserts
// overwrite instead of duplicating.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// ChunkIDs returns the ids of chunks [from, to) of a document.
func ChunkIDs(documentID string, from, to int) []string {
	if to <= from {
		return nil
	}
	ids := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		ids = append(ids, ChunkID(documentID, i))
	}
	return ids
}

// OwnerNamespace returns the vector namespace holding an owner's documents.
func OwnerNamespace(ownerID string) string {
	return ownerNamespacePrefix + ownerID
}

// BlobRefFromContent returns a content-addressed reference for raw bytes
// using BLAKE2b-256. Identical uploads share a reference.
func BlobRefFromContent(data []byte) string {
	h, _ := blake2b.New(32, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
