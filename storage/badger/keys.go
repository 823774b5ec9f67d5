package badger

import (
	"encoding/binary"
	"time"
)

// Key prefixes for different data types
const (
	jobRecordPrefix     = "jobrec"
	jobQueuePrefix      = "jobq"
	jobQueueSeq         = "jobqseq"
	documentPrefix      = "docrec"
	documentOwnerPrefix = "docown"
	blobPrefix          = "blob"
	blobRefCountPrefix  = "blobcnt"
)

// makeJobKey generates a key for a job record by ID.
func makeJobKey(id string) []byte {
	return []byte(jobRecordPrefix + ":" + id)
}

// makeQueueKey generates a queue entry key.
// Format: prefix:seq with the sequence in BigEndian so keys sort in FIFO order.
func makeQueueKey(seq uint64) []byte {
	prefix := []byte(jobQueuePrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// queuePrefix is the iteration prefix covering every queue entry.
func queuePrefix() []byte {
	return []byte(jobQueuePrefix + ":")
}

// makeDocumentKey generates a key for a document record by ID.
func makeDocumentKey(id string) []byte {
	return []byte(documentPrefix + ":" + id)
}

// makeOwnerIndexKey generates a composite key for the owner index.
// Format: prefix:owner\x00createdAt:id so an owner's documents sort by creation.
func makeOwnerIndexKey(ownerID string, createdAt time.Time, docID string) []byte {
	prefix := makePartialOwnerIndexKey(ownerID)
	buf := make([]byte, len(prefix)+8+len(docID))
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], docID)
	return buf
}

// makePartialOwnerIndexKey generates the iteration prefix for one owner.
func makePartialOwnerIndexKey(ownerID string) []byte {
	return []byte(documentOwnerPrefix + ":" + ownerID + "\x00")
}

// makeBlobKey generates a key for raw blob bytes.
func makeBlobKey(ref string) []byte {
	return []byte(blobPrefix + ":" + ref)
}

// makeBlobRefCountKey generates a key for a blob's reference count.
func makeBlobRefCountKey(ref string) []byte {
	return []byte(blobRefCountPrefix + ":" + ref)
}
