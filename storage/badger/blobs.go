package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// BlobStore implements storage.BlobStore for BadgerDB.
// Blobs are content addressed and reference counted: every PutBlob of the
// same bytes adds a reference and DeleteBlob drops one.
type BlobStore struct {
	backend *Backend
}

var _ storage.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates a new BlobStore.
func NewBlobStore(backend *Backend) *BlobStore {
	return &BlobStore{backend: backend}
}

// PutBlob stores data and returns its reference.
func (s *BlobStore) PutBlob(ctx context.Context, data []byte) (string, error) {
	ref := core.BlobRefFromContent(data)
	err := s.backend.WithRetriedTx(func(tx *badger.Txn) error {
		count, err := readRefCount(tx, ref)
		if err != nil {
			return err
		}
		if count == 0 {
			if err := tx.Set(makeBlobKey(ref), data); err != nil {
				return err
			}
		}
		if err := writeRefCount(tx, ref, count+1); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

// GetBlob returns the bytes behind ref.
func (s *BlobStore) GetBlob(ctx context.Context, ref string) ([]byte, error) {
	var data []byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeBlobKey(ref))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: blob %q", storage.ErrNotFound, ref)
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	}, false)
	return data, err
}

// DeleteBlob drops one reference and removes the bytes with the last one.
func (s *BlobStore) DeleteBlob(ctx context.Context, ref string) error {
	return s.backend.WithRetriedTx(func(tx *badger.Txn) error {
		count, err := readRefCount(tx, ref)
		if err != nil {
			return err
		}
		switch {
		case count == 0:
			return nil
		case count == 1:
			if err := tx.Delete(makeBlobKey(ref)); err != nil {
				return err
			}
			if err := tx.Delete(makeBlobRefCountKey(ref)); err != nil {
				return err
			}
		default:
			if err := writeRefCount(tx, ref, count-1); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func readRefCount(tx *badger.Txn, ref string) (int, error) {
	item, err := tx.Get(makeBlobRefCountKey(ref))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var count int
	err = item.Value(func(val []byte) error {
		var err error
		count, _, err = varint.Int.Unmarshal(val)
		return err
	})
	return count, err
}

func writeRefCount(tx *badger.Txn, ref string, count int) error {
	buf := make([]byte, varint.Int.Size(count))
	varint.Int.Marshal(count, buf)
	return tx.Set(makeBlobRefCountKey(ref), buf)
}
