package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// AddDocument stores a new document record and its owner index entry.
func (r *DocumentRepository) AddDocument(ctx context.Context, doc *core.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(doc.ID)
		if _, err := tx.Get(key); err == nil {
			return fmt.Errorf("%w: document %s", storage.ErrDuplicateKey, doc.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		if err := tx.Set(makeOwnerIndexKey(doc.OwnerID, doc.CreatedAt, doc.ID), []byte(doc.ID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// UpdateDocument replaces an existing document record.
// Owner and creation time are kept from the stored record.
func (r *DocumentRepository) UpdateDocument(ctx context.Context, doc *core.Document) error {
	return r.update(doc, func(*core.Document) error { return nil })
}

// UpdateDocumentForJob replaces the record if the stored copy still
// belongs to jobID.
func (r *DocumentRepository) UpdateDocumentForJob(ctx context.Context, doc *core.Document, jobID string) error {
	return r.update(doc, func(old *core.Document) error {
		if old.JobID != jobID {
			return fmt.Errorf("%w: document %s has job %s, not %s", storage.ErrJobSuperseded, doc.ID, old.JobID, jobID)
		}
		return nil
	})
}

func (r *DocumentRepository) update(doc *core.Document, check func(old *core.Document) error) error {
	return r.backend.WithRetriedTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(doc.ID)
		old, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return fmt.Errorf("%w: document %q", storage.ErrNotFound, doc.ID)
		}
		if err := check(old); err != nil {
			return err
		}

		doc.OwnerID = old.OwnerID
		doc.CreatedAt = old.CreatedAt
		doc.UpdatedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// GetDocument retrieves a document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var doc *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		doc, err = readDocument(tx, makeDocumentKey(id))
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("%w: document %q", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return doc, err
}

// ListDocumentsByOwner returns an owner's documents, newest first.
func (r *DocumentRepository) ListDocumentsByOwner(ctx context.Context, ownerID string) ([]*core.Document, error) {
	var docs []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var ids []string
		err := scanPrefix(tx, makePartialOwnerIndexKey(ownerID), func(_, val []byte) error {
			ids = append(ids, string(val))
			return nil
		})
		if err != nil {
			return err
		}

		for _, id := range ids {
			doc, err := readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if doc != nil {
				docs = append(docs, doc)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.Reverse(docs)
	return docs, nil
}

// DeleteDocument removes a document record and its owner index entry.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id string) error {
	return r.backend.WithRetriedTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		doc, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("%w: document %q", storage.ErrNotFound, id)
		}
		if err := tx.Delete(makeOwnerIndexKey(doc.OwnerID, doc.CreatedAt, doc.ID)); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// readDocument reads a document record within a transaction.
// Returns nil if the document doesn't exist.
func readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var err error
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}
