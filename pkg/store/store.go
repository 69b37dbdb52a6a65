package store

import (
	"context"
	"errors"
	"fmt"
)

// Store is the persistence boundary for ingested documents.
type Store interface {
	// Save upserts a document by its ID.
	Save(ctx context.Context, document *Document) error

	// Get returns the document with the given ID.
	Get(ctx context.Context, documentID string) (*Document, error)

	// List returns summaries of all stored documents, sorted by ID.
	List(ctx context.Context) ([]*Document, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// ErrNotFound reports a missing document ID.
type ErrNotFound struct {
	ID string
}

func (err *ErrNotFound) Error() string {
	return fmt.Sprintf("document not found: %s", err.ID)
}

// IsNotFound reports whether an error is a missing-document error.
func IsNotFound(err error) bool {
	var notFound *ErrNotFound
	return errors.As(err, &notFound)
}
