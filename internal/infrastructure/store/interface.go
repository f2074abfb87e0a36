package store

import (
	"context"
	"errors"
)

// ErrStorage marks a failure of the underlying document store. Callers treat
// it as fatal for the operation and may retry at the UI layer.
var ErrStorage = errors.New("storage error")

// DocStore is a key-value document store keyed by (collection, id).
// Collections are created implicitly on first write.
type DocStore interface {
	// Set stores a document, replacing any existing one.
	Set(ctx context.Context, collection, id string, data any) error

	// Get retrieves a document by id. The boolean reports existence;
	// a missing document is not an error.
	Get(ctx context.Context, collection, id string) (any, bool, error)

	// GetAll retrieves every document in a collection.
	GetAll(ctx context.Context, collection string) ([]any, error)

	// Delete removes a document. Deleting a missing document is a no-op.
	Delete(ctx context.Context, collection, id string) error

	// Update modifies a document in place using updateFn. Returns false if
	// the document does not exist.
	Update(ctx context.Context, collection, id string, updateFn func(current any) any) (bool, error)
}
