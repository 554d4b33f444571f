package docstore

import "context"

// Store defines the document operations used by the service layer.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with fakes.
type Store interface {
	Mutator
	Put(ctx context.Context, body []byte) (*Document, error)
	PutIfRevision(ctx context.Context, body []byte, rev string) (*Document, error)
	Create(ctx context.Context, body []byte) (*Document, error)
	GetDocument(ctx context.Context, id string) (*Document, error)
	Fetch(ctx context.Context, q Query) ([]Document, error)
	List(ctx context.Context, typ string, limit, offset int) ([]Document, int, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
