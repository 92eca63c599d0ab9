package vectorstore

import "pdfrag/internal/domain"

// Schema selects how chunk identity is laid out in stored records.
type Schema int

const (
	// SchemaPaged stores source and sequence as separate fields.
	SchemaPaged Schema = iota
	// SchemaKeyed stores a single combined unique_identifier field, for
	// backends whose schema has no compound key.
	SchemaKeyed
)

// Store is the narrow surface this layer needs from an external vector
// store: collection lifecycle, batched insert, and near-text queries.
// Embedding and generation happen inside the store, never here.
type Store interface {
	// Connect establishes the store connection. It must be called before
	// any other operation and fails when the credential is missing or the
	// store rejects it.
	Connect() error

	// Close releases the connection. Safe to call when not connected.
	Close() error

	// HasCollection reports whether a collection with the given name exists.
	HasCollection(name string) (bool, error)

	// CreateCollection declares a new collection configured for external
	// vectorization and generative augmentation.
	CreateCollection(name string) error

	// DeleteCollection removes a collection. Deleting a collection that
	// does not exist is not an error.
	DeleteCollection(name string) error

	// Insert bulk-loads all chunks into the collection in one batched call.
	Insert(collection string, chunks []domain.Chunk) error

	// Query runs a near-text search and returns at most limit matches with
	// distance metadata. Result order is whatever the store returns.
	Query(collection, query string, limit int) ([]domain.SearchResult, error)

	// GenerativeQuery runs a near-text search and a single grouped
	// generation over the whole result set, returning both.
	GenerativeQuery(collection, query, task string, limit int) ([]domain.SearchResult, string, error)
}
