package retrieval

import (
	"sort"

	"pdfrag/internal/domain"
	"pdfrag/internal/vectorstore"
)

// DefaultLimit is the number of matches requested when the caller passes
// a non-positive limit.
const DefaultLimit = 3

// Client owns the lifecycle of one store connection and one target
// collection. Operations enforce their preconditions instead of creating
// state implicitly: Connect before anything else, and CreateCollection or
// UseCollection before Populate and the search operations.
//
// A Client is not safe for concurrent use; callers own serialization.
type Client struct {
	store      vectorstore.Store
	collection string
	connected  bool
	ready      bool
}

func NewClient(store vectorstore.Store, collection string) *Client {
	return &Client{store: store, collection: collection}
}

// Connect establishes the store connection.
func (c *Client) Connect() error {
	if err := c.store.Connect(); err != nil {
		return err
	}
	c.connected = true
	return nil
}

// Close releases the connection. It is safe on every exit path, including
// after a failed Connect.
func (c *Client) Close() error {
	c.connected = false
	c.ready = false
	return c.store.Close()
}

// CreateCollection declares the target collection. With cleanup set, any
// existing collection of that name is destroyed first; destroying a missing
// collection is not an error, so cleanup is idempotent.
func (c *Client) CreateCollection(cleanup bool) error {
	if !c.connected {
		return &domain.PreconditionError{Op: "create collection " + c.collection, Reason: "not connected"}
	}
	if cleanup {
		if err := c.store.DeleteCollection(c.collection); err != nil {
			return err
		}
	}
	if err := c.store.CreateCollection(c.collection); err != nil {
		return err
	}
	c.ready = true
	return nil
}

// UseCollection targets a collection that already exists in the store,
// for query-only sessions. It never creates one.
func (c *Client) UseCollection() error {
	if !c.connected {
		return &domain.PreconditionError{Op: "use collection " + c.collection, Reason: "not connected"}
	}
	ok, err := c.store.HasCollection(c.collection)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.PreconditionError{Op: "use collection " + c.collection, Reason: "collection does not exist"}
	}
	c.ready = true
	return nil
}

// Populate bulk-inserts all chunks into the target collection in a single
// batched call. No retries; a partial failure surfaces as a BulkInsertError.
func (c *Client) Populate(chunks []domain.Chunk) error {
	if err := c.require("populate collection " + c.collection); err != nil {
		return err
	}
	return c.store.Insert(c.collection, chunks)
}

// Search forwards the query to the store's near-text search and returns at
// most limit matches, sorted ascending by distance. The store itself does
// not guarantee that ordering.
func (c *Client) Search(query string, limit int) ([]domain.SearchResult, error) {
	if err := c.require("search collection " + c.collection); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	results, err := c.store.Query(c.collection, query, limit)
	if err != nil {
		return nil, err
	}
	sortByDistance(results)
	return results, nil
}

// SearchAndAnswer is Search plus a single grouped generation over the whole
// result set, driven by task.
func (c *Client) SearchAndAnswer(query, task string, limit int) ([]domain.SearchResult, string, error) {
	if err := c.require("search collection " + c.collection); err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	results, generated, err := c.store.GenerativeQuery(c.collection, query, task, limit)
	if err != nil {
		return nil, "", err
	}
	sortByDistance(results)
	return results, generated, nil
}

func (c *Client) require(op string) error {
	if !c.connected {
		return &domain.PreconditionError{Op: op, Reason: "not connected"}
	}
	if !c.ready {
		return &domain.PreconditionError{Op: op, Reason: "no collection targeted"}
	}
	return nil
}

// sortByDistance sorts ascending by distance; equal distances keep the
// store's relative order.
func sortByDistance(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
}
