package domain

import (
	"fmt"
	"strconv"
)

// Chunk is a single unit of ingested text with its identity: which document
// it came from and where inside that document it sits. For PDF sources the
// sequence number is the 1-based page number.
type Chunk struct {
	Source   string
	Sequence int
	Text     string
}

// Key combines source and sequence into a single identifier for stores
// whose schema has no compound key.
func (c Chunk) Key() string {
	return c.Source + ":" + strconv.Itoa(c.Sequence)
}

// SearchResult is one scored match returned by the vector store.
// Distance is a dissimilarity score; lower means more relevant.
type SearchResult struct {
	Chunk    Chunk
	Distance float64
}

func (r SearchResult) String() string {
	return fmt.Sprintf("%s (distance %g)", r.Chunk.Key(), r.Distance)
}

// Chunker turns a directory of source documents into an ordered sequence
// of uniquely identified chunks.
type Chunker interface {
	Chunk(dir string) ([]Chunk, error)
}
