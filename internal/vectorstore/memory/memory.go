package memory

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"pdfrag/internal/domain"
	"pdfrag/internal/summarize"
)

// Store is an in-process stand-in for an external vector store, used for
// offline runs and tests. Vectorization normally happens inside the real
// store, so this backend ranks chunks by lexical token overlap instead:
// distance is 1 minus the Ochiai coefficient between query and chunk tokens.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]domain.Chunk
	extractor   *summarize.Extractor
}

func NewStore() *Store {
	return &Store{
		collections: map[string][]domain.Chunk{},
		extractor:   summarize.NewExtractor(),
	}
}

// Connect and Close are no-ops: there is no connection to establish and
// collection data survives a Close, matching a store that outlives sessions.
func (s *Store) Connect() error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) HasCollection(name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *Store) CreateCollection(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return &domain.CollectionError{Op: "create", Collection: name, Err: errors.New("collection already exists")}
	}
	s.collections[name] = nil
	return nil
}

func (s *Store) DeleteCollection(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *Store) Insert(collection string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.collections[collection]
	if !ok {
		return &domain.BulkInsertError{Collection: collection, Err: errors.New("collection does not exist")}
	}
	s.collections[collection] = append(stored, chunks...)
	return nil
}

func (s *Store) Query(collection, query string, limit int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("query collection %s: collection does not exist", collection)
	}
	if limit <= 0 {
		limit = 3
	}
	qset := tokenSet(query)
	results := make([]domain.SearchResult, 0, len(chunks))
	for _, ch := range chunks {
		results = append(results, domain.SearchResult{
			Chunk:    ch,
			Distance: 1 - ochiai(qset, ch.Text),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

func (s *Store) GenerativeQuery(collection, query, task string, limit int) ([]domain.SearchResult, string, error) {
	results, err := s.Query(collection, query, limit)
	if err != nil {
		return nil, "", err
	}
	var corpus strings.Builder
	for _, r := range results {
		corpus.WriteString(r.Chunk.Text)
		corpus.WriteString("\n")
	}
	generated := s.extractor.Extract(corpus.String(), 3)
	return results, generated, nil
}

var wordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

func tokenSet(text string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(text), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// ochiai is |A∩B| / sqrt(|A||B|) over the token sets of query and text.
func ochiai(qset map[string]struct{}, text string) float64 {
	tset := tokenSet(text)
	if len(qset) == 0 || len(tset) == 0 {
		return 0
	}
	inter := 0
	for t := range tset {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	return float64(inter) / (math.Sqrt(float64(len(qset))) * math.Sqrt(float64(len(tset))))
}
