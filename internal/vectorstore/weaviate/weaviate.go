package weaviate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"pdfrag/internal/domain"
	"pdfrag/internal/vectorstore"
)

// Store is a minimal REST client to a Weaviate instance configured for
// server-side vectorization (text2vec-openai) and grouped generation
// (generative-openai). The provider credential is forwarded on every
// request; Weaviate does the embedding and generation itself.
type Store struct {
	url    string
	apiKey string // Weaviate's own key, optional
	openAI string // provider credential, resolved at Connect
	keyEnv string
	schema vectorstore.Schema
	client *http.Client
}

type Config struct {
	URL       string
	APIKey    string
	APIKeyEnv string // environment variable holding the provider credential
	Schema    vectorstore.Schema
	Timeout   time.Duration
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	return &Store{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		keyEnv: keyEnv,
		schema: cfg.Schema,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *Store) Connect() error {
	key := os.Getenv(s.keyEnv)
	if key == "" {
		return &domain.ConnectionError{Err: fmt.Errorf("credential %s is not set", s.keyEnv)}
	}
	s.openAI = key
	resp, err := s.do(http.MethodGet, s.url+"/v1/.well-known/ready", nil)
	if err != nil {
		return &domain.ConnectionError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &domain.ConnectionError{Err: fmt.Errorf("readiness check: %s", resp.Status)}
	}
	return nil
}

func (s *Store) Close() error {
	s.openAI = ""
	s.client.CloseIdleConnections()
	return nil
}

func (s *Store) HasCollection(name string) (bool, error) {
	resp, err := s.do(http.MethodGet, s.url+"/v1/schema/"+name, nil)
	if err != nil {
		return false, &domain.CollectionError{Op: "inspect", Collection: name, Err: err}
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 300:
		return false, &domain.CollectionError{Op: "inspect", Collection: name, Err: errors.New(resp.Status)}
	}
	return true, nil
}

func (s *Store) CreateCollection(name string) error {
	body := map[string]any{
		"class":      name,
		"vectorizer": "text2vec-openai",
		"moduleConfig": map[string]any{
			"generative-openai": map[string]any{},
		},
		"properties": s.properties(),
	}
	resp, err := s.do(http.MethodPost, s.url+"/v1/schema", body)
	if err != nil {
		return &domain.CollectionError{Op: "create", Collection: name, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &domain.CollectionError{Op: "create", Collection: name, Err: apiError(resp)}
	}
	return nil
}

func (s *Store) DeleteCollection(name string) error {
	resp, err := s.do(http.MethodDelete, s.url+"/v1/schema/"+name, nil)
	if err != nil {
		return &domain.CollectionError{Op: "delete", Collection: name, Err: err}
	}
	defer resp.Body.Close()
	// 404 means the collection was already gone, which is fine.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return &domain.CollectionError{Op: "delete", Collection: name, Err: apiError(resp)}
	}
	return nil
}

func (s *Store) Insert(collection string, chunks []domain.Chunk) error {
	objects := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		objects[i] = map[string]any{
			"class":      collection,
			"properties": s.record(ch),
		}
	}
	resp, err := s.do(http.MethodPost, s.url+"/v1/batch/objects", map[string]any{"objects": objects})
	if err != nil {
		return &domain.BulkInsertError{Collection: collection, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &domain.BulkInsertError{Collection: collection, Err: apiError(resp)}
	}
	// The batch endpoint reports per-object outcomes in its 200 response.
	var report []struct {
		Result struct {
			Errors *struct {
				Error []struct {
					Message string `json:"message"`
				} `json:"error"`
			} `json:"errors"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return &domain.BulkInsertError{Collection: collection, Err: fmt.Errorf("decode batch report: %w", err)}
	}
	failed := 0
	var first string
	for _, obj := range report {
		if obj.Result.Errors == nil || len(obj.Result.Errors.Error) == 0 {
			continue
		}
		failed++
		if first == "" {
			first = obj.Result.Errors.Error[0].Message
		}
	}
	if failed > 0 {
		return &domain.BulkInsertError{Collection: collection, Failed: failed, Err: errors.New(first)}
	}
	return nil
}

func (s *Store) Query(collection, query string, limit int) ([]domain.SearchResult, error) {
	gql := fmt.Sprintf(
		`{ Get { %s(nearText: {concepts: [%s]}, limit: %d) { %s _additional { distance } } } }`,
		collection, strconv.Quote(query), limit, s.fields())
	objects, err := s.graphql(collection, gql)
	if err != nil {
		return nil, err
	}
	return s.results(objects), nil
}

func (s *Store) GenerativeQuery(collection, query, task string, limit int) ([]domain.SearchResult, string, error) {
	gql := fmt.Sprintf(
		`{ Get { %s(nearText: {concepts: [%s]}, limit: %d) { %s _additional { distance generate(groupedResult: {task: %s}) { groupedResult error } } } } }`,
		collection, strconv.Quote(query), limit, s.fields(), strconv.Quote(task))
	objects, err := s.graphql(collection, gql)
	if err != nil {
		return nil, "", err
	}
	generated := ""
	for _, obj := range objects {
		additional, ok := obj["_additional"].(map[string]any)
		if !ok {
			continue
		}
		generate, ok := additional["generate"].(map[string]any)
		if !ok {
			continue
		}
		if msg, ok := generate["error"].(string); ok && msg != "" {
			return nil, "", fmt.Errorf("query collection %s: generation: %s", collection, msg)
		}
		if text, ok := generate["groupedResult"].(string); ok && text != "" {
			generated = text
			break
		}
	}
	return s.results(objects), generated, nil
}

func (s *Store) graphql(collection, gql string) ([]map[string]any, error) {
	resp, err := s.do(http.MethodPost, s.url+"/v1/graphql", map[string]any{"query": gql})
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("query collection %s: %w", collection, apiError(resp))
	}
	var out struct {
		Data struct {
			Get map[string][]map[string]any `json:"Get"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("query collection %s: decode response: %w", collection, err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("query collection %s: %s", collection, out.Errors[0].Message)
	}
	return out.Data.Get[collection], nil
}

func (s *Store) results(objects []map[string]any) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, len(objects))
	for _, obj := range objects {
		var r domain.SearchResult
		if v, ok := obj["text"].(string); ok {
			r.Chunk.Text = v
		}
		switch s.schema {
		case vectorstore.SchemaKeyed:
			if v, ok := obj["unique_identifier"].(string); ok {
				r.Chunk.Source, r.Chunk.Sequence = splitKey(v)
			}
		default:
			if v, ok := obj["filename"].(string); ok {
				r.Chunk.Source = v
			}
			if v, ok := obj["chunk_number"].(float64); ok {
				r.Chunk.Sequence = int(v)
			}
		}
		if additional, ok := obj["_additional"].(map[string]any); ok {
			if v, ok := additional["distance"].(float64); ok {
				r.Distance = v
			}
		}
		results = append(results, r)
	}
	return results
}

func (s *Store) record(ch domain.Chunk) map[string]any {
	if s.schema == vectorstore.SchemaKeyed {
		return map[string]any{
			"unique_identifier": ch.Key(),
			"text":              ch.Text,
		}
	}
	return map[string]any{
		"filename":     ch.Source,
		"chunk_number": ch.Sequence,
		"text":         ch.Text,
	}
}

func (s *Store) properties() []map[string]any {
	if s.schema == vectorstore.SchemaKeyed {
		return []map[string]any{
			{"name": "unique_identifier", "dataType": []string{"text"}},
			{"name": "text", "dataType": []string{"text"}},
		}
	}
	return []map[string]any{
		{"name": "filename", "dataType": []string{"text"}},
		{"name": "chunk_number", "dataType": []string{"int"}},
		{"name": "text", "dataType": []string{"text"}},
	}
}

func (s *Store) fields() string {
	if s.schema == vectorstore.SchemaKeyed {
		return "unique_identifier text"
	}
	return "filename chunk_number text"
}

func (s *Store) do(method, url string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	if s.openAI != "" {
		req.Header.Set("X-OpenAI-Api-Key", s.openAI)
	}
	return s.client.Do(req)
}

func apiError(resp *http.Response) error {
	var body struct {
		Error []struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && len(body.Error) > 0 {
		return fmt.Errorf("%s: %s", resp.Status, body.Error[0].Message)
	}
	return errors.New(resp.Status)
}

// splitKey splits a unique_identifier of the form "source:N" on its last
// colon. A key without a numeric suffix is kept whole as the source with
// sequence 0, so foreign records still surface in results instead of being
// dropped.
func splitKey(key string) (string, int) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			seq, err := strconv.Atoi(key[i+1:])
			if err != nil {
				break
			}
			return key[:i], seq
		}
	}
	return key, 0
}
