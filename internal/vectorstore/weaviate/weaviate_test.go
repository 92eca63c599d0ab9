package weaviate

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pdfrag/internal/domain"
	"pdfrag/internal/vectorstore"
)

const testKeyEnv = "PDFRAG_TEST_OPENAI_KEY"

func testStore(t *testing.T, handler http.Handler, schema vectorstore.Schema) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewStore(Config{URL: srv.URL, APIKeyEnv: testKeyEnv, Schema: schema})
}

func TestConnectMissingCredential(t *testing.T) {
	t.Setenv(testKeyEnv, "")
	s := testStore(t, http.NotFoundHandler(), vectorstore.SchemaPaged)

	err := s.Connect()
	var connErr *domain.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
}

func TestConnectChecksReadinessAndForwardsCredential(t *testing.T) {
	t.Setenv(testKeyEnv, "sk-test")
	var gotPath, gotKey string
	s := testStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-OpenAI-Api-Key")
	}), vectorstore.SchemaPaged)

	if err := s.Connect(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v1/.well-known/ready" {
		t.Fatalf("expected readiness probe, got %s", gotPath)
	}
	// Connect resolves the credential before probing, so it is already on
	// the probe request and every request after it.
	if gotKey != "sk-test" {
		t.Fatalf("expected forwarded credential, got %q", gotKey)
	}
}

func TestConnectStoreNotReady(t *testing.T) {
	t.Setenv(testKeyEnv, "sk-test")
	s := testStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}), vectorstore.SchemaPaged)

	err := s.Connect()
	var connErr *domain.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
}

func TestCreateCollectionPagedSchema(t *testing.T) {
	var body map[string]any
	s := testStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/schema" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}), vectorstore.SchemaPaged)

	if err := s.CreateCollection("Docs"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body["class"] != "Docs" {
		t.Fatalf("expected class Docs, got %v", body["class"])
	}
	if body["vectorizer"] != "text2vec-openai" {
		t.Fatalf("expected text2vec-openai vectorizer, got %v", body["vectorizer"])
	}
	if _, ok := body["moduleConfig"].(map[string]any)["generative-openai"]; !ok {
		t.Fatalf("expected generative-openai module config, got %v", body["moduleConfig"])
	}
	props, _ := body["properties"].([]any)
	if len(props) != 3 {
		t.Fatalf("expected 3 properties for paged schema, got %v", props)
	}
}

func TestCreateCollectionRejected(t *testing.T) {
	s := testStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"error": []map[string]string{{"message": "class already exists"}},
		})
	}), vectorstore.SchemaPaged)

	err := s.CreateCollection("Docs")
	var collErr *domain.CollectionError
	if !errors.As(err, &collErr) {
		t.Fatalf("expected CollectionError, got %v", err)
	}
	if collErr.Op != "create" || collErr.Collection != "Docs" {
		t.Fatalf("expected create/Docs, got %s/%s", collErr.Op, collErr.Collection)
	}
}

func TestDeleteCollectionTreatsMissingAsSuccess(t *testing.T) {
	s := testStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/v1/schema/Docs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
	}), vectorstore.SchemaPaged)

	if err := s.DeleteCollection("Docs"); err != nil {
		t.Fatalf("deleting a missing collection should not fail: %v", err)
	}
}

func TestHasCollection(t *testing.T) {
	s := testStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/schema/Docs" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}), vectorstore.SchemaPaged)

	ok, err := s.HasCollection("Docs")
	if err != nil || !ok {
		t.Fatalf("expected Docs to exist, got %v %v", ok, err)
	}
	ok, err = s.HasCollection("Missing")
	if err != nil || ok {
		t.Fatalf("expected Missing to not exist, got %v %v", ok, err)
	}
}

func TestInsertSendsOneBatch(t *testing.T) {
	var body struct {
		Objects []struct {
			Class      string         `json:"class"`
			Properties map[string]any `json:"properties"`
		} `json:"objects"`
	}
	calls := 0
	s := testStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/v1/batch/objects" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode([]map[string]any{{"result": map[string]any{}}, {"result": map[string]any{}}})
	}), vectorstore.SchemaPaged)

	chunks := []domain.Chunk{
		{Source: "a.pdf", Sequence: 1, Text: "first page"},
		{Source: "a.pdf", Sequence: 2, Text: "second page"},
	}
	if err := s.Insert("Docs", chunks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single batched call, got %d", calls)
	}
	if len(body.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(body.Objects))
	}
	props := body.Objects[1].Properties
	if props["filename"] != "a.pdf" || props["chunk_number"] != float64(2) || props["text"] != "second page" {
		t.Fatalf("unexpected record fields: %v", props)
	}
}

func TestInsertKeyedSchemaUsesUniqueIdentifier(t *testing.T) {
	var body struct {
		Objects []struct {
			Properties map[string]any `json:"properties"`
		} `json:"objects"`
	}
	s := testStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode([]map[string]any{{"result": map[string]any{}}})
	}), vectorstore.SchemaKeyed)

	if err := s.Insert("Docs", []domain.Chunk{{Source: "a.pdf", Sequence: 3, Text: "page"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	props := body.Objects[0].Properties
	if props["unique_identifier"] != "a.pdf:3" {
		t.Fatalf("expected unique_identifier a.pdf:3, got %v", props["unique_identifier"])
	}
	if _, ok := props["chunk_number"]; ok {
		t.Fatalf("keyed schema must not carry chunk_number: %v", props)
	}
}

func TestInsertSurfacesFailedRecordCount(t *testing.T) {
	s := testStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"result": map[string]any{}},
			{"result": map[string]any{"errors": map[string]any{"error": []map[string]string{{"message": "invalid text property"}}}}},
			{"result": map[string]any{"errors": map[string]any{"error": []map[string]string{{"message": "invalid text property"}}}}},
		})
	}), vectorstore.SchemaPaged)

	err := s.Insert("Docs", []domain.Chunk{
		{Source: "a.pdf", Sequence: 1}, {Source: "a.pdf", Sequence: 2}, {Source: "a.pdf", Sequence: 3},
	})
	var insertErr *domain.BulkInsertError
	if !errors.As(err, &insertErr) {
		t.Fatalf("expected BulkInsertError, got %v", err)
	}
	if insertErr.Failed != 2 {
		t.Fatalf("expected 2 failed records, got %d", insertErr.Failed)
	}
}

func graphqlHandler(t *testing.T, response map[string]any, capture *string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/graphql" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if capture != nil {
			*capture = req.Query
		}
		json.NewEncoder(w).Encode(response)
	})
}

func TestQueryParsesResults(t *testing.T) {
	var gql string
	response := map[string]any{
		"data": map[string]any{
			"Get": map[string]any{
				"Docs": []map[string]any{
					{"filename": "a.pdf", "chunk_number": 2, "text": "second page", "_additional": map[string]any{"distance": 0.12}},
					{"filename": "b.pdf", "chunk_number": 1, "text": "", "_additional": map[string]any{"distance": 0.48}},
				},
			},
		},
	}
	s := testStore(t, graphqlHandler(t, response, &gql), vectorstore.SchemaPaged)

	results, err := s.Query("Docs", "refund policy", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	first := results[0]
	if first.Chunk.Source != "a.pdf" || first.Chunk.Sequence != 2 || first.Distance != 0.12 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	for _, want := range []string{"nearText", `"refund policy"`, "limit: 2", "distance"} {
		if !strings.Contains(gql, want) {
			t.Fatalf("expected %q in GraphQL query:\n%s", want, gql)
		}
	}
}

func TestQueryReportsGraphQLErrors(t *testing.T) {
	response := map[string]any{
		"errors": []map[string]any{{"message": "no such class"}},
	}
	s := testStore(t, graphqlHandler(t, response, nil), vectorstore.SchemaPaged)

	if _, err := s.Query("Docs", "q", 3); err == nil {
		t.Fatal("expected error from GraphQL errors array")
	}
}

func TestGenerativeQueryReturnsGroupedResult(t *testing.T) {
	var gql string
	response := map[string]any{
		"data": map[string]any{
			"Get": map[string]any{
				"Docs": []map[string]any{
					{
						"filename": "a.pdf", "chunk_number": 1, "text": "page",
						"_additional": map[string]any{
							"distance": 0.2,
							"generate": map[string]any{"groupedResult": "Refunds take 30 days."},
						},
					},
				},
			},
		},
	}
	s := testStore(t, graphqlHandler(t, response, &gql), vectorstore.SchemaPaged)

	results, generated, err := s.GenerativeQuery("Docs", "refund policy", "Summarize the policy", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if generated != "Refunds take 30 days." {
		t.Fatalf("unexpected generated answer: %q", generated)
	}
	for _, want := range []string{"groupedResult", `"Summarize the policy"`} {
		if !strings.Contains(gql, want) {
			t.Fatalf("expected %q in GraphQL query:\n%s", want, gql)
		}
	}
}

func TestQueryKeyedSchemaSplitsIdentifier(t *testing.T) {
	response := map[string]any{
		"data": map[string]any{
			"Get": map[string]any{
				"Docs": []map[string]any{
					{"unique_identifier": "a.pdf:7", "text": "page", "_additional": map[string]any{"distance": 0.3}},
				},
			},
		},
	}
	s := testStore(t, graphqlHandler(t, response, nil), vectorstore.SchemaKeyed)

	results, err := s.Query("Docs", "q", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Chunk.Source != "a.pdf" || results[0].Chunk.Sequence != 7 {
		t.Fatalf("unexpected identity: %+v", results[0].Chunk)
	}
}

func TestQueryKeyedSchemaKeepsForeignIdentifierWhole(t *testing.T) {
	response := map[string]any{
		"data": map[string]any{
			"Get": map[string]any{
				"Docs": []map[string]any{
					{"unique_identifier": "glossary", "text": "terms", "_additional": map[string]any{"distance": 0.1}},
					{"unique_identifier": "a.pdf:final", "text": "page", "_additional": map[string]any{"distance": 0.2}},
				},
			},
		},
	}
	s := testStore(t, graphqlHandler(t, response, nil), vectorstore.SchemaKeyed)

	results, err := s.Query("Docs", "q", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Identifiers written by other tools may not end in a numeric suffix;
	// they surface whole as the source with sequence 0 instead of being split.
	if results[0].Chunk.Source != "glossary" || results[0].Chunk.Sequence != 0 {
		t.Fatalf("unexpected identity: %+v", results[0].Chunk)
	}
	if results[1].Chunk.Source != "a.pdf:final" || results[1].Chunk.Sequence != 0 {
		t.Fatalf("unexpected identity: %+v", results[1].Chunk)
	}
}

