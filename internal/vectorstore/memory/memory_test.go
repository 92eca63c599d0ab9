package memory

import (
	"errors"
	"testing"

	"pdfrag/internal/domain"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	if err := s.Connect(); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateCollection("Docs"); err != nil {
		t.Fatal(err)
	}
	chunks := []domain.Chunk{
		{Source: "a.pdf", Sequence: 1, Text: "The refund policy grants a refund within thirty days."},
		{Source: "a.pdf", Sequence: 2, Text: "Shipping times vary by region and carrier."},
		{Source: "b.pdf", Sequence: 1, Text: "Contact support for warranty questions."},
	}
	if err := s.Insert("Docs", chunks); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestQueryRanksOverlappingChunkFirst(t *testing.T) {
	s := seeded(t)

	results, err := s.Query("Docs", "refund policy", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Chunk.Source != "a.pdf" || results[0].Chunk.Sequence != 1 {
		t.Fatalf("expected a.pdf page 1 first, got %v", results[0].Chunk)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Fatalf("results not in ascending distance order: %v", results)
		}
	}
}

func TestQueryHonorsLimit(t *testing.T) {
	s := seeded(t)

	results, err := s.Query("Docs", "refund", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestQueryUnknownCollection(t *testing.T) {
	s := NewStore()
	if _, err := s.Query("Nope", "q", 3); err == nil {
		t.Fatal("expected error for unknown collection")
	}
}

func TestCreateExistingCollectionFails(t *testing.T) {
	s := NewStore()
	if err := s.CreateCollection("Docs"); err != nil {
		t.Fatal(err)
	}
	err := s.CreateCollection("Docs")
	var collErr *domain.CollectionError
	if !errors.As(err, &collErr) {
		t.Fatalf("expected CollectionError, got %v", err)
	}
}

func TestDeleteCollectionIdempotent(t *testing.T) {
	s := NewStore()
	if err := s.DeleteCollection("Missing"); err != nil {
		t.Fatalf("deleting a missing collection should not fail: %v", err)
	}
	if err := s.CreateCollection("Docs"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCollection("Docs"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCollection("Docs"); err != nil {
		t.Fatalf("second delete should not fail: %v", err)
	}
}

func TestInsertIntoMissingCollection(t *testing.T) {
	s := NewStore()
	err := s.Insert("Nope", []domain.Chunk{{Source: "a.pdf", Sequence: 1, Text: "x"}})
	var insertErr *domain.BulkInsertError
	if !errors.As(err, &insertErr) {
		t.Fatalf("expected BulkInsertError, got %v", err)
	}
}

func TestGenerativeQueryReturnsAnswer(t *testing.T) {
	s := seeded(t)

	results, generated, err := s.GenerativeQuery("Docs", "refund policy", "Summarize the policy", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if generated == "" {
		t.Fatal("expected a non-empty generated answer")
	}
}

func TestCloseKeepsCollectionData(t *testing.T) {
	s := seeded(t)
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Connect(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := s.HasCollection("Docs")
	if err != nil || !ok {
		t.Fatalf("expected Docs to survive a close, got %v %v", ok, err)
	}
	results, err := s.Query("Docs", "refund", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected stored chunks after reconnect, got %d results", len(results))
	}
}

func TestEmptyChunkTextRanksLast(t *testing.T) {
	s := NewStore()
	s.Connect()
	s.CreateCollection("Docs")
	s.Insert("Docs", []domain.Chunk{
		{Source: "scan.pdf", Sequence: 1, Text: ""},
		{Source: "a.pdf", Sequence: 1, Text: "refund policy details"},
	})

	results, err := s.Query("Docs", "refund", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Chunk.Source != "a.pdf" {
		t.Fatalf("expected textual chunk first, got %v", results[0].Chunk)
	}
	if results[1].Distance != 1 {
		t.Fatalf("expected maximum distance for empty text, got %g", results[1].Distance)
	}
}
