package domain

import "fmt"

// ExtractionError reports an unreadable or corrupt source document.
// Extraction is all-or-nothing per run, so one bad file aborts the batch.
type ExtractionError struct {
	File string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.File, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ConnectionError reports an unreachable store or a rejected/missing credential.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to store: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CollectionError reports a collection create or delete rejected by the store.
type CollectionError struct {
	Op         string
	Collection string
	Err        error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("%s collection %s: %v", e.Op, e.Collection, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// BulkInsertError reports a partial or total batch insert failure.
// Failed carries the failed record count when the store reports it, else 0.
type BulkInsertError struct {
	Collection string
	Failed     int
	Err        error
}

func (e *BulkInsertError) Error() string {
	if e.Failed > 0 {
		return fmt.Sprintf("insert into collection %s: %d records failed: %v", e.Collection, e.Failed, e.Err)
	}
	return fmt.Sprintf("insert into collection %s: %v", e.Collection, e.Err)
}

func (e *BulkInsertError) Unwrap() error { return e.Err }

// PreconditionError reports an operation invoked before the client reached
// the required state, e.g. a search before the collection exists.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
