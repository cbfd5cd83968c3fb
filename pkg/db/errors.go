package db

import "github.com/cockroachdb/errors"

// Errors shared by every engine implementation.
var (
	ErrNotFound        = errors.New("kv-store: key not found")
	ErrClosed          = errors.New("kv-store: database is closed")
	ErrBatchDone       = errors.New("kv-store: batch already committed or closed")
	ErrIteratorInvalid = errors.New("kv-store: iterator is not positioned on a valid key")
)
