package pebble

import "github.com/tmlbl/csvd/pkg/db"

var (
	ErrNotFound        = db.ErrNotFound
	ErrClosed          = db.ErrClosed
	ErrBatchDone       = db.ErrBatchDone
	ErrIteratorInvalid = db.ErrIteratorInvalid
)

const (
	ErrOpenStore          = "open pebble store %q: %w"
	ErrInIteratorCreation = "create pebble iterator: %w"
	ErrIteratorValue      = "read iterator value: %w"
)
