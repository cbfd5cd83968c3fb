package table

import (
	"github.com/cockroachdb/errors"
	"github.com/tmlbl/csvd/pkg/db"
)

var (
	ErrAlreadyExists = errors.New("table already exists")
	ErrInvalidName   = errors.New("invalid table name")
	ErrEngineIO      = errors.New("storage engine failure")
	ErrDecode        = errors.New("cannot decode table definition")
	ErrClosed        = errors.New("table store is closed")
)

// engineError wraps a failure reported by the engine with the operation and
// key that triggered it. The result matches ErrEngineIO, or ErrClosed when
// the engine had already been closed.
func engineError(err error, op string, key []byte) error {
	wrapped := errors.Wrapf(err, "%s %q", op, key)
	if errors.Is(err, db.ErrClosed) {
		return errors.Mark(wrapped, ErrClosed)
	}
	return errors.Mark(wrapped, ErrEngineIO)
}
