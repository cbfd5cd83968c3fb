package pebble

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/tmlbl/csvd/pkg/db"
)

type Iterator struct {
	iter       *pebble.Iterator
	positioned bool
	closed     bool
}

// NewIterator creates an iterator over [start, end). A nil bound leaves that
// side of the range open.
func (p *KVStore) NewIterator(start, end []byte) (db.Iterator, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrClosed
	}

	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
	if err != nil {
		return nil, fmt.Errorf(ErrInIteratorCreation, err)
	}
	return &Iterator{iter: iter}, nil
}

// Seek positions the iterator at the first key >= key.
func (it *Iterator) Seek(key []byte) bool {
	it.positioned = true
	return it.iter.SeekGE(key)
}

func (it *Iterator) Next() bool {
	// If the iterator is un-positioned, position it at the first key
	if !it.positioned {
		it.positioned = true
		return it.iter.First()
	}
	// An exhausted iterator must not wrap around to the start again
	if !it.iter.Valid() {
		return false
	}
	return it.iter.Next()
}

func (it *Iterator) Key() []byte {
	key := it.iter.Key()
	result := make([]byte, len(key))
	copy(result, key)
	return result
}

func (it *Iterator) Value() ([]byte, error) {
	if !it.iter.Valid() {
		return nil, ErrIteratorInvalid
	}

	val, err := it.iter.ValueAndErr()
	if err != nil {
		return nil, fmt.Errorf(ErrIteratorValue, err)
	}

	result := make([]byte, len(val))
	copy(result, val)
	return result, nil
}

func (it *Iterator) Valid() bool {
	return it.iter.Valid()
}

// Close releases the pebble iterator and reports any error it accumulated.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.iter.Close()
}
