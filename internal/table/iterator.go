package table

import (
	"bytes"
	"iter"

	"github.com/cockroachdb/errors"
	"github.com/tmlbl/csvd/pkg/db"
)

type scanState uint8

const (
	// scanFresh: seeked to the prefix, nothing consumed yet.
	scanFresh scanState = iota
	scanPositioned
	scanExhausted
)

// PrefixIterator yields, in ascending key order, the values of every key
// that starts with a fixed prefix. It is forward-only and not restartable.
//
// The engine iterator is released as soon as the scan is exhausted and on
// Close, whichever happens first. Callers that stop early must call Close,
// or range over All which closes on every exit path.
type PrefixIterator struct {
	it     db.Iterator
	prefix []byte
	state  scanState
	key    []byte
	value  []byte
	err    error
	closed bool
}

func newPrefixIterator(kv db.KVStore, prefix []byte) (*PrefixIterator, error) {
	it, err := kv.NewIterator(prefix, nil)
	if err != nil {
		return nil, engineError(err, "open iterator at", prefix)
	}
	p := &PrefixIterator{
		it:     it,
		prefix: bytes.Clone(prefix),
	}
	if !it.Seek(p.prefix) {
		p.exhaust(nil)
	}
	return p, nil
}

// Next advances to the next matching entry and reports whether there is one.
// The first call inspects the seek position without moving.
func (p *PrefixIterator) Next() bool {
	switch p.state {
	case scanExhausted:
		return false
	case scanFresh:
		p.state = scanPositioned
	default:
		p.it.Next()
	}

	if !p.it.Valid() {
		return p.exhaust(nil)
	}
	key := p.it.Key()
	// The engine iterator has no upper bound, the prefix check ends the scan.
	if !bytes.HasPrefix(key, p.prefix) {
		return p.exhaust(nil)
	}
	value, err := p.it.Value()
	if err != nil {
		return p.exhaust(engineError(err, "read value of", key))
	}
	p.key, p.value = key, value
	return true
}

// exhaust moves to the terminal state and releases the engine iterator.
// It always returns false so Next can return its result directly.
func (p *PrefixIterator) exhaust(err error) bool {
	p.state = scanExhausted
	p.key, p.value = nil, nil
	if err != nil && p.err == nil {
		p.err = err
	}
	p.release()
	return false
}

func (p *PrefixIterator) release() {
	if p.closed {
		return
	}
	p.closed = true
	if err := p.it.Close(); err != nil && p.err == nil {
		p.err = engineError(err, "close iterator at", p.prefix)
	}
}

// Key returns the physical key of the current entry.
func (p *PrefixIterator) Key() []byte {
	return p.key
}

// Value returns the value of the current entry, nil once exhausted.
func (p *PrefixIterator) Value() []byte {
	return p.value
}

// Err returns the first error the scan ran into.
func (p *PrefixIterator) Err() error {
	return p.err
}

// Close ends the scan, releases the engine iterator and returns Err.
// It is safe to call more than once.
func (p *PrefixIterator) Close() error {
	p.state = scanExhausted
	p.key, p.value = nil, nil
	p.release()
	return p.err
}

// All returns the remaining values as a sequence. The iterator is closed when
// the sequence ends or the loop body breaks out early; a scan error is yielded
// as the final element.
func (p *PrefixIterator) All() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		defer p.Close() //nolint:errcheck // reported below on the normal path
		for p.Next() {
			if !yield(p.Value(), nil) {
				return
			}
		}
		if err := p.Close(); err != nil {
			yield(nil, errors.WithStack(err))
		}
	}
}
