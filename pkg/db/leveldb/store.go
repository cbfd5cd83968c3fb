// Package leveldb implements db.KVStore on top of goleveldb.
package leveldb

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/tmlbl/csvd/pkg/db"
)

const (
	ErrOpenStore     = "open leveldb store %q: %w"
	ErrIteratorValue = "read iterator value: %w"
)

var syncWrites = &opt.WriteOptions{Sync: true}

// Options tune how an on-disk store is opened.
type Options struct {
	CreateIfMissing bool
}

// KVStore is a db.KVStore backed by a leveldb database.
type KVStore struct {
	db     *leveldb.DB
	closed bool
	mu     sync.RWMutex
}

// NewKVStore opens a store on in-memory storage.
func NewKVStore() (*KVStore, error) {
	ldb, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf(ErrOpenStore, "memory", err)
	}
	return &KVStore{db: ldb}, nil
}

// Open opens, and optionally creates, a store bound to the directory path.
func Open(path string, opts Options) (*KVStore, error) {
	ldb, err := leveldb.OpenFile(path, &opt.Options{
		ErrorIfMissing: !opts.CreateIfMissing,
	})
	if err != nil {
		return nil, fmt.Errorf(ErrOpenStore, path, err)
	}
	return &KVStore{db: ldb}, nil
}

func (s *KVStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, db.ErrClosed
	}

	value, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, db.ErrNotFound
	}
	return value, err
}

func (s *KVStore) Put(key, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return db.ErrClosed
	}
	return s.db.Put(key, value, syncWrites)
}

func (s *KVStore) Delete(key []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return db.ErrClosed
	}
	return s.db.Delete(key, syncWrites)
}

func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type Batch struct {
	store *KVStore
	batch *leveldb.Batch
	done  atomic.Bool
}

func (s *KVStore) NewBatch() db.Batch {
	b := &Batch{store: s, batch: new(leveldb.Batch)}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		b.done.Store(true)
	}
	return b
}

func (b *Batch) Put(key, value []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.batch.Put(key, value)
	return nil
}

func (b *Batch) Delete(key []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.batch.Delete(key)
	return nil
}

func (b *Batch) Commit() error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	if b.store.closed {
		return db.ErrClosed
	}
	if err := b.store.db.Write(b.batch, syncWrites); err != nil {
		return err
	}
	b.done.Store(true)
	return nil
}

func (b *Batch) Close() error {
	if b.done.CompareAndSwap(false, true) {
		b.batch.Reset()
	}
	return nil
}

type Iterator struct {
	iter       iterator.Iterator
	positioned bool
	released   bool
}

// NewIterator creates an iterator over [start, end). A nil bound leaves that
// side of the range open.
func (s *KVStore) NewIterator(start, end []byte) (db.Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, db.ErrClosed
	}
	return &Iterator{
		iter: s.db.NewIterator(&util.Range{Start: start, Limit: end}, nil),
	}, nil
}

func (it *Iterator) Seek(key []byte) bool {
	it.positioned = true
	return it.iter.Seek(key)
}

func (it *Iterator) Next() bool {
	if !it.positioned {
		it.positioned = true
		return it.iter.First()
	}
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
		return nil, db.ErrIteratorInvalid
	}
	if err := it.iter.Error(); err != nil {
		return nil, fmt.Errorf(ErrIteratorValue, err)
	}
	val := it.iter.Value()
	result := make([]byte, len(val))
	copy(result, val)
	return result, nil
}

func (it *Iterator) Valid() bool {
	return it.iter.Valid()
}

// Close releases the iterator and reports any error it accumulated.
func (it *Iterator) Close() error {
	if it.released {
		return nil
	}
	it.released = true
	err := it.iter.Error()
	it.iter.Release()
	return err
}
