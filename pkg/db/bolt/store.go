// Package bolt implements db.KVStore on top of bbolt. All keys live in a
// single bucket, so bbolt's cursor order matches the byte order the other
// engines provide.
package bolt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/tmlbl/csvd/pkg/db"
	"go.etcd.io/bbolt"
)

const (
	FileName = "csvd.bolt"

	ErrOpenStore     = "open bolt store %q: %w"
	ErrBeginReadTx   = "begin bolt read transaction: %w"
	ErrCreateBucket  = "create bucket %s: %w"
	ErrMissingBucket = "bucket %s not found"
)

var bucketName = []byte("csvd")

// Options tune how the store is opened.
type Options struct {
	CreateIfMissing bool
	// Timeout bounds how long Open waits for the file lock held by another process.
	Timeout time.Duration
}

// KVStore is a db.KVStore backed by a bbolt file inside a data directory.
type KVStore struct {
	db     *bbolt.DB
	closed bool
	mu     sync.RWMutex
}

// Open opens the store file inside dir. bbolt always creates missing files,
// so the existence check for CreateIfMissing happens here.
func Open(dir string, opts Options) (*KVStore, error) {
	path := filepath.Join(dir, FileName)
	if !opts.CreateIfMissing {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf(ErrOpenStore, dir, err)
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf(ErrOpenStore, dir, err)
	}

	bdb, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout: opts.Timeout,
		// A large initial mapping keeps open read transactions (iterators)
		// from blocking a write that grows the file.
		InitialMmapSize: 1 << 30,
	})
	if err != nil {
		return nil, fmt.Errorf(ErrOpenStore, dir, err)
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketName); err != nil {
			return fmt.Errorf(ErrCreateBucket, bucketName, err)
		}
		return nil
	})
	if err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return &KVStore{db: bdb}, nil
}

func bucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	b := tx.Bucket(bucketName)
	if b == nil {
		return nil, errors.Newf(ErrMissingBucket, bucketName)
	}
	return b, nil
}

func (s *KVStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, db.ErrClosed
	}

	var result []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx)
		if err != nil {
			return err
		}
		value := b.Get(key)
		if value == nil {
			return db.ErrNotFound
		}
		result = make([]byte, len(value))
		copy(result, value)
		return nil
	})
	return result, err
}

func (s *KVStore) Put(key, value []byte) error {
	return s.update(func(b *bbolt.Bucket) error {
		return b.Put(key, value)
	})
}

func (s *KVStore) Delete(key []byte) error {
	return s.update(func(b *bbolt.Bucket) error {
		return b.Delete(key)
	})
}

func (s *KVStore) update(fn func(b *bbolt.Bucket) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return db.ErrClosed
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx)
		if err != nil {
			return err
		}
		return fn(b)
	})
}

// Close closes the file. Every iterator must be closed first, bbolt waits
// for open read transactions.
func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

// Batch stages operations in memory and applies them in one bbolt
// read-write transaction.
type Batch struct {
	store *KVStore
	ops   []batchOp
	done  atomic.Bool
}

func (s *KVStore) NewBatch() db.Batch {
	b := &Batch{store: s}
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
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key), value: bytes.Clone(value)})
	return nil
}

func (b *Batch) Delete(key []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key), delete: true})
	return nil
}

func (b *Batch) Commit() error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	err := b.store.update(func(bkt *bbolt.Bucket) error {
		for _, op := range b.ops {
			if op.delete {
				if err := bkt.Delete(op.key); err != nil {
					return err
				}
				continue
			}
			if err := bkt.Put(op.key, op.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.done.Store(true)
	b.ops = nil
	return nil
}

func (b *Batch) Close() error {
	b.done.Store(true)
	b.ops = nil
	return nil
}

// Iterator walks a bucket cursor inside a read-only transaction that stays
// open until Close.
type Iterator struct {
	tx         *bbolt.Tx
	cursor     *bbolt.Cursor
	start, end []byte
	key, value []byte
	positioned bool
	closed     bool
}

// NewIterator creates an iterator over [start, end). A nil bound leaves that
// side of the range open.
func (s *KVStore) NewIterator(start, end []byte) (db.Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, db.ErrClosed
	}

	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf(ErrBeginReadTx, err)
	}
	b, err := bucket(tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return &Iterator{
		tx:     tx,
		cursor: b.Cursor(),
		start:  bytes.Clone(start),
		end:    bytes.Clone(end),
	}, nil
}

func (it *Iterator) set(k, v []byte) bool {
	if k == nil || (it.end != nil && bytes.Compare(k, it.end) >= 0) {
		it.key, it.value = nil, nil
		return false
	}
	it.key, it.value = k, v
	return true
}

func (it *Iterator) Seek(key []byte) bool {
	it.positioned = true
	if it.start != nil && bytes.Compare(key, it.start) < 0 {
		key = it.start
	}
	return it.set(it.cursor.Seek(key))
}

func (it *Iterator) Next() bool {
	if !it.positioned {
		it.positioned = true
		if it.start != nil {
			return it.set(it.cursor.Seek(it.start))
		}
		return it.set(it.cursor.First())
	}
	if it.key == nil {
		return false
	}
	return it.set(it.cursor.Next())
}

func (it *Iterator) Key() []byte {
	return bytes.Clone(it.key)
}

func (it *Iterator) Value() ([]byte, error) {
	if it.key == nil {
		return nil, db.ErrIteratorInvalid
	}
	result := make([]byte, len(it.value))
	copy(result, it.value)
	return result, nil
}

func (it *Iterator) Valid() bool {
	return it.key != nil
}

// Close ends the read transaction.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.key, it.value = nil, nil
	return it.tx.Rollback()
}
