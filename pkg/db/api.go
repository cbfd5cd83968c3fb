package db

// KVStore represents an ordered key-value storage engine providing basic
// operations for data manipulation and iteration. Keys are ordered by
// lexicographic byte order.
type KVStore interface {
	Writer
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	NewBatch() Batch
	NewIterator(start, end []byte) (Iterator, error)
	Close() error
}

type Writer interface {
	Put(key []byte, value []byte) error
}

// Batch represents an atomic batch of operations.
// All operations in a batch are performed atomically.
type Batch interface {
	Writer
	Delete(key []byte) error
	Commit() error
	Close() error
}

// Iterator provides sequential access over a range of key-value pairs.
// A fresh iterator is un-positioned: the first call to Next moves it to the
// first key of its range, Seek moves it to the first key >= the given key.
// Once Next returns false the iterator stays exhausted.
// Iterators must be closed after use.
type Iterator interface {
	Seek(key []byte) bool
	Next() bool
	Key() []byte
	Value() ([]byte, error)
	Valid() bool
	Close() error
}
