// Package dbtest holds the behaviour every db.KVStore implementation must
// share. Engine packages run it from their own tests.
package dbtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmlbl/csvd/pkg/db"
)

// Run exercises store, batch and iterator behaviour against fresh stores
// returned by open. open must register its own cleanup.
func Run(t *testing.T, open func(t *testing.T) db.KVStore) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store db.KVStore)
	}{
		{name: "basic_put_get", fn: testBasicPutGet},
		{name: "overwrite", fn: testOverwrite},
		{name: "delete_operations", fn: testDelete},
		{name: "store_closure", fn: testStoreClosure},
		{name: "basic_batch_operations", fn: testBasicBatchOperations},
		{name: "batch_commit_closure", fn: testBatchCommitAndClose},
		{name: "uncommitted_batch_discarded", fn: testUncommittedBatch},
		{name: "full_range_iteration", fn: testFullRangeIteration},
		{name: "bounded_range_iteration", fn: testBoundedRangeIteration},
		{name: "iterator_validity", fn: testIteratorValidity},
		{name: "iterator_seek", fn: testIteratorSeek},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

func put(t *testing.T, store db.KVStore, data map[string]string) {
	for k, v := range data {
		require.NoError(t, store.Put([]byte(k), []byte(v)))
	}
}

func collect(t *testing.T, iter db.Iterator) []string {
	var keys []string
	for iter.Next() {
		value, err := iter.Value()
		require.NoError(t, err)
		require.NotNil(t, value)
		keys = append(keys, string(iter.Key()))
	}
	return keys
}

func testBasicPutGet(t *testing.T, store db.KVStore) {
	key := []byte("test-key")
	value := []byte("test-value")

	err := store.Put(key, value)
	require.NoError(t, err)

	retrieved, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, value, retrieved)

	_, err = store.Get([]byte("non-existent"))
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func testOverwrite(t *testing.T, store db.KVStore) {
	key := []byte("k")
	require.NoError(t, store.Put(key, []byte("v1")))
	require.NoError(t, store.Put(key, []byte("v2")))

	retrieved, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), retrieved)
}

func testDelete(t *testing.T, store db.KVStore) {
	key := []byte("delete-test")

	err := store.Put(key, []byte("to-be-deleted"))
	require.NoError(t, err)

	err = store.Delete(key)
	require.NoError(t, err)

	_, err = store.Get(key)
	assert.ErrorIs(t, err, db.ErrNotFound)

	// Delete non-existent key should not error
	err = store.Delete([]byte("non-existent"))
	assert.NoError(t, err)
}

func testStoreClosure(t *testing.T, store db.KVStore) {
	err := store.Close()
	require.NoError(t, err)

	_, err = store.Get([]byte("key"))
	assert.ErrorIs(t, err, db.ErrClosed)

	err = store.Put([]byte("key"), []byte("value"))
	assert.ErrorIs(t, err, db.ErrClosed)

	err = store.Delete([]byte("key"))
	assert.ErrorIs(t, err, db.ErrClosed)

	_, err = store.NewIterator(nil, nil)
	assert.ErrorIs(t, err, db.ErrClosed)

	err = store.NewBatch().Put([]byte("key"), []byte("value"))
	assert.ErrorIs(t, err, db.ErrBatchDone)

	// Double close should not error
	err = store.Close()
	assert.NoError(t, err)
}

func testBasicBatchOperations(t *testing.T, store db.KVStore) {
	batch := store.NewBatch()
	defer batch.Close() //nolint:errcheck

	keys := [][]byte{[]byte("key1"), []byte("key2"), []byte("key3")}
	values := [][]byte{[]byte("value1"), []byte("value2"), []byte("value3")}

	for i := range keys {
		require.NoError(t, batch.Put(keys[i], values[i]))
	}

	// Delete one key in the same batch
	require.NoError(t, batch.Delete(keys[1]))

	// Nothing is visible before the commit
	_, err := store.Get(keys[0])
	assert.ErrorIs(t, err, db.ErrNotFound)

	require.NoError(t, batch.Commit())

	val1, err := store.Get(keys[0])
	require.NoError(t, err)
	assert.Equal(t, values[0], val1)

	_, err = store.Get(keys[1])
	assert.ErrorIs(t, err, db.ErrNotFound)

	val3, err := store.Get(keys[2])
	require.NoError(t, err)
	assert.Equal(t, values[2], val3)
}

func testBatchCommitAndClose(t *testing.T, store db.KVStore) {
	batch := store.NewBatch()

	err := batch.Put([]byte("key"), []byte("value"))
	require.NoError(t, err)

	err = batch.Commit()
	require.NoError(t, err)

	// Operations after commit should fail
	err = batch.Put([]byte("key2"), []byte("value2"))
	assert.ErrorIs(t, err, db.ErrBatchDone)

	err = batch.Delete([]byte("key2"))
	assert.ErrorIs(t, err, db.ErrBatchDone)

	err = batch.Commit()
	assert.ErrorIs(t, err, db.ErrBatchDone)

	assert.NoError(t, batch.Close())
	assert.NoError(t, batch.Close())
}

func testUncommittedBatch(t *testing.T, store db.KVStore) {
	batch := store.NewBatch()
	require.NoError(t, batch.Put([]byte("key"), []byte("value")))
	require.NoError(t, batch.Close())

	_, err := store.Get([]byte("key"))
	assert.ErrorIs(t, err, db.ErrNotFound)

	err = batch.Commit()
	assert.ErrorIs(t, err, db.ErrBatchDone)
}

func testFullRangeIteration(t *testing.T, store db.KVStore) {
	put(t, store, map[string]string{
		"d": "value-d",
		"a": "value-a",
		"c": "value-c",
		"b": "value-b",
	})

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	assert.Equal(t, []string{"a", "b", "c", "d"}, collect(t, iter))
}

func testBoundedRangeIteration(t *testing.T, store db.KVStore) {
	put(t, store, map[string]string{
		"a": "value-a",
		"b": "value-b",
		"c": "value-c",
		"d": "value-d",
		"e": "value-e",
	})

	iter, err := store.NewIterator([]byte("b"), []byte("e"))
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	assert.Equal(t, []string{"b", "c", "d"}, collect(t, iter))
}

func testIteratorValidity(t *testing.T, store db.KVStore) {
	put(t, store, map[string]string{
		"key1": "value1",
		"key2": "value2",
	})

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	// Initial state - iterator is not positioned
	assert.False(t, iter.Valid())

	assert.True(t, iter.Next())
	assert.True(t, iter.Valid())
	assert.Equal(t, []byte("key1"), iter.Key())

	val, err := iter.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), val)

	assert.True(t, iter.Next())
	assert.Equal(t, []byte("key2"), iter.Key())

	// No more elements, and the iterator stays exhausted
	assert.False(t, iter.Next())
	assert.False(t, iter.Valid())
	assert.False(t, iter.Next())
	assert.False(t, iter.Valid())

	_, err = iter.Value()
	assert.ErrorIs(t, err, db.ErrIteratorInvalid)

	assert.NoError(t, iter.Close())
	assert.NoError(t, iter.Close())
}

func testIteratorSeek(t *testing.T, store db.KVStore) {
	put(t, store, map[string]string{
		"row:a:1": "a1",
		"row:b:1": "b1",
		"row:b:2": "b2",
		"row:c:1": "c1",
	})

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	require.True(t, iter.Seek([]byte("row:b:")))
	assert.Equal(t, []byte("row:b:1"), iter.Key())

	require.True(t, iter.Next())
	assert.Equal(t, []byte("row:b:2"), iter.Key())

	assert.False(t, iter.Seek([]byte("row:z")))
	assert.False(t, iter.Valid())
}
