package table

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tmlbl/csvd/internal/testutils"
	"github.com/tmlbl/csvd/pkg/db"
)

func TestStore(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s *Store, kv db.KVStore)
	}{
		{name: "create_get_round_trip", fn: testRoundTrip},
		{name: "get_missing_table", fn: testGetMissing},
		{name: "duplicate_rejected", fn: testDuplicateRejected},
		{name: "invalid_names", fn: testInvalidNames},
		{name: "row_upsert", fn: testRowUpsert},
		{name: "rows_in_primary_key_order", fn: testRowOrder},
		{name: "prefix_isolation", fn: testPrefixIsolation},
		{name: "scan_exhaustion_idempotent", fn: testScanExhaustion},
		{name: "scan_definitions", fn: testScanDefinitions},
		{name: "delete_table", fn: testDeleteTable},
		{name: "delete_table_idempotent", fn: testDeleteTableIdempotent},
		{name: "delete_leaves_other_tables", fn: testDeleteLeavesOthers},
		{name: "corrupt_definition", fn: testCorruptDefinition},
		{name: "concurrent_scans", fn: testConcurrentScans},
		{name: "closed_store", fn: testClosedStore},
	}

	for _, engine := range testutils.Engines() {
		for _, tc := range tests {
			t.Run(engine.Name+"/"+tc.name, func(t *testing.T) {
				kv := engine.Open(t)
				s, err := NewStore(kv)
				require.NoError(t, err)
				tc.fn(t, s, kv)
			})
		}
	}
}

func csvTable(name string, columns ...string) Definition {
	return Definition{Name: name, DataType: CSV, Columns: columns}
}

func rowStrings(t *testing.T, s *Store, table string) []string {
	rows, err := s.Rows(table)
	require.NoError(t, err)
	var out []string
	for _, r := range rows {
		out = append(out, string(r))
	}
	return out
}

func testRoundTrip(t *testing.T, s *Store, _ db.KVStore) {
	def := csvTable("users", "id", "name", "email")
	require.NoError(t, s.CreateTable(def))

	got, ok, err := s.GetTable("users")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, def, got)
}

func testGetMissing(t *testing.T, s *Store, _ db.KVStore) {
	_, ok, err := s.GetTable("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testDuplicateRejected(t *testing.T, s *Store, _ db.KVStore) {
	require.NoError(t, s.CreateTable(csvTable("t", "a")))

	err := s.CreateTable(csvTable("t", "a", "b"))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// The first definition is untouched
	got, ok, err := s.GetTable("t")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, got.Columns)
}

func testInvalidNames(t *testing.T, s *Store, _ db.KVStore) {
	assert.ErrorIs(t, s.CreateTable(csvTable("", "a")), ErrInvalidName)
	assert.ErrorIs(t, s.CreateTable(csvTable("a:b", "a")), ErrInvalidName)
	assert.ErrorIs(t, s.WriteRow("a:b", []byte("1")), ErrInvalidName)
	assert.ErrorIs(t, s.DeleteTable(""), ErrInvalidName)

	_, err := s.ScanRows("x:")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, _, err = s.GetTable("")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func testRowUpsert(t *testing.T, s *Store, _ db.KVStore) {
	require.NoError(t, s.WriteRow("t", []byte("k1,v1")))
	require.NoError(t, s.WriteRow("t", []byte("k1,v2")))

	assert.Equal(t, []string{"k1,v2"}, rowStrings(t, s, "t"))
}

func testRowOrder(t *testing.T, s *Store, _ db.KVStore) {
	for _, r := range []string{"c,3", "a,1", "singleton", "b,2", "aa,11"} {
		require.NoError(t, s.WriteRow("t", []byte(r)))
	}

	assert.Equal(t, []string{"a,1", "aa,11", "b,2", "c,3", "singleton"}, rowStrings(t, s, "t"))
}

func testPrefixIsolation(t *testing.T, s *Store, _ db.KVStore) {
	require.NoError(t, s.CreateTable(csvTable("foo", "k", "v")))
	require.NoError(t, s.CreateTable(csvTable("fo", "k", "v")))
	require.NoError(t, s.CreateTable(csvTable("bar", "k", "v")))

	require.NoError(t, s.WriteRow("foo", []byte("2,foo2")))
	require.NoError(t, s.WriteRow("foo", []byte("1,foo1")))
	require.NoError(t, s.WriteRow("bar", []byte("1,bar1")))
	require.NoError(t, s.WriteRow("fo", []byte("9,fo9")))

	assert.Equal(t, []string{"1,foo1", "2,foo2"}, rowStrings(t, s, "foo"))
	assert.Equal(t, []string{"1,bar1"}, rowStrings(t, s, "bar"))
	assert.Equal(t, []string{"9,fo9"}, rowStrings(t, s, "fo"))
	assert.Empty(t, rowStrings(t, s, "baz"))
}

func testScanExhaustion(t *testing.T, s *Store, _ db.KVStore) {
	require.NoError(t, s.WriteRow("t", []byte("1,a")))

	it, err := s.ScanRows("t")
	require.NoError(t, err)
	require.True(t, it.Next())
	assert.Equal(t, []byte("1,a"), it.Value())

	assert.False(t, it.Next())
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
	assert.NoError(t, it.Close())
}

func testScanDefinitions(t *testing.T, s *Store, _ db.KVStore) {
	require.NoError(t, s.CreateTable(csvTable("b", "x")))
	require.NoError(t, s.CreateTable(csvTable("a", "x", "y")))
	// Rows never show up among definitions
	require.NoError(t, s.WriteRow("a", []byte("1,2")))

	it, err := s.ScanDefinitions()
	require.NoError(t, err)
	var names []string
	for value, err := range it.All() {
		require.NoError(t, err)
		def, err := DefinitionFromBytes(value)
		require.NoError(t, err)
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)

	defs, err := s.ListTables()
	require.NoError(t, err)
	assert.Equal(t, []Definition{csvTable("a", "x", "y"), csvTable("b", "x")}, defs)
}

func testDeleteTable(t *testing.T, s *Store, _ db.KVStore) {
	require.NoError(t, s.CreateTable(csvTable("foo", "a", "b")))
	require.NoError(t, s.WriteRow("foo", []byte("1,x")))
	require.NoError(t, s.WriteRow("foo", []byte("2,y")))

	require.NoError(t, s.DeleteTable("foo"))

	assert.Empty(t, rowStrings(t, s, "foo"))
	_, ok, err := s.GetTable("foo")
	require.NoError(t, err)
	assert.False(t, ok)

	// The name can be reused
	require.NoError(t, s.CreateTable(csvTable("foo", "c")))
}

func testDeleteTableIdempotent(t *testing.T, s *Store, _ db.KVStore) {
	require.NoError(t, s.DeleteTable("never"))

	require.NoError(t, s.CreateTable(csvTable("t", "a")))
	require.NoError(t, s.DeleteTable("t"))
	require.NoError(t, s.DeleteTable("t"))

	// Rows without a definition are removed as well
	require.NoError(t, s.WriteRow("orphan", []byte("1")))
	require.NoError(t, s.DeleteTable("orphan"))
	assert.Empty(t, rowStrings(t, s, "orphan"))
}

func testDeleteLeavesOthers(t *testing.T, s *Store, _ db.KVStore) {
	for _, name := range []string{"fo", "foo", "fooo"} {
		require.NoError(t, s.CreateTable(csvTable(name, "k")))
		require.NoError(t, s.WriteRow(name, []byte("1,"+name)))
	}

	require.NoError(t, s.DeleteTable("foo"))

	assert.Equal(t, []string{"1,fo"}, rowStrings(t, s, "fo"))
	assert.Equal(t, []string{"1,fooo"}, rowStrings(t, s, "fooo"))

	defs, err := s.ListTables()
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "fo", defs[0].Name)
	assert.Equal(t, "fooo", defs[1].Name)
}

func testCorruptDefinition(t *testing.T, s *Store, kv db.KVStore) {
	require.NoError(t, kv.Put(DefinitionKey("bad"), []byte("{not json")))

	_, _, err := s.GetTable("bad")
	assert.ErrorIs(t, err, ErrDecode)

	err = s.CreateTable(csvTable("bad", "a"))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = s.ListTables()
	assert.ErrorIs(t, err, ErrDecode)
}

func testConcurrentScans(t *testing.T, s *Store, _ db.KVStore) {
	for _, r := range []string{"1,a", "2,b", "3,c"} {
		require.NoError(t, s.WriteRow("t", []byte(r)))
	}

	first, err := s.ScanRows("t")
	require.NoError(t, err)
	defer first.Close() //nolint:errcheck
	second, err := s.ScanRows("t")
	require.NoError(t, err)
	defer second.Close() //nolint:errcheck

	require.True(t, first.Next())
	require.True(t, first.Next())
	require.True(t, second.Next())

	assert.Equal(t, []byte("2,b"), first.Value())
	assert.Equal(t, []byte("1,a"), second.Value())
}

func testClosedStore(t *testing.T, s *Store, _ db.KVStore) {
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.CreateTable(csvTable("t", "a")), ErrClosed)
	assert.ErrorIs(t, s.WriteRow("t", []byte("1")), ErrClosed)
	assert.ErrorIs(t, s.DeleteTable("t"), ErrClosed)
	_, _, err := s.GetTable("t")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.ScanRows("t")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.ScanDefinitions()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewStoreRequiresEngine(t *testing.T) {
	_, err := NewStore(nil)
	assert.Error(t, err)
}

// failingKV is an engine whose every call is scripted through testify/mock.
type failingKV struct {
	mock.Mock
}

func (f *failingKV) Put(key, value []byte) error {
	return f.Called(key, value).Error(0)
}

func (f *failingKV) Get(key []byte) ([]byte, error) {
	args := f.Called(key)
	value, _ := args.Get(0).([]byte)
	return value, args.Error(1)
}

func (f *failingKV) Delete(key []byte) error {
	return f.Called(key).Error(0)
}

func (f *failingKV) NewBatch() db.Batch {
	return f.Called().Get(0).(db.Batch)
}

func (f *failingKV) NewIterator(start, end []byte) (db.Iterator, error) {
	args := f.Called(start, end)
	it, _ := args.Get(0).(db.Iterator)
	return it, args.Error(1)
}

func (f *failingKV) Close() error {
	return f.Called().Error(0)
}

func TestEngineFailures(t *testing.T) {
	diskErr := errors.New("disk on fire")

	t.Run("get", func(t *testing.T) {
		kv := new(failingKV)
		kv.On("Get", DefinitionKey("t")).Return(nil, diskErr)
		s, err := NewStore(kv)
		require.NoError(t, err)

		_, _, err = s.GetTable("t")
		assert.ErrorIs(t, err, ErrEngineIO)
		assert.ErrorIs(t, err, diskErr)
		assert.Contains(t, err.Error(), "table_def:t")

		err = s.CreateTable(csvTable("t", "a"))
		assert.ErrorIs(t, err, ErrEngineIO)
		kv.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	})

	t.Run("put", func(t *testing.T) {
		kv := new(failingKV)
		kv.On("Put", RowKey("t", []byte("1")), []byte("1,a")).Return(diskErr)
		s, err := NewStore(kv)
		require.NoError(t, err)

		err = s.WriteRow("t", []byte("1,a"))
		assert.ErrorIs(t, err, ErrEngineIO)
		assert.Contains(t, err.Error(), "row:t:1")
		kv.AssertExpectations(t)
	})

	t.Run("iterator", func(t *testing.T) {
		kv := new(failingKV)
		kv.On("NewIterator", RowPrefix("t"), []byte(nil)).Return(nil, diskErr)
		s, err := NewStore(kv)
		require.NoError(t, err)

		_, err = s.ScanRows("t")
		assert.ErrorIs(t, err, ErrEngineIO)
	})

	t.Run("closed_engine", func(t *testing.T) {
		kv := new(failingKV)
		kv.On("Get", DefinitionKey("t")).Return(nil, db.ErrClosed)
		s, err := NewStore(kv)
		require.NoError(t, err)

		_, _, err = s.GetTable("t")
		assert.ErrorIs(t, err, ErrClosed)
	})
}
