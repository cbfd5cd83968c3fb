package testutils

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmlbl/csvd/pkg/db"
	"github.com/tmlbl/csvd/pkg/db/bolt"
	"github.com/tmlbl/csvd/pkg/db/leveldb"
	"github.com/tmlbl/csvd/pkg/db/pebble"
)

// Engine opens a fresh, empty store that is closed when the test ends.
type Engine struct {
	Name string
	Open func(t *testing.T) db.KVStore
}

// Engines lists every supported storage engine.
func Engines() []Engine {
	return []Engine{
		{Name: "pebble", Open: func(t *testing.T) db.KVStore {
			store, err := pebble.NewKVStore()
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		}},
		{Name: "leveldb", Open: func(t *testing.T) db.KVStore {
			store, err := leveldb.NewKVStore()
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		}},
		{Name: "bolt", Open: func(t *testing.T) db.KVStore {
			store, err := bolt.Open(t.TempDir(), bolt.Options{CreateIfMissing: true})
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		}},
	}
}

// RandomName returns a valid, random table name.
func RandomName(t *testing.T) string {
	b := make([]byte, 8)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return "t_" + hex.EncodeToString(b)
}
