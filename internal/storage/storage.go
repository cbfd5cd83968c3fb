// Package storage opens the engine selected in the configuration.
package storage

import (
	"fmt"

	"github.com/tmlbl/csvd/internal/config"
	"github.com/tmlbl/csvd/pkg/db"
	"github.com/tmlbl/csvd/pkg/db/bolt"
	"github.com/tmlbl/csvd/pkg/db/leveldb"
	"github.com/tmlbl/csvd/pkg/db/pebble"
	"github.com/tmlbl/csvd/pkg/log"
)

// Open opens the configured engine on c.DataDir. The caller owns the
// returned store and must close it.
func Open(c *config.Config) (db.KVStore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var (
		kv  db.KVStore
		err error
	)
	switch c.Engine {
	case config.EnginePebble:
		kv, err = pebble.Open(c.DataDir, pebble.Options{
			CreateIfMissing: c.CreateIfMissing,
			CacheSize:       c.CacheSize,
		})
	case config.EngineLevelDB:
		kv, err = leveldb.Open(c.DataDir, leveldb.Options{CreateIfMissing: c.CreateIfMissing})
	case config.EngineBolt:
		kv, err = bolt.Open(c.DataDir, bolt.Options{CreateIfMissing: c.CreateIfMissing})
	default:
		return nil, fmt.Errorf("unknown engine %q", c.Engine)
	}
	if err != nil {
		return nil, err
	}

	log.Engine.Debug().
		Str("engine", c.Engine).
		Str("dir", c.DataDir).
		Msg("engine opened")
	return kv, nil
}
