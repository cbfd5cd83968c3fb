// Package table turns an ordered key-value engine into a set of named tables
// holding delimited rows.
//
// Concurrency is delegated to the engine. The store adds no locking, so
// CreateTable is a check-then-act sequence: two concurrent calls for the same
// name may both succeed, the later write replacing the earlier definition.
package table

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/tmlbl/csvd/pkg/db"
	"github.com/tmlbl/csvd/pkg/log"
)

// Store manages table definitions and rows in a db.KVStore.
type Store struct {
	db     db.KVStore
	log    zerolog.Logger
	closed atomic.Bool
}

type Option func(*Store)

// WithLogger replaces the store component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// NewStore creates a table store that takes ownership of kv.
func NewStore(kv db.KVStore, opts ...Option) (*Store, error) {
	if kv == nil {
		return nil, errors.New("table store needs an open engine")
	}
	s := &Store{db: kv, log: log.Store}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateTable persists a new table definition. It fails with ErrAlreadyExists
// when a table of that name is already defined.
func (s *Store) CreateTable(def Definition) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := def.Validate(); err != nil {
		return err
	}

	_, exists, err := s.GetTable(def.Name)
	if err != nil {
		return err
	}
	if exists {
		return errors.Wrapf(ErrAlreadyExists, "table %q", def.Name)
	}

	value, err := def.Bytes()
	if err != nil {
		return errors.Wrapf(err, "encode table %q", def.Name)
	}
	key := DefinitionKey(def.Name)
	if err := s.db.Put(key, value); err != nil {
		return engineError(err, "put", key)
	}

	s.log.Debug().
		Str("table", def.Name).
		Stringer("dataType", def.DataType).
		Strs("columns", def.Columns).
		Msg("table created")
	return nil
}

// GetTable looks up a table definition. A missing table is reported through
// the boolean, not as an error.
func (s *Store) GetTable(name string) (Definition, bool, error) {
	if s.closed.Load() {
		return Definition{}, false, ErrClosed
	}
	if err := ValidateTableName(name); err != nil {
		return Definition{}, false, err
	}

	key := DefinitionKey(name)
	value, err := s.db.Get(key)
	if errors.Is(err, db.ErrNotFound) {
		return Definition{}, false, nil
	}
	if err != nil {
		return Definition{}, false, engineError(err, "get", key)
	}

	def, err := DefinitionFromBytes(value)
	if err != nil {
		return Definition{}, false, errors.Wrapf(err, "table %q", name)
	}
	return def, true, nil
}

// ListTables returns every table definition ordered by name.
func (s *Store) ListTables() ([]Definition, error) {
	it, err := s.ScanDefinitions()
	if err != nil {
		return nil, err
	}

	var defs []Definition
	for value, err := range it.All() {
		if err != nil {
			return nil, err
		}
		def, err := DefinitionFromBytes(value)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// WriteRow stores record under table, keyed by its leading field. A row with
// the same primary key is overwritten. The record is stored as given and is
// not checked against the table's columns.
func (s *Store) WriteRow(table string, record []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ValidateTableName(table); err != nil {
		return err
	}

	key := RowKey(table, PrimaryKey(record, CSV.Delimiter()))
	if err := s.db.Put(key, record); err != nil {
		return engineError(err, "put", key)
	}
	return nil
}

// ScanRows opens a scan over the rows of table in primary key order.
func (s *Store) ScanRows(table string) (*PrefixIterator, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	return newPrefixIterator(s.db, RowPrefix(table))
}

// Rows collects every row of table.
func (s *Store) Rows(table string) ([][]byte, error) {
	it, err := s.ScanRows(table)
	if err != nil {
		return nil, err
	}

	var rows [][]byte
	for row, err := range it.All() {
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ScanDefinitions opens a scan over the encoded table definitions in name
// order.
func (s *Store) ScanDefinitions() (*PrefixIterator, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return newPrefixIterator(s.db, DefinitionPrefix())
}

// DeleteTable removes every row of table and then its definition. Both steps
// are staged in one engine batch, so the table disappears atomically.
// Deleting a table that does not exist is a no-op.
func (s *Store) DeleteTable(table string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ValidateTableName(table); err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close() //nolint:errcheck

	it, err := newPrefixIterator(s.db, RowPrefix(table))
	if err != nil {
		return err
	}
	defer it.Close() //nolint:errcheck

	rows := 0
	for it.Next() {
		if err := batch.Delete(it.Key()); err != nil {
			return engineError(err, "stage delete of", it.Key())
		}
		rows++
	}
	// Release the scan before committing, some engines hold a read
	// transaction per iterator.
	if err := it.Close(); err != nil {
		return err
	}

	key := DefinitionKey(table)
	if err := batch.Delete(key); err != nil {
		return engineError(err, "stage delete of", key)
	}
	if err := batch.Commit(); err != nil {
		return engineError(err, "commit delete of", key)
	}

	s.log.Info().Str("table", table).Int("rows", rows).Msg("table deleted")
	return nil
}

// Close closes the engine. The store cannot be used afterwards.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return engineError(err, "close", nil)
	}
	return nil
}
