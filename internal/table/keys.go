package table

import (
	"bytes"
	"strings"

	"github.com/cockroachdb/errors"
)

// Physical key layout, kept textual so existing data directories stay
// readable:
//
//	table_def:<name>          table definition
//	row:<table>:<primary key> row payload
//
// Both families sort in ascending byte order, which is the order scans
// return them in.
const (
	definitionFamily = "table_def:"
	rowFamily        = "row:"
	separator        = ':'
)

// DefinitionPrefix is the scan bound covering every table definition.
func DefinitionPrefix() []byte {
	return DefinitionKey("")
}

// DefinitionKey returns the key holding the definition of table name.
func DefinitionKey(name string) []byte {
	key := make([]byte, 0, len(definitionFamily)+len(name))
	key = append(key, definitionFamily...)
	return append(key, name...)
}

// RowPrefix is the scan bound covering every row of table.
func RowPrefix(table string) []byte {
	return RowKey(table, nil)
}

// RowKey returns the key of the row identified by primaryKey in table.
func RowKey(table string, primaryKey []byte) []byte {
	key := make([]byte, 0, len(rowFamily)+len(table)+1+len(primaryKey))
	key = append(key, rowFamily...)
	key = append(key, table...)
	key = append(key, separator)
	return append(key, primaryKey...)
}

// PrimaryKey returns the leading field of record, up to but excluding the
// first delimiter. A record without a delimiter is its own primary key.
func PrimaryKey(record []byte, delimiter byte) []byte {
	if i := bytes.IndexByte(record, delimiter); i >= 0 {
		return record[:i]
	}
	return record
}

// ValidateTableName rejects names that would make row prefixes ambiguous.
// Without the separator check the rows of table "a:b" would share the
// prefix "row:a:" with the rows of table "a".
func ValidateTableName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidName, "name is empty")
	}
	if strings.IndexByte(name, separator) >= 0 {
		return errors.Wrapf(ErrInvalidName, "%q contains %q", name, separator)
	}
	return nil
}
