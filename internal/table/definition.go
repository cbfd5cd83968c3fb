package table

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// DataType tags the row format declared by a table.
type DataType uint8

const (
	CSV DataType = iota + 1
)

func (d DataType) String() string {
	switch d {
	case CSV:
		return "CSV"
	default:
		return "unknown"
	}
}

// Delimiter separates the fields of a row, the first field being the
// primary key.
func (d DataType) Delimiter() byte {
	return ','
}

// ParseDataType accepts a data type name in any letter case.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToUpper(s) {
	case "CSV":
		return CSV, nil
	default:
		return 0, errors.Newf("unknown data type %q", s)
	}
}

func (d DataType) MarshalText() ([]byte, error) {
	if d != CSV {
		return nil, errors.Newf("unknown data type %d", uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *DataType) UnmarshalText(text []byte) error {
	parsed, err := ParseDataType(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Definition describes a table. Columns are positional: the n-th column
// names the n-th field of every row.
type Definition struct {
	Name     string
	DataType DataType
	Columns  []string
}

// Validate checks the parts of a definition the store relies on.
func (d Definition) Validate() error {
	if err := ValidateTableName(d.Name); err != nil {
		return err
	}
	if d.DataType != CSV {
		return errors.Newf("table %q: unknown data type %d", d.Name, uint8(d.DataType))
	}
	return nil
}

// definitionVersion is written into every stored definition. Records
// written before versioning carry no version and decode as version 1.
const definitionVersion = 1

type definitionRecord struct {
	Version  int      `json:"version"`
	Name     string   `json:"name"`
	DataType DataType `json:"dataType"`
	Columns  []string `json:"columns"`
}

// Bytes encodes the definition in its stored form.
func (d Definition) Bytes() ([]byte, error) {
	return json.Marshal(definitionRecord{
		Version:  definitionVersion,
		Name:     d.Name,
		DataType: d.DataType,
		Columns:  d.Columns,
	})
}

// DefinitionFromBytes decodes a stored definition. Any failure matches
// ErrDecode.
func DefinitionFromBytes(data []byte) (Definition, error) {
	var rec definitionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Definition{}, errors.Mark(errors.Wrap(err, "decode definition"), ErrDecode)
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	if rec.Version != definitionVersion {
		return Definition{}, errors.Wrapf(ErrDecode, "unsupported definition version %d", rec.Version)
	}
	if rec.Name == "" {
		return Definition{}, errors.Wrap(ErrDecode, "definition has no name")
	}
	if rec.DataType == 0 {
		return Definition{}, errors.Wrapf(ErrDecode, "definition %q has no data type", rec.Name)
	}
	return Definition{
		Name:     rec.Name,
		DataType: rec.DataType,
		Columns:  rec.Columns,
	}, nil
}
