package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionEncoding(t *testing.T) {
	def := Definition{Name: "users", DataType: CSV, Columns: []string{"id", "name", "email"}}

	data, err := def.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"name":"users","dataType":"CSV","columns":["id","name","email"]}`, string(data))

	decoded, err := DefinitionFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, def, decoded)
}

func TestDefinitionDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not_json", data: "\x00\x01garbage"},
		{name: "future_version", data: `{"version":2,"name":"t","dataType":"CSV","columns":[]}`},
		{name: "unknown_data_type", data: `{"version":1,"name":"t","dataType":"PARQUET","columns":[]}`},
		{name: "missing_name", data: `{"version":1,"dataType":"CSV","columns":["a"]}`},
		{name: "missing_data_type", data: `{"version":1,"name":"t","columns":["a"]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DefinitionFromBytes([]byte(tc.data))
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestDefinitionWithoutVersion(t *testing.T) {
	def, err := DefinitionFromBytes([]byte(`{"name":"t","dataType":"CSV","columns":["a","b"]}`))
	require.NoError(t, err)
	assert.Equal(t, Definition{Name: "t", DataType: CSV, Columns: []string{"a", "b"}}, def)
}

func TestDataType(t *testing.T) {
	dt, err := ParseDataType("csv")
	require.NoError(t, err)
	assert.Equal(t, CSV, dt)
	assert.Equal(t, "CSV", dt.String())
	assert.Equal(t, byte(','), dt.Delimiter())

	_, err = ParseDataType("tsv")
	assert.Error(t, err)

	assert.Error(t, Definition{Name: "t"}.Validate())
	assert.ErrorIs(t, Definition{Name: "a:b", DataType: CSV}.Validate(), ErrInvalidName)
}
