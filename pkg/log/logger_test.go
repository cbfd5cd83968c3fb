package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{LogLevel: zerolog.InfoLevel, Type: JSONLogger, Out: &buf})

	Store.Debug().Msg("hidden")
	Store.Info().Str("table", "foo").Msg("table created")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "store", entry["component"])
	assert.Equal(t, "foo", entry["table"])
	assert.Equal(t, "table created", entry["message"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestInitConsole(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{LogLevel: zerolog.DebugLevel, Type: ConsoleLogger, Out: &buf})

	CLI.Debug().Msg("ready")
	assert.Contains(t, buf.String(), "| DEBUG |")
	assert.Contains(t, buf.String(), `message: "ready" |`)
}

func TestParse(t *testing.T) {
	lvl, err := ParseLogLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, lvl)

	typ, err := ParseLoggerType("JSON")
	require.NoError(t, err)
	assert.Equal(t, JSONLogger, typ)

	_, err = ParseLoggerType("xml")
	assert.Error(t, err)
}
