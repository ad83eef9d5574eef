package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "prod", "debug")
	log.Debug().Str("task_id", "42").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "42", line["task_id"])
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "prod", "warn")
	log.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	buf.Reset()
	log = NewWithWriter(&buf, "prod", "not-a-level")
	log.Info().Msg("kept")
	assert.NotZero(t, buf.Len())
}
