package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	t.Run("json output at the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := setup(&buf, "warn", "json")
		require.NoError(t, err)

		logger.Info().Msg("dropped")
		logger.Warn().Str("asset", "a1").Msg("kept")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "kept", entry["message"])
		assert.Equal(t, "a1", entry["asset"])
		assert.Equal(t, "warn", entry["level"])
	})

	t.Run("console output is not json", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := setup(&buf, "debug", "console")
		require.NoError(t, err)

		logger.Debug().Msg("hello")
		assert.Contains(t, buf.String(), "hello")
		assert.False(t, json.Valid(buf.Bytes()))
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		_, err := setup(&bytes.Buffer{}, "loud", "json")
		assert.Error(t, err)

		_, err = setup(&bytes.Buffer{}, "info", "xml")
		assert.Error(t, err)
	})
}
