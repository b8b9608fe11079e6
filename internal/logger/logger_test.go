package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWithWriter(&buf, 0, "json")
		l.Info("Auth service: user logged in", "user_id", "42")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "Auth service: user logged in", entry["msg"])
		assert.Equal(t, "42", entry["user_id"])
	})

	t.Run("text filters by level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWithWriter(&buf, 4, "text")
		l.Info("hidden")
		l.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "level=WARN")
	})
}
