package common

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "", want: slog.LevelInfo},
		{in: " INFO ", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", want: slog.LevelInfo, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupLogger(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := setupLogger(&buf, slog.LevelInfo, "json")
		logger.Debug("hidden")
		logger.Info("Document confirmed", "document_id", "d1")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "Document confirmed", entry["msg"])
		assert.Equal(t, "d1", entry["document_id"])
	})

	t.Run("console", func(t *testing.T) {
		var buf bytes.Buffer
		setupLogger(&buf, slog.LevelWarn, "console")
		slog.Info("hidden")
		slog.Warn("Upload failed", "invalid_image", true)

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "invalid_image=true")
	})
}

func TestUserError(t *testing.T) {
	err := NewUserError("未配置模型", ErrMissingConfig)

	assert.ErrorIs(t, err, ErrMissingConfig)
	assert.Equal(t, "未配置模型: missing configuration", err.Error())

	var userErr *UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "未配置模型", userErr.UserMessage)
}
