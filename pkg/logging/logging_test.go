package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_ContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, true, slog.LevelInfo)
	ctx := AppendCtx(context.Background(), slog.String("name", "ctl"))
	ctx = AppendCtx(ctx, slog.Int("frame", 2))

	log.DebugContext(ctx, "hidden")
	log.InfoContext(ctx, "decoded", slog.Bool("last", true))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "decoded", rec["msg"])
	assert.Equal(t, "ctl", rec["name"])
	assert.Equal(t, float64(2), rec["frame"])
	assert.Equal(t, true, rec["last"])
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, false, slog.LevelDebug).With(slog.String("cmd", "inspect"))
	log.Debug("header")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "cmd=inspect")
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.log")
	w := RotatingFile(path, 1, 2)
	log := Logger(w, false, slog.LevelInfo)
	log.Info("hello")
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
}
