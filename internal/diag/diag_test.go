package diag

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDiscardByDefault(t *testing.T) {
	Init(Options{})
	require.NotNil(t, L)
	L.Error("dropped") // must not panic, must go nowhere
}

func TestInitEnabled(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Enabled: true, Output: &buf, Level: slog.LevelDebug})
	defer Init(Options{})

	L.Debug("armed", "addr", "0x1000")
	out := buf.String()
	require.Contains(t, out, "armed")
	require.Contains(t, out, "0x1000")

	// below-level records are filtered
	buf.Reset()
	Init(Options{Enabled: true, Output: &buf, Level: slog.LevelWarn})
	L.Info("quiet")
	require.Empty(t, buf.String())
}
