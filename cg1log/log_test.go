package cg1log

import (
	"bytes"
	"log/slog"
	"testing"
)

func TestDefaultLoggerDiscardsOutput(t *testing.T) {
	// Reset to the package default in case another test set a logger.
	SetLogger(nil)

	l := Logger()
	if l.Enabled(nil, slog.LevelError) { //nolint:staticcheck // nil Context is fine for Enabled
		t.Fatal("default logger should report every level as disabled")
	}
}

func TestSetLoggerReplacesSingleton(t *testing.T) {
	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	SetLogger(custom)
	defer SetLogger(nil)

	Logger().Info("stage transition", "stage", "rop-zstencil", "state", "DRAWING")

	if buf.Len() == 0 {
		t.Fatal("expected the custom logger to receive the record")
	}
}

func TestSetLoggerNilRestoresDefault(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	SetLogger(nil)

	Logger().Error("should not be written")
	if buf.Len() != 0 {
		t.Fatal("SetLogger(nil) should restore the silent default")
	}
}
