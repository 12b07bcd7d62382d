package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	// Test development mode
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize development logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}

	// Test production mode
	err = Init()
	if err != nil {
		t.Fatalf("failed to initialize production logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger = Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}
}

// Basic logging test (slog-backed; no Sugar)
func TestLoggerBasic(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil")
	}

	ctx := context.Background()
	logger.Info(ctx, "test message", String("k", "v"))
}

func TestLoggerNamed(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	namedLogger := Named("test")
	if namedLogger == nil {
		t.Fatal("named logger is nil")
	}

	ctx := context.Background()
	namedLogger.Info(ctx, "test message")
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatJSON); err != nil {
		t.Fatalf("failed to initialize json logger: %v", err)
	}

	Get().Named("ingest").Warn(context.Background(), "snapshot dropped",
		Uint64("seq", 7),
		Bool("malformed", true),
		Duration("age", 2*time.Second),
	)

	out := buf.String()
	if !strings.Contains(out, `"msg":"snapshot dropped"`) {
		t.Errorf("expected json message, got %q", out)
	}
	if !strings.Contains(out, `"seq":7`) {
		t.Errorf("expected grouped seq field, got %q", out)
	}
}

func TestLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
	if err := InitWithWriter(&buf, FormatText); err != nil {
		t.Fatalf("failed to initialize text logger: %v", err)
	}
	if err := SetFormat(FormatJSON); err != nil {
		t.Fatalf("failed to switch format: %v", err)
	}
	if err := SetLevelString("debug"); err != nil {
		t.Fatalf("failed to set level: %v", err)
	}
	Get().Debug(context.Background(), "visible")
	if !strings.Contains(buf.String(), `"level":"DEBUG"`) {
		t.Errorf("expected debug line, got %q", buf.String())
	}
	if err := SetLevelString("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
