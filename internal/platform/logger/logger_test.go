package logger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ogurasousui/hr-api/internal/platform/config"
	"go.uber.org/zap"
)

func TestNew_WritesToConfiguredPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "log.txt")
	l, err := New(config.LoggingConfig{Mode: "production", Level: "warn", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer Sync(l)

	if l.Core().Enabled(zap.InfoLevel) {
		t.Fatal("info level should be disabled")
	}
	if !l.Core().Enabled(zap.WarnLevel) {
		t.Fatal("warn level should be enabled")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	t.Parallel()

	if _, err := New(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	fallback := zap.NewNop()
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Fatal("expected fallback logger")
	}

	scoped := zap.NewExample()
	ctx := WithContext(context.Background(), scoped)
	if got := FromContext(ctx, fallback); got != scoped {
		t.Fatal("expected scoped logger from context")
	}

	if FromContext(context.Background(), nil) == nil {
		t.Fatal("expected nop logger when fallback is nil")
	}
}
