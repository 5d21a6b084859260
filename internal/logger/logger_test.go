package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"loud":  zapcore.InfoLevel,
		"":      zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew(t *testing.T) {
	l, err := New("debug")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug enabled")
	}
}

func TestContextRoundTrip(t *testing.T) {
	base := zap.NewNop()
	scoped := base.With(zap.String("request_id", "r1"))
	ctx := WithContext(context.Background(), scoped)
	if FromContext(ctx, base) != scoped {
		t.Fatalf("expected scoped logger")
	}
	if FromContext(context.Background(), base) != base {
		t.Fatalf("expected fallback logger")
	}
	if FromContext(context.Background(), nil) == nil {
		t.Fatalf("expected nop logger")
	}
}
