package logger

import (
	"context"
	"testing"

	"dailycode/pkg/utils/contextkey"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsRequestFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	ctx := context.WithValue(context.Background(), contextkey.TraceID, "trace-1")
	ctx = context.WithValue(ctx, contextkey.UserID, "u1")
	ctx = context.WithValue(ctx, contextkey.SubmissionID, "sub-9")

	l.WithContext(ctx).Info("verified")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["trace_id"] != "trace-1" {
		t.Fatalf("trace_id = %v", fields["trace_id"])
	}
	if fields["user_id"] != "u1" {
		t.Fatalf("user_id = %v", fields["user_id"])
	}
	if fields["submission_id"] != "sub-9" {
		t.Fatalf("submission_id = %v", fields["submission_id"])
	}
	if _, ok := fields["request_id"]; ok {
		t.Fatalf("request_id should be absent")
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, err := NewLogger(Config{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := NewLogger(Config{}); err != nil {
		t.Fatalf("empty level should default to info: %v", err)
	}
}

func TestGlobalHelpersWithoutInit(t *testing.T) {
	prev := GetLogger()
	SetGlobal(nil)
	defer SetGlobal(prev)

	Info(context.Background(), "ignored")
	if WithFields(context.Background()) != nil {
		t.Fatalf("expected nil logger before init")
	}
}
