package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"omnicorp.dev/authcore/internal/access"
	"omnicorp.dev/authcore/internal/obs"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger := obs.Logger()
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })
	return &buf
}

func TestLogEventEnrichesFromContext(t *testing.T) {
	buf := captureLog(t)

	ctx := WithRequestID(context.Background(), "req-42")
	ctx = access.ContextWithPrincipal(ctx, &access.Principal{ID: "u1", Name: "jdoe"})

	if err := LogEvent(ctx, "authz.denied", map[string]any{"permission": "users:delete"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	var entry struct {
		TS        string         `json:"ts"`
		Type      string         `json:"type"`
		Event     string         `json:"event"`
		RequestID string         `json:"request_id"`
		Principal string         `json:"principal"`
		Fields    map[string]any `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if entry.Type != "audit" || entry.Event != "authz.denied" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.RequestID != "req-42" {
		t.Fatalf("request id not carried: %+v", entry)
	}
	if entry.Principal != "jdoe" {
		t.Fatalf("principal not carried: %+v", entry)
	}
	if entry.Fields["permission"] != "users:delete" {
		t.Fatalf("fields not carried: %+v", entry.Fields)
	}
	if entry.TS == "" {
		t.Fatalf("timestamp missing")
	}
}

func TestLogEventWithoutContext(t *testing.T) {
	buf := captureLog(t)

	if err := LogEvent(context.Background(), "auth.login.failed", nil); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := entry["request_id"]; ok {
		t.Fatalf("request id must be absent: %v", entry)
	}
	if _, ok := entry["principal"]; ok {
		t.Fatalf("principal must be absent: %v", entry)
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "   ", nil); err == nil {
		t.Fatalf("expected error for blank event name")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "  req-1  ")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("unexpected id: %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}
