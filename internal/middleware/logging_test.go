package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/internal/auth"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var rec map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &rec); err != nil {
		t.Fatalf("decode log line %q: %v", lines[len(lines)-1], err)
	}
	return rec
}

func respondWith(err error) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if err != nil {
			return nil, err
		}
		return connect.NewResponse(&struct{}{}), nil
	}
}

func TestLoggingInterceptor_RecordsAuthenticatedMember(t *testing.T) {
	buf := captureLogs(t)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.Generate("alice", "Alice")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	chain := LoggingInterceptor()(RequireAuth(jwtManager)(respondWith(nil)))
	req := connect.NewRequest(&struct{}{})
	req.Header().Set("Authorization", "Bearer "+token)
	req.Header().Set(idempotencyKeyHeader, "settle-1")

	if _, err := chain(context.Background(), req); err != nil {
		t.Fatalf("call failed: %v", err)
	}

	rec := lastRecord(t, buf)
	if rec["level"] != "INFO" || rec["msg"] != "RPC ok" {
		t.Errorf("record = %v, want INFO RPC ok", rec)
	}
	if rec["member_id"] != "alice" {
		t.Errorf("member_id = %v, want alice", rec["member_id"])
	}
	if rec["idempotency_key"] != "settle-1" {
		t.Errorf("idempotency_key = %v, want settle-1", rec["idempotency_key"])
	}
}

func TestLoggingInterceptor_LogsRejectedToken(t *testing.T) {
	buf := captureLogs(t)
	chain := LoggingInterceptor()(RequireAuth(auth.NewJWTManager("test-secret", time.Hour))(respondWith(nil)))

	_, err := chain(context.Background(), connect.NewRequest(&struct{}{}))
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}

	rec := lastRecord(t, buf)
	if rec["level"] != "WARN" || rec["code"] != "unauthenticated" || rec["member_id"] != "" {
		t.Errorf("record = %v", rec)
	}
}

func TestLoggingInterceptor_Levels(t *testing.T) {
	conflict := connect.NewError(connect.CodeAlreadyExists, errors.New("settlement already recorded"))
	conflict.Meta().Set(existingIDHeader, "settlement-1")

	tests := []struct {
		name       string
		err        error
		wantLevel  string
		wantCode   any
		wantExisID any
	}{
		{"ok", nil, "INFO", nil, nil},
		{"bad input", connect.NewError(connect.CodeInvalidArgument, errors.New("amount must be positive")), "WARN", "invalid_argument", nil},
		{"replayed settlement", conflict, "WARN", "already_exists", "settlement-1"},
		{"invariant", connect.NewError(connect.CodeInternal, errors.New("ledger invariant violated")), "ERROR", "internal", nil},
		{"plain error", errors.New("boom"), "ERROR", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			ctx := WithMember(context.Background(), "bob")

			_, _ = LoggingInterceptor()(respondWith(tt.err))(ctx, connect.NewRequest(&struct{}{}))

			rec := lastRecord(t, buf)
			if rec["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", rec["level"], tt.wantLevel)
			}
			if rec["code"] != tt.wantCode {
				t.Errorf("code = %v, want %v", rec["code"], tt.wantCode)
			}
			if rec["existing_id"] != tt.wantExisID {
				t.Errorf("existing_id = %v, want %v", rec["existing_id"], tt.wantExisID)
			}
			if rec["member_id"] != "bob" {
				t.Errorf("member_id = %v, want bob", rec["member_id"])
			}
		})
	}
}
