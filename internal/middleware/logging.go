package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

const (
	callKey contextKey = "call"

	idempotencyKeyHeader = "Idempotency-Key"
	existingIDHeader     = "Existing-Id"
)

// call is filled in by interceptors deeper in the chain so the outermost
// logger can report who made the request.
type call struct {
	memberID string
}

func noteMember(ctx context.Context, memberID string) {
	if c, ok := ctx.Value(callKey).(*call); ok {
		c.memberID = memberID
	}
}

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// with its procedure, caller, duration and outcome. Install it ahead of
// RequireAuth so rejected tokens are logged too.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			c := &call{memberID: GetMemberID(ctx)}

			resp, err := next(context.WithValue(ctx, callKey, c), req)

			level, msg, attrs := outcome(err)
			attrs = append(attrs,
				slog.String("procedure", req.Spec().Procedure),
				slog.String("member_id", c.memberID),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			if key := req.Header().Get(idempotencyKeyHeader); key != "" {
				attrs = append(attrs, slog.String("idempotency_key", key))
			}
			slog.LogAttrs(ctx, level, msg, attrs...)

			return resp, err
		}
	}
}

// outcome picks the log level for an RPC result. Caller mistakes such as bad
// input or replayed settlements are warnings; anything the server could not
// handle is an error.
func outcome(err error) (slog.Level, string, []slog.Attr) {
	if err == nil {
		return slog.LevelInfo, "RPC ok", nil
	}

	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return slog.LevelError, "RPC error", []slog.Attr{slog.Any("error", err)}
	}

	attrs := []slog.Attr{
		slog.String("code", connectErr.Code().String()),
		slog.String("error", connectErr.Message()),
	}
	if id := connectErr.Meta().Get(existingIDHeader); id != "" {
		attrs = append(attrs, slog.String("existing_id", id))
	}
	switch connectErr.Code() {
	case connect.CodeInternal, connect.CodeUnknown, connect.CodeDataLoss, connect.CodeUnavailable:
		return slog.LevelError, "RPC error", attrs
	default:
		return slog.LevelWarn, "RPC error", attrs
	}
}
