package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/storage"
	"github.com/mmynk/groupledger/internal/validator"
)

// ExistingIDHeader carries the id of the record that already satisfied a
// replayed request.
const ExistingIDHeader = "Existing-Id"

// toConnectError maps domain and storage errors onto Connect codes. Anything
// unrecognized is logged and reported as Internal.
func toConnectError(op string, err error) error {
	var fieldErr *validator.FieldError
	switch {
	case errors.As(err, &fieldErr), ledger.IsValidation(err):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case ledger.IsInvariantViolation(err):
		return connect.NewError(connect.CodeInternal, errors.New("ledger invariant violated, change rejected"))
	}

	if c, ok := ledger.AsConflict(err); ok {
		var connectErr *connect.Error
		switch c.Kind {
		case ledger.ConflictStale:
			connectErr = connect.NewError(connect.CodeAborted, err)
		default:
			connectErr = connect.NewError(connect.CodeAlreadyExists, err)
		}
		if c.ExistingID != "" {
			connectErr.Meta().Set(ExistingIDHeader, c.ExistingID)
		}
		return connectErr
	}

	slog.Error(op+" failed", "error", err)
	return connect.NewError(connect.CodeInternal, errors.New("internal error"))
}
