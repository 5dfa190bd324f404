package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/hotel-frontdesk/internal/logging"
	"github.com/example/hotel-frontdesk/internal/occupancy"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	return logging.Scoped(ctx, base, "service", serviceName, operation, attrs...)
}

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrCommitConflict):
		return "commit_conflict"
	case errors.Is(err, occupancy.ErrInvalidWindow), errors.Is(err, occupancy.ErrNoRooms),
		errors.Is(err, occupancy.ErrOutsideWindow), errors.Is(err, occupancy.ErrInvalidGuests):
		return "invalid_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var aErr *AvailabilityError
	if errors.As(err, &aErr) {
		return "unavailable"
	}

	return "unexpected"
}
