package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/secmon-lab/tedbrain/pkg/utils/logging"
)

// Close closes an io.Closer and logs the error. Nil closers are ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}

// Rollback runs an undo step of a failed multi-store write and logs when
// the undo itself fails. The original error is what callers surface.
func Rollback(ctx context.Context, what string, undo func(ctx context.Context) error) {
	// the caller's context may already be cancelled
	ctx = context.WithoutCancel(ctx)
	if err := undo(ctx); err != nil {
		logging.From(ctx).Error("Failed to roll back", slog.String("step", what), slog.Any("error", err))
	}
}
