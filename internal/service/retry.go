package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// withRetry re-runs fn on serialization failures with exponential backoff.
// Business errors pass through untouched.
func withRetry(ctx context.Context, logger *slog.Logger, op string, maxRetries int, fn func() error) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return err
		}
		logger.Warn("Retrying operation",
			slog.String("op", op),
			slog.Int("attempt", i+1),
			slog.Any("err", err),
		)
		lastErr = err
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(time.Duration(1<<i) * 10 * time.Millisecond):
		}
	}
	logger.Error("Operation failed after retries",
		slog.String("op", op),
		slog.Any("err", lastErr),
	)
	return lastErr
}

func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
