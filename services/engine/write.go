package engine

import (
	// Go Internal Packages
	"context"

	// Local Packages
	errors "nfc-bank/errors"
	models "nfc-bank/models"

	// External Packages
	"github.com/lestrrat-go/backoff/v2"
	"go.uber.org/zap"
)

// retryPolicy paces the attempts. The controller never gives up on its own;
// write counts attempts against MaxAttempts.
func (e *Engine) retryPolicy() backoff.Policy {
	r := e.Options.Retry
	if r.MinInterval <= 0 {
		return backoff.Constant(
			backoff.WithInterval(0),
			backoff.WithMaxRetries(0),
		)
	}

	maxInterval := r.MaxInterval
	if maxInterval < r.MinInterval {
		maxInterval = r.MinInterval
	}
	return backoff.Exponential(
		backoff.WithMinInterval(r.MinInterval),
		backoff.WithMaxInterval(maxInterval),
		backoff.WithMaxRetries(0),
	)
}

// write pushes fields to the tag, retrying failed attempts. The loop only
// ends early when ctx ends or the configured attempts run out; switching
// modes does not interrupt it.
func (e *Engine) write(ctx context.Context, id models.CardIdentity, fields []models.Field) (int, error) {
	bctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b := e.retryPolicy().Start(bctx)

	attempts := 0
	var lastErr error
	for backoff.Continue(b) {
		attempts++
		err := e.Transport.Write(ctx, fields)
		e.Metrics.WriteAttempted(err == nil)
		if err == nil {
			return attempts, nil
		}

		lastErr = errors.TransportErr("write", err)
		if limit := e.Options.Retry.MaxAttempts; limit > 0 && attempts >= limit {
			e.Logger.Warn("tag write failed, giving up",
				zap.Uint64("card_id", uint64(id)),
				zap.Int("attempts", attempts),
				zap.Error(err),
			)
			break
		}
		e.Logger.Warn("tag write failed, retrying",
			zap.Uint64("card_id", uint64(id)),
			zap.Int("attempt", attempts),
			zap.Error(err),
		)
		e.notify(models.Notification{
			Level:   models.LevelError,
			Title:   "Card write failed",
			Message: "Trying again...",
			CardID:  &id,
			Err:     lastErr,
		})
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return attempts, errors.WriteFailedErr(attempts, lastErr)
}
