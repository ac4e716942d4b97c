// Package txretry runs a unit of work in a transaction and re-runs it when a conditional
// update lost a race with a concurrent writer.
package txretry

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/internal/pg"
)

const (
	maxRetries = 3
	interval   = 20 * time.Millisecond
)

// Do runs fn inside txManager.Begin. A domain.ErrStaleState result rolls the attempt back and
// retries with a fresh read; any other error is returned as is. Retries are bounded, after
// which ErrStaleState itself is returned.
func Do(ctx context.Context, txManager pg.TXManager, fn pg.TransactionalFn) error {
	attempt := 0
	backoff := retry.WithMaxRetries(maxRetries, retry.NewConstant(interval))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := txManager.Begin(ctx, fn)
		if errors.Is(err, domain.ErrStaleState) {
			zap.L().Debug("stale state, retrying", zap.Int("attempt", attempt))
			return retry.RetryableError(err)
		}
		return err
	})
}
