// Package notify delivers committed domain events to the notification collaborator.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/pkg/workerpool"
)

const deliveryTimeout = 30 * time.Second

type Notifier interface {
	Notify(ctx context.Context, e domain.Event) error
}

// Publisher accepts events after the transaction that produced them has committed.
type Publisher interface {
	Publish(ctx context.Context, events ...domain.Event)
}

type Dispatcher struct {
	pool     workerpool.WorkerPoolI
	notifier Notifier
}

func NewDispatcher(pool workerpool.WorkerPoolI, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		pool:     pool,
		notifier: notifier,
	}
}

// Publish hands the events to the worker pool as one task so they reach the notifier in the
// order given. Delivery failures are logged and never reach the caller.
func (d *Dispatcher) Publish(ctx context.Context, events ...domain.Event) {
	if len(events) == 0 {
		return
	}
	batch := append([]domain.Event(nil), events...)
	ctx = context.WithoutCancel(ctx)

	err := d.pool.AddTask(ctx, func() error {
		dctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		defer cancel()
		for _, e := range batch {
			if err := d.notifier.Notify(dctx, e); err != nil {
				zap.L().Error("failed to deliver event", zap.String("type", string(e.Type)), zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		zap.L().Error("failed to enqueue events", zap.Int("count", len(batch)), zap.Error(err))
	}
}

type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, e domain.Event) error {
	fields := []zap.Field{
		zap.String("type", string(e.Type)),
		zap.Int("recipients", len(e.Recipients)),
		zap.Time("occurred_at", e.OccurredAt),
	}
	if e.BookingID != nil {
		fields = append(fields, zap.String("booking_id", e.BookingID.String()))
	}
	if e.PayoutID != nil {
		fields = append(fields, zap.String("payout_id", e.PayoutID.String()))
	}
	if e.Split != nil {
		fields = append(fields,
			zap.Int64("refund", e.Split.Refund),
			zap.Int64("teacher_earnings", e.Split.TeacherEarnings),
			zap.Int64("platform_commission", e.Split.PlatformCommission),
		)
	}
	zap.L().Info("event", fields...)
	return nil
}
