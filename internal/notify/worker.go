package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/storelane/backoffice/internal/events"
	"github.com/storelane/backoffice/internal/lock"
)

// DeliveryWorker serialises deliveries per event. asynq already deduplicates
// task IDs, but the lock also covers manual replays racing a live retry.
type DeliveryWorker struct {
	Deliverer WebhookDeliverer
	Locker    lock.Locker
	LockTTL   time.Duration
}

// ProcessTask implements asynq.Handler.
func (w DeliveryWorker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	if w.Locker.R == nil {
		return w.Deliverer.ProcessTask(ctx, task)
	}
	var env events.Envelope
	if err := json.Unmarshal(task.Payload(), &env); err != nil {
		return fmt.Errorf("notify: decode envelope: %v: %w", err, asynq.SkipRetry)
	}
	ttl := w.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return w.Locker.WithLock(ctx, "lock:deliver:"+env.EventID, ttl, func(ctx context.Context) error {
		return w.Deliverer.ProcessTask(ctx, task)
	})
}
