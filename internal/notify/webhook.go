// Package notify delivers emitted domain events to tenant webhook endpoints.
// Delivery runs in the worker process via asynq; the API process only
// enqueues, so a slow or failing endpoint can never stall order creation.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/storelane/backoffice/internal/events"
	"github.com/storelane/backoffice/internal/obs"
	"github.com/storelane/backoffice/internal/resilience"
)

// Doer executes an outbound request. resilience.HTTPClient satisfies it,
// giving deliveries retry and circuit-breaker behaviour.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// WebhookDeliverer handles events:deliver tasks by POSTing the event envelope
// to the configured endpoint.
type WebhookDeliverer struct {
	HTTP     Doer
	Endpoint string
	Logger   zerolog.Logger
}

// ProcessTask implements asynq.Handler. Transient HTTP failures return an
// error so asynq retries with backoff; a missing endpoint drops the task.
func (d WebhookDeliverer) ProcessTask(ctx context.Context, task *asynq.Task) error {
	if d.Endpoint == "" {
		d.Logger.Debug().Msg("webhook delivery skipped: no endpoint configured")
		return nil
	}
	var env events.Envelope
	if err := json.Unmarshal(task.Payload(), &env); err != nil {
		// malformed payloads will never succeed; do not retry
		return fmt.Errorf("notify: decode envelope: %v: %w", err, asynq.SkipRetry)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, bytes.NewReader(task.Payload()))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Topic", env.Topic)
	req.Header.Set("X-Event-ID", env.EventID)

	start := time.Now()
	resp, err := d.doer().Do(ctx, req)
	if err != nil {
		obs.IncWebhookDelivery("error")
		d.Logger.Warn().Err(err).Str("event_id", env.EventID).Msg("webhook delivery attempt failed")
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		obs.IncWebhookDelivery("success")
		d.Logger.Info().
			Str("event_id", env.EventID).
			Str("topic", env.Topic).
			Int("status", resp.StatusCode).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("webhook delivered")
		return nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		// the receiver rejected the payload; retrying cannot help
		obs.IncWebhookDelivery("dropped")
		return fmt.Errorf("notify: endpoint rejected event with %d: %w", resp.StatusCode, asynq.SkipRetry)
	}
	obs.IncWebhookDelivery("retry")
	return errors.New("notify: endpoint returned " + resp.Status)
}

func (d WebhookDeliverer) doer() Doer {
	if d.HTTP != nil {
		return d.HTTP
	}
	return resilience.HTTPClient{Client: http.DefaultClient, MaxAttempts: 1, Timeout: 10 * time.Second}
}
