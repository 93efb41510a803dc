package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/storelane/backoffice/internal/events"
	"github.com/storelane/backoffice/internal/notify"
)

func envelopeTask(t *testing.T) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(events.Envelope{
		EventID:     "ev-1",
		Topic:       events.TopicOrderCreated,
		AggregateID: "ord-1",
		Payload:     json.RawMessage(`{"total":6597}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	return asynq.NewTask(events.TaskTypeDeliver, payload)
}

func TestDeliverySuccess(t *testing.T) {
	var gotTopic atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTopic.Store(r.Header.Get("X-Event-Topic"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := notify.WebhookDeliverer{Endpoint: srv.URL, Logger: zerolog.Nop()}
	if err := d.ProcessTask(context.Background(), envelopeTask(t)); err != nil {
		t.Fatalf("delivery failed: %v", err)
	}
	if gotTopic.Load() != events.TopicOrderCreated {
		t.Fatalf("topic header = %v", gotTopic.Load())
	}
}

func TestDeliveryRetriesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := notify.WebhookDeliverer{Endpoint: srv.URL, Logger: zerolog.Nop()}
	err := d.ProcessTask(context.Background(), envelopeTask(t))
	if err == nil {
		t.Fatal("expected retryable error")
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Fatal("server errors must stay retryable")
	}
}

func TestDeliveryDropsOnClientRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	d := notify.WebhookDeliverer{Endpoint: srv.URL, Logger: zerolog.Nop()}
	err := d.ProcessTask(context.Background(), envelopeTask(t))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestDeliveryNoEndpointIsNoop(t *testing.T) {
	d := notify.WebhookDeliverer{Logger: zerolog.Nop()}
	if err := d.ProcessTask(context.Background(), envelopeTask(t)); err != nil {
		t.Fatalf("expected noop, got %v", err)
	}
}

func TestDeliveryMalformedPayloadNotRetried(t *testing.T) {
	d := notify.WebhookDeliverer{Endpoint: "http://127.0.0.1:1", Logger: zerolog.Nop()}
	err := d.ProcessTask(context.Background(), asynq.NewTask(events.TaskTypeDeliver, []byte("{broken")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}
