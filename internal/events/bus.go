// Package events persists domain events and hands them to asynchronous
// delivery. Emission is a post-commit side effect: the bus is never called
// inside the fulfillment transaction, and its failures are reported to the
// caller to log, not to roll back on.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/storelane/backoffice/internal/gate"
)

// Store defines the persistence operation required by the bus.
type Store interface {
	InsertDomainEvent(ctx context.Context, id pgtype.UUID, topic string, aggregateID pgtype.UUID, payload []byte) error
}

// Enqueuer schedules asynchronous delivery of an emitted event. *asynq.Client
// satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Bus persists domain events and fans them out for webhook delivery.
type Bus struct {
	Store Store
	Tasks Enqueuer
}

// Envelope is the wire shape queued for delivery.
type Envelope struct {
	EventID     string          `json:"eventId"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
}

// TaskTypeDeliver is the asynq task type the delivery worker consumes.
const TaskTypeDeliver = "events:deliver"

// Emit records the event and schedules its delivery. The event row is written
// through the gate, so ctx must carry the tenant that owns the aggregate.
func (b *Bus) Emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload any) error {
	if b == nil || b.Store == nil {
		return errors.New("events: store not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("events: topic is required")
	}
	if !aggregateID.Valid {
		return errors.New("events: aggregate id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("events: encode payload: %w", err)
	}

	eventID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	if err := b.Store.InsertDomainEvent(ctx, eventID, topic, aggregateID, encoded); err != nil {
		return fmt.Errorf("events: persist event: %w", err)
	}

	if b.Tasks == nil {
		return nil
	}
	envelope, err := json.Marshal(Envelope{
		EventID:     uuid.UUID(eventID.Bytes).String(),
		Topic:       topic,
		AggregateID: uuid.UUID(aggregateID.Bytes).String(),
		Payload:     encoded,
	})
	if err != nil {
		return fmt.Errorf("events: encode envelope: %w", err)
	}
	task := asynq.NewTask(TaskTypeDeliver, envelope)
	if _, err := b.Tasks.EnqueueContext(ctx, task, asynq.MaxRetry(10)); err != nil {
		return fmt.Errorf("events: schedule delivery: %w", err)
	}
	return nil
}

func encodePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// GateStore persists domain events through the data gate.
type GateStore struct {
	G *gate.Gate
}

// InsertDomainEvent writes one event row scoped to the active tenant.
func (s GateStore) InsertDomainEvent(ctx context.Context, id pgtype.UUID, topic string, aggregateID pgtype.UUID, payload []byte) error {
	return s.G.Insert(ctx, gate.KindDomainEvents, gate.Values{
		"id":           id,
		"topic":        topic,
		"aggregate_id": aggregateID,
		"payload":      payload,
	})
}
