package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ContextEventType identifies what happened to a business context.
type ContextEventType string

const (
	ContextEventType_Extracted ContextEventType = "business_context.extracted"
	ContextEventType_Enriched  ContextEventType = "business_context.enriched"
)

// ContextEvent is recorded in the outbox when a business context is created
// or updated, and later relayed to the event bus.
type ContextEvent struct {
	Type       ContextEventType `json:"type"`
	BusinessID string           `json:"business_id"`
	CreatedAt  time.Time        `json:"created_at"`
}

// OutboxEvent is a pending event row awaiting relay.
type OutboxEvent struct {
	ID         uuid.UUID
	EntityType string
	EntityID   string
	Topic      string
	EventType  string
	Payload    []byte
	RetryCount int
	MaxRetries int
	LastError  *string
	CreatedAt  time.Time
}

// ContextEventPublisher publishes outbox events to the event bus.
type ContextEventPublisher interface {
	PublishEvent(ctx context.Context, event OutboxEvent) error
}

// OutboxRepository persists and drains pending outbox events.
type OutboxRepository interface {
	RecordEvent(ctx context.Context, event ContextEvent) error
	FetchPendingEvents(ctx context.Context, limit int) ([]OutboxEvent, error)
	UpdateEvent(ctx context.Context, eventID uuid.UUID, status string, retryCount int, lastError string) error
	DeleteEvent(ctx context.Context, eventID uuid.UUID) error
}
