package pub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"settlement-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	TransferEventsChannel = "transfer_events"
)

// TransferEventPublisher pushes transfer lifecycle events onto Redis
// pub/sub for the notification pipeline to consume.
type TransferEventPublisher struct {
	rdb *redis.Client
}

func NewTransferEventPublisher(rdb *redis.Client) *TransferEventPublisher {
	return &TransferEventPublisher{rdb: rdb}
}

type TransferEvent struct {
	EventType string    `json:"event_type"` // transfer.completed
	Direction string    `json:"direction"`  // sent | received
	AccountID int64     `json:"account_id"`
	Reference string    `json:"reference"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishTransferEvent publishes a transfer event to Redis
func (p *TransferEventPublisher) PublishTransferEvent(ctx context.Context, event *TransferEvent) error {
	event.Timestamp = time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.rdb.Publish(ctx, TransferEventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// PublishTransferReceived notifies the destination owner that a pending
// transfer addressed to them has settled.
func (p *TransferEventPublisher) PublishTransferReceived(ctx context.Context, t *domain.Transaction, accountID int64) error {
	return p.PublishTransferEvent(ctx, &TransferEvent{
		EventType: "transfer.completed",
		Direction: "received",
		AccountID: accountID,
		Reference: t.Reference,
		Amount:    t.Amount,
		Currency:  t.Currency,
	})
}

// PublishTransferSent notifies the source owner that their pending
// transfer was delivered.
func (p *TransferEventPublisher) PublishTransferSent(ctx context.Context, t *domain.Transaction, accountID int64) error {
	return p.PublishTransferEvent(ctx, &TransferEvent{
		EventType: "transfer.completed",
		Direction: "sent",
		AccountID: accountID,
		Reference: t.Reference,
		Amount:    t.Amount,
		Currency:  t.Currency,
	})
}
