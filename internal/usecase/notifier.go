package usecase

import (
	"context"
	"time"

	"settlement-service/internal/domain"
	"settlement-service/internal/pub"

	"go.uber.org/zap"
)

const notifyTimeout = 5 * time.Second

// EventNotifier publishes transfer-completed events for both sides of a
// settled transaction. Failures are logged and swallowed; settlement
// correctness never depends on notification delivery.
type EventNotifier struct {
	publisher *pub.TransferEventPublisher
	log       *zap.Logger
}

func NewEventNotifier(publisher *pub.TransferEventPublisher, log *zap.Logger) *EventNotifier {
	return &EventNotifier{publisher: publisher, log: log}
}

func (n *EventNotifier) TransferCompleted(_ context.Context, s *domain.Settlement) {
	// Detached from the caller's context: a settled unit is already
	// committed, notification runs on its own clock.
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	destID, _ := s.Transaction.Destination.AccountID()

	if err := n.publisher.PublishTransferReceived(ctx, s.Transaction, destID); err != nil {
		n.log.Warn("failed to publish received-transfer event",
			zap.String("reference", s.Transaction.Reference), zap.Error(err))
	}

	if err := n.publisher.PublishTransferSent(ctx, s.Transaction, s.Transaction.SourceAccountID); err != nil {
		n.log.Warn("failed to publish sent-transfer event",
			zap.String("reference", s.Transaction.Reference), zap.Error(err))
	}
}
