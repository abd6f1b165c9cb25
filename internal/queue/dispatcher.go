package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	// SettlementTopic carries settlement tasks. Delivery is at-least-once;
	// the settlement engine's idempotency guard makes redelivery safe.
	SettlementTopic = "settlement.tasks"

	enqueueTimeout = 5 * time.Second
)

// SettlementTask asks a worker to settle all pending inbound transfers
// for one account.
type SettlementTask struct {
	AccountID  int64     `json:"account_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// TaskDispatcher schedules settlement off the request path.
type TaskDispatcher interface {
	EnqueueSettlement(ctx context.Context, accountID int64) error
	Close() error
}

// KafkaDispatcher writes settlement tasks to Kafka. Keyed by account id
// so repeated triggers for one account land on one partition.
type KafkaDispatcher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaDispatcher(brokers []string, log *zap.Logger) *KafkaDispatcher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        SettlementTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaDispatcher{writer: writer, log: log}
}

// EnqueueSettlement publishes a settlement task. Failures are operational
// errors: callers log them and never surface them to the end user.
func (d *KafkaDispatcher) EnqueueSettlement(ctx context.Context, accountID int64) error {
	task := SettlementTask{AccountID: accountID, EnqueuedAt: time.Now()}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal settlement task: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()

	err = d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(accountID, 10)),
		Value: payload,
	})
	if err != nil {
		d.log.Error("failed to enqueue settlement task",
			zap.Int64("account_id", accountID), zap.Error(err))
		return fmt.Errorf("failed to enqueue settlement task: %w", err)
	}

	d.log.Info("settlement task enqueued", zap.Int64("account_id", accountID))
	return nil
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
