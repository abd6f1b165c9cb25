package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"settlement-service/internal/usecase"
	"settlement-service/internal/xerrors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	SettlementGroupID = "settlement-workers"

	// fetchBackoff throttles the consume loop when the broker is
	// unreachable, so a long outage does not spin a hot log loop.
	fetchBackoff = 2 * time.Second
)

// Settler is the settlement engine surface the worker drives.
type Settler interface {
	SettlePending(ctx context.Context, accountID int64) (*usecase.SettlementReport, error)
}

// taskSource is the consumer surface of *kafka.Reader.
type taskSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SettlementWorker consumes settlement tasks from Kafka and runs the
// settlement engine. Offsets are committed only after a task is fully
// handled, so a crashed worker redelivers — which the engine's
// idempotency guard makes safe.
type SettlementWorker struct {
	reader  taskSource
	settler Settler
	backoff time.Duration
	log     *zap.Logger
}

func NewSettlementWorker(brokers []string, settler Settler, log *zap.Logger) *SettlementWorker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   SettlementTopic,
		GroupID: SettlementGroupID,
	})
	return &SettlementWorker{reader: reader, settler: settler, backoff: fetchBackoff, log: log}
}

// Run blocks until ctx is cancelled.
func (w *SettlementWorker) Run(ctx context.Context) error {
	defer w.reader.Close()

	for {
		m, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			w.log.Error("kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.backoff):
			}
			continue
		}

		if commit := w.handleTask(ctx, m.Value); !commit {
			// Leave the offset uncommitted; the task is redelivered.
			continue
		}

		if err := w.reader.CommitMessages(ctx, m); err != nil {
			w.log.Error("kafka commit failed", zap.Error(err))
		}
	}
}

// handleTask runs one settlement task and reports whether its offset
// should be committed. Transient failures return false so the transport
// redelivers; permanent ones return true with an error logged.
func (w *SettlementWorker) handleTask(ctx context.Context, value []byte) bool {
	var task SettlementTask
	if err := json.Unmarshal(value, &task); err != nil {
		// Poison message; redelivery cannot fix it.
		w.log.Error("malformed settlement task dropped", zap.Error(err))
		return true
	}

	report, err := w.settler.SettlePending(ctx, task.AccountID)
	switch {
	case errors.Is(err, xerrors.ErrNotFound), errors.Is(err, xerrors.ErrAccountNoOwnerEmail):
		// The account cannot be settled as addressed. Retrying the same
		// task cannot change that; transactions stay pending for a
		// future trigger or manual intervention.
		w.log.Error("settlement task not retryable",
			zap.Int64("account_id", task.AccountID), zap.Error(err))
		return true
	case errors.Is(err, xerrors.ErrSystemAccountMissing):
		// Configuration fatal. Needs an operator, not a redelivery loop.
		w.log.Error("settlement halted: system assets account missing",
			zap.Int64("account_id", task.AccountID))
		return true
	case err != nil:
		w.log.Warn("settlement task failed, will redeliver",
			zap.Int64("account_id", task.AccountID), zap.Error(err))
		return false
	}

	if report.Failed > 0 {
		// Some units rolled back on transient errors; redeliver so the
		// idempotent engine picks up only the stragglers.
		w.log.Warn("settlement run left failed units, will redeliver",
			zap.Int64("account_id", task.AccountID), zap.Int("failed", report.Failed))
		return false
	}

	return true
}
