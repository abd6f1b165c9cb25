package server

import (
	"context"
	"net/http"
	"time"

	"settlement-service/internal/config"
	hrest "settlement-service/internal/handler/rest"
	"settlement-service/internal/pub"
	"settlement-service/internal/queue"
	"settlement-service/internal/repository"
	"settlement-service/internal/service"
	"settlement-service/internal/usecase"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run wires the service and blocks until ctx is cancelled or the HTTP
// server fails.
func Run(ctx context.Context, cfg config.AppConfig, log *zap.Logger) error {
	// --- DB connection ---
	dbpool, err := config.ConnectDB(log)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	// --- Redis client ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})
	defer rdb.Close()

	// --- Repositories ---
	accountRepo := repository.NewAccountRepo(dbpool)
	entryRepo := repository.NewEntryRepo(dbpool)
	balanceRepo := repository.NewBalanceRepo(dbpool)
	transactionRepo := repository.NewTransactionRepo(dbpool, entryRepo, balanceRepo)
	statementRepo := repository.NewStatementRepo(dbpool, cfg.Currency)

	// --- System bootstrap ---
	// The settlement engine cannot run without its counter-party
	// account, so seeding blocks startup and failure is fatal.
	seeder := service.NewSystemSeeder(accountRepo, log)
	systemAccount, err := seeder.SeedSystem(ctx)
	if err != nil {
		return err
	}

	// --- Usecases ---
	accountUC := usecase.NewAccountUsecase(accountRepo, balanceRepo, entryRepo, rdb, cfg.Currency)
	publisher := pub.NewTransferEventPublisher(rdb)
	notifier := usecase.NewEventNotifier(publisher, log)

	settlementUC, err := usecase.NewSettlementUsecase(accountRepo, transactionRepo, notifier, systemAccount, log)
	if err != nil {
		return err
	}

	// --- Task queue ---
	dispatcher := queue.NewKafkaDispatcher(cfg.KafkaBrokers, log)
	defer dispatcher.Close()

	worker := queue.NewSettlementWorker(cfg.KafkaBrokers, settlementUC, log)
	go func() {
		if err := worker.Run(ctx); err != nil {
			log.Error("settlement worker stopped", zap.Error(err))
		}
	}()

	// --- HTTP surface ---
	handler := hrest.NewSettlementRestHandler(dispatcher, accountUC, transactionRepo, statementRepo, log)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("settlement service listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
