package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"settlement-service/internal/config"
	"settlement-service/internal/server"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env (optional)
	if err := godotenv.Load(); err != nil {
		log.Println("settlement: no .env file found, relying on system env vars")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, logger); err != nil && err != http.ErrServerClosed {
		logger.Fatal("settlement service failed", zap.Error(err))
	}

	logger.Info("settlement service shut down")
}
