package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sharelink/config"
	"sharelink/internal/storage"
	"sharelink/internal/worker"
	"sharelink/utils"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := utils.InitLogger(cfg.LogLevel, cfg.LogProduction); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer utils.SyncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blobs, err := storage.InitMinio(ctx, cfg.Blob)
	if err != nil {
		utils.Log.Fatal("init minio failed", zap.Error(err))
	}
	if err := worker.RunCleanupWorker(ctx, cfg, blobs); err != nil {
		utils.Log.Fatal("cleanup worker stopped", zap.Error(err))
	}
}
