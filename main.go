package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sharelink/config"
	"sharelink/internal/handler"
	"sharelink/internal/mq"
	"sharelink/internal/repo"
	"sharelink/internal/service"
	"sharelink/internal/storage"
	"sharelink/internal/task"
	"sharelink/router"
	"sharelink/utils"

	"go.uber.org/zap"
)

func buildLinkStore(ctx context.Context, cfg *config.Config) (repo.LinkStore, error) {
	switch cfg.LinkStore {
	case config.LinkStoreDynamoDB:
		client, err := repo.InitDynamo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return repo.NewDynamoLinkStore(client, cfg.DynamoTable, cfg.DynamoOwnerIndex), nil
	case config.LinkStoreMySQL:
		db, err := repo.InitMysql(cfg)
		if err != nil {
			return nil, err
		}
		return repo.NewGormLinkStore(db), nil
	}
	return nil, fmt.Errorf("unknown link store %q", cfg.LinkStore)
}

func buildVerifier(cfg *config.Config) (utils.IdentityVerifier, func(), error) {
	if cfg.JWKSURL != "" {
		v, err := utils.NewJWKSVerifier(cfg.JWKSURL, &http.Client{Timeout: 10 * time.Second})
		if err != nil {
			return nil, nil, err
		}
		return v, v.Close, nil
	}
	return utils.NewHMACVerifier(cfg.JWTSecret), func() {}, nil
}

// buildCleaner queues orphan cleanup on RabbitMQ when enabled and removes blobs inline otherwise.
func buildCleaner(cfg *config.Config, blobs storage.Store) (service.BlobCleaner, func()) {
	if !cfg.CleanupQueueEnabled {
		return service.NewInlineCleaner(blobs), func() {}
	}
	publisher := mq.NewPublisher(cfg.RabbitMQURL)
	return task.NewQueueCleaner(publisher, blobs), publisher.Close
}

// main initializes services and starts the HTTP server.
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

	links, err := buildLinkStore(ctx, cfg)
	if err != nil {
		utils.Log.Fatal("init link store failed", zap.Error(err))
	}
	blobs, err := storage.InitMinio(ctx, cfg.Blob)
	if err != nil {
		utils.Log.Fatal("init minio failed", zap.Error(err))
	}

	var cache utils.Cache
	if rdb, err := repo.InitRedis(ctx, cfg); err != nil {
		utils.Log.Warn("redis unavailable, link cache disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		cache = utils.NewRedisCache(rdb)
	}

	cleaner, closeCleaner := buildCleaner(cfg, blobs)
	defer closeCleaner()
	verifier, closeVerifier, err := buildVerifier(cfg)
	if err != nil {
		utils.Log.Fatal("init identity verifier failed", zap.Error(err))
	}
	defer closeVerifier()

	registry := service.NewLinkRegistry(links, cache, cfg.LinkCacheTTL)
	svc := service.NewShareService(cfg, registry, blobs, cleaner)
	h := handler.NewShareHandler(cfg, svc, utils.NewQRRenderer())

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router.InitRouter(h, verifier),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	utils.Log.Info("sharelink api listening", zap.String("addr", cfg.HTTPAddr), zap.String("link_store", cfg.LinkStore))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.Log.Fatal("http server stopped", zap.Error(err))
	}
}
