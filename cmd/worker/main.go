package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"adsmith/internal/broadcast"
	"adsmith/internal/config"
	"adsmith/internal/database"
	"adsmith/internal/fetcher"
	"adsmith/internal/genai"
	"adsmith/internal/metrics"
	"adsmith/internal/storage"
	"adsmith/internal/tasks"
	"adsmith/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	openaiClient := genai.NewOpenAIClient(cfg.OpenAI.APIKey, genai.Options{
		Organization: cfg.OpenAI.Organization,
		BaseURL:      cfg.OpenAI.BaseURL,
		TextModel:    cfg.OpenAI.TextModel,
		ImageModel:   cfg.OpenAI.ImageModel,
	})

	broadcaster := broadcast.NewBroadcaster(redisClient, logger)
	imageFetcher := fetcher.NewClient()

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	generateHandler := worker.NewGenerateHandler(db, storageClient, imageFetcher, openaiClient, openaiClient, broadcaster, redisClient, logger)
	regenerateHandler := worker.NewRegenerateHandler(db, storageClient, imageFetcher, openaiClient, broadcaster, redisClient, logger)
	compositeHandler := worker.NewCompositeHandler(db, storageClient, broadcaster, redisClient, logger)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeAdGenerate, generateHandler)
	mux.Handle(tasks.TypeBackgroundRegenerate, regenerateHandler)
	mux.Handle(tasks.TypeAdComposite, compositeHandler)

	logger.Info("worker service started", slog.String("redis_addr", cfg.Redis.Addr()))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
