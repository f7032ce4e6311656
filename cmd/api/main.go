package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"arbiter/core"
)

func main() {
	cfg, err := core.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("failed to parse configuration: %v", err)
	}

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	var rankCache *core.RankCache
	if redisClient, err := core.NewRedisClient(cfg.RedisURL); err != nil {
		log.Printf("ranking cache disabled, redis unavailable: %v", err)
	} else {
		defer redisClient.Close()
		rankCache = core.NewRankCache(redisClient, 5*time.Second)
	}

	if abs, err := filepath.Abs(cfg.WorkRoot); err == nil {
		cfg.WorkRoot = abs
	}
	if err := os.MkdirAll(cfg.WorkRoot, 0o755); err != nil {
		log.Fatalf("failed to ensure workroot %s: %v", cfg.WorkRoot, err)
	}

	mirror := core.NewMirror(db)
	if err := mirror.Boot(ctx, cfg.FlushData); err != nil {
		log.Fatalf("failed to boot persistence mirror: %v", err)
	}

	progress := make(chan core.Job, 32)
	runner := core.NewRunnerClient(cfg.RunnerPath)
	pool := core.NewWorkerPool(cfg, runner, progress)
	producer := core.NewProducer(mirror, pool, cfg.WorkerConcurrency)
	consumer := core.NewConsumer(mirror, progress, rankCache)

	go producer.Run(ctx)
	go consumer.Run(ctx)

	router := core.NewRouter(cfg, mirror, rankCache)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
