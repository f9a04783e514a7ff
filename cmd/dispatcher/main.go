// cmd/dispatcher/main.go runs the delayed task worker: it pops due tasks from
// the Redis queue and delivers each as a signed callback to the bot server.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/lobbybot/internal/auth"
	"github.com/jason-s-yu/lobbybot/internal/cache"
	"github.com/jason-s-yu/lobbybot/internal/config"
	"github.com/jason-s-yu/lobbybot/internal/tasks"
	_ "github.com/joho/godotenv/autoload"
)

const (
	taskTokenTTL = 5 * time.Minute
	claimBatch   = 50
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	signer, err := auth.NewSignerFromSeed(cfg.TaskSigningSeed, taskTokenTTL)
	if err != nil {
		logger.WithError(err).Fatal("failed to init task signer")
	}
	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer rdb.Close()

	worker := tasks.NewWorker(tasks.NewRedisQueue(rdb, cfg.TaskQueueKey), signer, logger, cfg.TaskPollEvery, claimBatch)
	logger.WithField("queue", cfg.TaskQueueKey).Info("dispatcher started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("dispatcher stopped")
	}
}
