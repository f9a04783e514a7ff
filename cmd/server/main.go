// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/lobbybot/internal/auth"
	"github.com/jason-s-yu/lobbybot/internal/cache"
	"github.com/jason-s-yu/lobbybot/internal/config"
	"github.com/jason-s-yu/lobbybot/internal/database"
	"github.com/jason-s-yu/lobbybot/internal/discord"
	"github.com/jason-s-yu/lobbybot/internal/handlers"
	"github.com/jason-s-yu/lobbybot/internal/islands"
	"github.com/jason-s-yu/lobbybot/internal/lobby"
	"github.com/jason-s-yu/lobbybot/internal/scheduler"
	"github.com/jason-s-yu/lobbybot/internal/tasks"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

// taskTokenTTL bounds how long a signed callback stays valid.
const taskTokenTTL = 5 * time.Minute

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := config.LoadBotFile(cfg.BotConfigFile)
	if err != nil {
		return err
	}
	lobbyCfg, err := bot.LobbyConfig(cfg.Env)
	if err != nil {
		return err
	}
	publicKey, err := discord.ParsePublicKey(cfg.BotPublicKey)
	if err != nil {
		return err
	}
	signer, err := auth.NewSignerFromSeed(cfg.TaskSigningSeed, taskTokenTTL)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()
	queue := tasks.NewRedisQueue(rdb, cfg.TaskQueueKey)

	chat := discord.NewClient(cfg.BotToken, cfg.BotAppID, logger)
	api := islands.NewAPI(cfg.NiftyAPIBase)
	directory := islands.NewDirectory(api, store, cache.New(rdb, "island:", cfg.IslandCacheTTL), logger)
	indexer := islands.NewIndexer(api, store, logger)

	repo := lobby.NewRepository(store)
	expiry := lobby.NewExpiry(queue, cfg.PublicBaseURL, cfg.LobbyExpiry)
	ctrl := lobby.NewController(repo, chat, directory, expiry, logger, lobbyCfg)
	sweeper := lobby.NewSweeper(chat, ctrl, logger)

	sched := scheduler.New(logger)
	jobs := scheduler.LobbyJobs(sweeper, ctrl, lobbyCfg.LobbyChannels, cfg.StaleLobbyAge, bot.Pinned(), logger)
	jobs = append(jobs, scheduler.IslandJobs(indexer)...)
	for _, job := range jobs {
		if err := sched.Add(job); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()
	go func() {
		if err := sched.RunNow(ctx, scheduler.JobIndexTop); err != nil {
			logger.WithError(err).Warn("initial top island index failed")
		}
	}()

	bs := &handlers.BotServer{
		Controller:    ctrl,
		Chat:          chat,
		Islands:       directory,
		Tasks:         queue,
		Bot:           bot,
		LobbyChannels: lobbyCfg.LobbyChannels,
		BaseURL:       cfg.PublicBaseURL,
		Logger:        logger,
	}
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      bs.Routes(publicKey, signer),
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", server.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore connects to Postgres when configured and falls back to the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (database.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("no database configured, using in-memory store")
		return database.NewMemoryStore(), func() {}, nil
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, nil, err
	}
	store := database.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}
