// cmd/commands/main.go registers the /lobby slash command built from bot.yaml.
package main

import (
	"context"
	"time"

	"github.com/jason-s-yu/lobbybot/internal/config"
	"github.com/jason-s-yu/lobbybot/internal/discord"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	bot, err := config.LoadBotFile(cfg.BotConfigFile)
	if err != nil {
		logger.WithError(err).Fatal("failed to load bot file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := bot.Command()
	client := discord.NewClient(cfg.BotToken, cfg.BotAppID, logger)
	if err := client.RegisterCommand(ctx, cmd); err != nil {
		logger.WithError(err).Fatal("failed to register command")
	}
	logger.WithField("command", cmd.Name).Info("command registered")
}
