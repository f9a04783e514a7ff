package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jason-s-yu/lobbybot/internal/discord"
	"github.com/jason-s-yu/lobbybot/internal/lobby"
	"github.com/jason-s-yu/lobbybot/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBotFile = `
environments:
  test:
    lobby_channels: ["a", "b"]
    party_channel: "p"
fill_policy: keep
game_modes:
  ctf:
    type: CTF
    min_players: 4
    max_players: 8
    player_count_step: 2
  zombies:
    type: Zombies
    min_players: 2
    max_players: 3
    player_count_step: 1
    island_choices:
      - name: Zombie Island
        value: z-1
  train:
    type: Visit Train
    min_players: 2
    max_players: 2
    player_count_step: 1
`

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "PG_HOST", "LOBBY_EXPIRY", "REDIS_DB", "PUBLIC_BASE_URL"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, 1200*time.Second, cfg.LobbyExpiry)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, "http://localhost:8080", cfg.PublicBaseURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "pw")
	t.Setenv("PG_PORT", "6543")
	t.Setenv("PG_DATABASE", "lobbies")
	t.Setenv("LOBBY_EXPIRY", "60")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("PUBLIC_BASE_URL", "https://bot.example.com/")

	cfg := Load()
	assert.Equal(t, "postgres://u:pw@db:6543/lobbies", cfg.DatabaseURL)
	assert.Equal(t, time.Minute, cfg.LobbyExpiry)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, "https://bot.example.com", cfg.PublicBaseURL)
}

func TestValidate(t *testing.T) {
	err := (&Config{}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOT_TOKEN")
	assert.Contains(t, err.Error(), "BOT_APP_ID")

	assert.NoError(t, (&Config{BotToken: "t", BotAppID: "a"}).Validate())
}

func TestLoadBotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleBotFile), 0o600))

	f, err := LoadBotFile(path)
	require.NoError(t, err)

	cfg, err := f.LobbyConfig("test")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cfg.LobbyChannels)
	assert.Equal(t, "p", cfg.PartyChannel)
	assert.Equal(t, lobby.FillKeepMessages, cfg.FillPolicy)

	_, err = f.LobbyConfig("prod")
	assert.ErrorIs(t, err, ErrUnknownEnvironment)

	mode, ok := f.Mode("ctf")
	require.True(t, ok)
	assert.Equal(t, models.GameTypeCTF, mode.Type)
	assert.Equal(t, []int{4, 6, 8}, mode.PlayerCounts())
	assert.Equal(t, lobby.PinnedInstructions, f.Pinned())
}

func TestParseBotFileRejectsUnknownGameType(t *testing.T) {
	_, err := ParseBotFile([]byte("game_modes:\n  golf:\n    type: Golf\n    max_players: 2\n"))
	assert.ErrorIs(t, err, models.ErrInvalidGameType)

	_, err = ParseBotFile([]byte("environments: {}\n"))
	assert.ErrorIs(t, err, ErrNoGameModes)
}

func TestCommand(t *testing.T) {
	f, err := ParseBotFile([]byte(sampleBotFile))
	require.NoError(t, err)

	cmd := f.Command()
	assert.Equal(t, "lobby", cmd.Name)
	require.Len(t, cmd.Options, 2)
	assert.Equal(t, GroupSet, cmd.Options[0].Name)

	create := cmd.Options[1]
	assert.Equal(t, discord.OptionSubCommandGroup, create.Type)
	require.Len(t, create.Options, 3)

	byName := map[string]discord.ApplicationOption{}
	for _, o := range create.Options {
		byName[o.Name] = o
	}

	ctf := byName["ctf"]
	assert.Equal(t, "Creates a matchmaking lobby for CTF game mode", ctf.Description)
	require.Len(t, ctf.Options, 2)
	assert.True(t, ctf.Options[0].Autocomplete)
	assert.Len(t, ctf.Options[1].Choices, 3)

	zombies := byName["zombies"]
	assert.False(t, zombies.Options[0].Autocomplete)
	assert.Equal(t, []discord.Choice{{Name: "Zombie Island", Value: "z-1"}}, zombies.Options[0].Choices)

	train := byName["train"]
	require.Len(t, train.Options, 1)
	assert.Equal(t, "players", train.Options[0].Name)
}

func TestNewLogger(t *testing.T) {
	logger := (&Config{Env: "prod", LogLevel: "debug"}).NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger = (&Config{Env: "dev", LogLevel: "loud"}).NewLogger()
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}
