// internal/config/botfile.go
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/jason-s-yu/lobbybot/internal/discord"
	"github.com/jason-s-yu/lobbybot/internal/lobby"
	"github.com/jason-s-yu/lobbybot/internal/models"
	"gopkg.in/yaml.v3"
)

// CommandName is the top-level slash command.
const CommandName = "lobby"

// Subcommand groups under /lobby.
const (
	GroupCreate = "create"
	GroupSet    = "set"
)

// IslandChoice is a fixed island offered instead of autocomplete.
type IslandChoice struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// GameMode maps one /lobby create subcommand to a game type.
type GameMode struct {
	Type            models.GameType `yaml:"type"`
	MinPlayers      int             `yaml:"min_players"`
	MaxPlayers      int             `yaml:"max_players"`
	PlayerCountStep int             `yaml:"player_count_step"`
	IslandChoices   []IslandChoice  `yaml:"island_choices,omitempty"`
}

// TakesIsland is false for modes that visit every member's own island.
func (m GameMode) TakesIsland() bool {
	return !m.Type.RequiresPlayerIsland()
}

// PlayerCounts lists the selectable thresholds.
func (m GameMode) PlayerCounts() []int {
	step := m.PlayerCountStep
	if step <= 0 {
		step = 1
	}
	var out []int
	for n := m.MinPlayers; n <= m.MaxPlayers; n += step {
		out = append(out, n)
	}
	return out
}

// Environment lists the channels used in one deployment.
type Environment struct {
	LobbyChannels []string `yaml:"lobby_channels"`
	PartyChannel  string   `yaml:"party_channel"`
}

// BotFile is the YAML file describing channels and game modes.
type BotFile struct {
	Environments map[string]Environment `yaml:"environments"`
	GameModes    map[string]GameMode    `yaml:"game_modes"`
	// FillPolicy is "delete" (default) or "keep".
	FillPolicy    string `yaml:"fill_policy,omitempty"`
	PinnedMessage string `yaml:"pinned_message,omitempty"`
}

var (
	ErrUnknownEnvironment = errors.New("environment not configured")
	ErrNoGameModes        = errors.New("no game modes configured")
)

// LoadBotFile reads and validates the bot file at path.
func LoadBotFile(path string) (*BotFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bot file: %w", err)
	}
	return ParseBotFile(data)
}

// ParseBotFile decodes and validates bot file contents.
func ParseBotFile(data []byte) (*BotFile, error) {
	var f BotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse bot file: %w", err)
	}
	if len(f.GameModes) == 0 {
		return nil, ErrNoGameModes
	}
	for name, mode := range f.GameModes {
		if !mode.Type.Valid() {
			return nil, fmt.Errorf("game mode %q: %w", name, &models.ValidationError{Field: "type", Err: models.ErrInvalidGameType})
		}
		if mode.MinPlayers < 0 || mode.MaxPlayers < mode.MinPlayers {
			return nil, fmt.Errorf("game mode %q: %w", name, &models.ValidationError{Field: "min_players", Err: models.ErrInvalidMinPlayers})
		}
	}
	switch f.FillPolicy {
	case "", "delete", "keep":
	default:
		return nil, fmt.Errorf("unknown fill_policy %q", f.FillPolicy)
	}
	return &f, nil
}

// Environment returns the channels configured for env.
func (f *BotFile) Environment(env string) (Environment, error) {
	e, ok := f.Environments[env]
	if !ok {
		return Environment{}, fmt.Errorf("%w: %s", ErrUnknownEnvironment, env)
	}
	return e, nil
}

// Mode looks up a create subcommand.
func (f *BotFile) Mode(subcommand string) (GameMode, bool) {
	m, ok := f.GameModes[subcommand]
	return m, ok
}

// LobbyConfig builds the controller configuration for env.
func (f *BotFile) LobbyConfig(env string) (lobby.Config, error) {
	e, err := f.Environment(env)
	if err != nil {
		return lobby.Config{}, err
	}
	cfg := lobby.Config{
		LobbyChannels: e.LobbyChannels,
		PartyChannel:  e.PartyChannel,
		FillPolicy:    lobby.FillDeleteMessages,
	}
	if f.FillPolicy == "keep" {
		cfg.FillPolicy = lobby.FillKeepMessages
	}
	return cfg, nil
}

// Pinned returns the pinned instructions, falling back to the built-in text.
func (f *BotFile) Pinned() string {
	if f.PinnedMessage != "" {
		return f.PinnedMessage
	}
	return lobby.PinnedInstructions
}

// Command builds the /lobby slash command definition.
func (f *BotFile) Command() discord.ApplicationCommand {
	set := discord.ApplicationOption{
		Type:        discord.OptionSubCommandGroup,
		Name:        GroupSet,
		Description: "Set your player details",
		Options: []discord.ApplicationOption{
			{
				Type:        discord.OptionSubCommand,
				Name:        "username",
				Description: "Set your in-game username",
				Options: []discord.ApplicationOption{{
					Type:        discord.OptionString,
					Name:        "username",
					Description: "Your in-game username",
					Required:    true,
				}},
			},
			{
				Type:        discord.OptionSubCommand,
				Name:        "island",
				Description: "Set your own island",
				Options: []discord.ApplicationOption{{
					Type:         discord.OptionString,
					Name:         "island",
					Description:  "Your island",
					Required:     true,
					Autocomplete: true,
				}},
			},
		},
	}

	create := discord.ApplicationOption{
		Type:        discord.OptionSubCommandGroup,
		Name:        GroupCreate,
		Description: "Create a new lobby",
	}
	names := make([]string, 0, len(f.GameModes))
	for name := range f.GameModes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		create.Options = append(create.Options, subcommand(name, f.GameModes[name]))
	}

	return discord.ApplicationCommand{
		Name:        CommandName,
		Description: "Main command to summon LobbyBot",
		Type:        1,
		Options:     []discord.ApplicationOption{set, create},
	}
}

func subcommand(name string, mode GameMode) discord.ApplicationOption {
	sub := discord.ApplicationOption{
		Type:        discord.OptionSubCommand,
		Name:        name,
		Description: fmt.Sprintf("Creates a matchmaking lobby for %s game mode", mode.Type),
	}
	if mode.TakesIsland() {
		island := discord.ApplicationOption{
			Type:        discord.OptionString,
			Name:        "island",
			Description: "The name of island where the game will be hosted",
			Required:    true,
		}
		if len(mode.IslandChoices) > 0 {
			for _, c := range mode.IslandChoices {
				island.Choices = append(island.Choices, discord.Choice{Name: c.Name, Value: c.Value})
			}
		} else {
			island.Autocomplete = true
		}
		sub.Options = append(sub.Options, island)
	}

	players := discord.ApplicationOption{
		Type:        discord.OptionInteger,
		Name:        "players",
		Description: "Amount of players. Lobby will auto-close after this threshold is met",
		Required:    true,
	}
	for _, n := range mode.PlayerCounts() {
		players.Choices = append(players.Choices, discord.Choice{Name: fmt.Sprint(n), Value: n})
	}
	sub.Options = append(sub.Options, players)
	return sub
}
