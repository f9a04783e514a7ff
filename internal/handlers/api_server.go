// internal/handlers/api_server.go
package handlers

import (
	"context"
	"crypto/ed25519"
	"net/http"
	"time"

	"github.com/jason-s-yu/lobbybot/internal/config"
	"github.com/jason-s-yu/lobbybot/internal/discord"
	"github.com/jason-s-yu/lobbybot/internal/lobby"
	"github.com/jason-s-yu/lobbybot/internal/middleware"
	"github.com/jason-s-yu/lobbybot/internal/models"
	"github.com/jason-s-yu/lobbybot/internal/tasks"
	"github.com/sirupsen/logrus"
)

// DeleteEphemeralPath is the callback route that removes ephemeral replies.
const DeleteEphemeralPath = "/tasks/delete-ephemeral"

// EphemeralTTL is how long ephemeral replies stay up before the dispatcher
// deletes them.
const EphemeralTTL = 20 * time.Second

// Chat is the chat transport surface the webhook handlers use.
type Chat interface {
	Defer(ctx context.Context, in *discord.Interaction, ephemeral bool) error
	DeferUpdate(ctx context.Context, in *discord.Interaction) error
	Autocomplete(ctx context.Context, in *discord.Interaction, choices []discord.Choice) error
	OriginalMessageID(ctx context.Context, token string) (string, error)
	Followup(ctx context.Context, token string, payload discord.MessagePayload) (*discord.Message, error)
	DeleteWebhookMessage(ctx context.Context, token, messageID string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Islands answers island lookups and autocomplete searches.
type Islands interface {
	Resolve(ctx context.Context, id string) (*models.Island, error)
	Search(ctx context.Context, query string) ([]models.Island, error)
	Top(ctx context.Context) ([]models.Island, error)
}

// BotServer holds the collaborators shared by every webhook and task handler.
type BotServer struct {
	Controller *lobby.Controller
	Chat       Chat
	Islands    Islands
	Tasks      tasks.Dispatcher
	Bot        *config.BotFile
	// LobbyChannels are the only channels commands are accepted in.
	LobbyChannels []string
	// BaseURL is the public root task callbacks are delivered to.
	BaseURL string
	Logger  *logrus.Logger
}

// Routes builds the HTTP surface: the signed interaction webhook, the
// token-protected task callbacks and a health probe.
func (s *BotServer) Routes(publicKey ed25519.PublicKey, verifier middleware.TokenVerifier) http.Handler {
	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(s.Logger)
	signed := middleware.VerifyInteraction(publicKey, s.Logger)
	task := middleware.RequireTaskToken(verifier)

	mux.Handle("POST /interactions", logged(signed(InteractionsHandler(s))))
	mux.Handle("POST "+lobby.CloseLobbyPath, logged(task(CloseLobbyTaskHandler(s.Controller, s.Logger))))
	mux.Handle("POST "+lobby.DeleteMessagePath, logged(task(DeleteMessageTaskHandler(s.Chat, s.Logger))))
	mux.Handle("POST "+DeleteEphemeralPath, logged(task(DeleteEphemeralTaskHandler(s.Chat, s.Logger))))
	mux.HandleFunc("GET /healthz", HealthHandler)
	return mux
}

// HealthHandler reports liveness.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
