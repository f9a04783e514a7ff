// internal/handlers/tasks.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/jason-s-yu/lobbybot/internal/discord"
	"github.com/jason-s-yu/lobbybot/internal/lobby"
	"github.com/sirupsen/logrus"
)

// ExpiryChecker closes a lobby when its expiry callback arrives.
type ExpiryChecker interface {
	CheckExpiry(ctx context.Context, lobbyID string, onlyIfOpen bool) (bool, error)
}

// MessageDeleter removes channel messages.
type MessageDeleter interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// WebhookMessageDeleter removes interaction responses and followups.
type WebhookMessageDeleter interface {
	DeleteWebhookMessage(ctx context.Context, token, messageID string) error
}

// CloseLobbyTaskHandler handles the delayed expiry callback.
func CloseLobbyTaskHandler(c ExpiryChecker, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p lobby.ExpiryPayload
		if err := decodeJSON(r, &p); err != nil || p.LobbyID == "" {
			http.Error(w, "Problem parsing input", http.StatusBadRequest)
			return
		}
		log := logger.WithField("lobby_id", p.LobbyID)

		closed, err := c.CheckExpiry(r.Context(), p.LobbyID, p.OnlyIfOpen)
		switch {
		case errors.Is(err, lobby.ErrLobbyNotFound):
			log.Warn("expiry for unknown lobby")
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		case err != nil:
			log.WithError(err).Error("expiry close failed")
			http.Error(w, "close failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"closed": closed})
	}
}

// DeleteMessageTaskHandler deletes one channel message. A message that is
// already gone counts as deleted.
func DeleteMessageTaskHandler(d MessageDeleter, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p lobby.DeleteMessagePayload
		if err := decodeJSON(r, &p); err != nil || p.ChannelID == "" || p.MessageID == "" {
			http.Error(w, "Problem parsing input", http.StatusBadRequest)
			return
		}
		err := d.DeleteMessage(r.Context(), p.ChannelID, p.MessageID)
		if err != nil && !errors.Is(err, discord.ErrUnknownMessage) {
			logger.WithError(err).WithFields(logrus.Fields{
				"channel_id": p.ChannelID,
				"message_id": p.MessageID,
			}).Error("delayed delete failed")
			http.Error(w, "delete failed", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// DeleteEphemeralTaskHandler deletes an ephemeral interaction reply, or the
// original response when no message id is given.
func DeleteEphemeralTaskHandler(d WebhookMessageDeleter, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p EphemeralPayload
		if err := decodeJSON(r, &p); err != nil || p.Token == "" {
			http.Error(w, "Problem parsing input", http.StatusBadRequest)
			return
		}
		err := d.DeleteWebhookMessage(r.Context(), p.Token, p.MessageID)
		if err != nil && !errors.Is(err, discord.ErrUnknownMessage) {
			logger.WithError(err).WithField("message_id", p.MessageID).Error("ephemeral delete failed")
			http.Error(w, "delete failed", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
