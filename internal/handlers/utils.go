package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"slices"

	"github.com/jason-s-yu/lobbybot/internal/discord"
	"github.com/sirupsen/logrus"
)

// Thread channel types.
const (
	channelAnnouncementThread = 10
	channelPublicThread       = 11
	channelPrivateThread      = 12
)

// EphemeralPayload is the body of the delete-ephemeral callback.
type EphemeralPayload struct {
	Token     string `json:"token"`
	MessageID string `json:"message_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, dest any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dest)
}

func isThread(in *discord.Interaction) bool {
	if in.Channel == nil {
		return false
	}
	return slices.Contains([]int{channelAnnouncementThread, channelPublicThread, channelPrivateThread}, in.Channel.Type)
}

// replyEphemeral sends an ephemeral followup and schedules its deletion.
// Failures are logged; the interaction is already acknowledged.
func (s *BotServer) replyEphemeral(ctx context.Context, in *discord.Interaction, content string, log *logrus.Entry) {
	msg, err := s.Chat.Followup(ctx, in.Token, discord.MessagePayload{Content: content, Flags: discord.FlagEphemeral})
	if err != nil {
		log.WithError(err).Warn("failed to send ephemeral reply")
		return
	}
	payload := EphemeralPayload{Token: in.Token, MessageID: msg.ID}
	if _, err := s.Tasks.Schedule(ctx, s.BaseURL+DeleteEphemeralPath, payload, EphemeralTTL); err != nil {
		log.WithError(err).Warn("failed to schedule ephemeral cleanup")
	}
}
