// internal/lobby/expiry.go
package lobby

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jason-s-yu/lobbybot/internal/tasks"
)

// DefaultExpiry is how long a lobby may stay open after creation.
const DefaultExpiry = 1200 * time.Second

// CloseLobbyPath is the callback route the expiry task is delivered to.
const CloseLobbyPath = "/tasks/close-lobby"

// DeleteMessagePath is the callback route for delayed message deletes.
const DeleteMessagePath = "/tasks/delete-message"

// retryDeleteDelay is how long a failed message delete waits before its retry.
const retryDeleteDelay = time.Minute

// DeleteMessagePayload is the body of the delete-message callback.
type DeleteMessagePayload struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// ExpiryPayload is the body of the close-lobby callback.
type ExpiryPayload struct {
	LobbyID    string `json:"lobby_id"`
	OnlyIfOpen bool   `json:"only_if_open"`
}

// Expiry arms the one-shot close callback for new lobbies. It is armed once
// at creation and never re-armed on join or leave.
type Expiry struct {
	dispatcher tasks.Dispatcher
	baseURL    string
	delay      time.Duration
}

// NewExpiry schedules callbacks to baseURL + CloseLobbyPath after delay
// (DefaultExpiry when zero).
func NewExpiry(dispatcher tasks.Dispatcher, baseURL string, delay time.Duration) *Expiry {
	if delay <= 0 {
		delay = DefaultExpiry
	}
	return &Expiry{
		dispatcher: dispatcher,
		baseURL:    strings.TrimRight(baseURL, "/"),
		delay:      delay,
	}
}

// Arm schedules the close-if-still-open callback for lobbyID.
func (e *Expiry) Arm(ctx context.Context, lobbyID string) error {
	payload := ExpiryPayload{LobbyID: lobbyID, OnlyIfOpen: true}
	if _, err := e.dispatcher.Schedule(ctx, e.baseURL+CloseLobbyPath, payload, e.delay); err != nil {
		return fmt.Errorf("arm expiry for lobby %s: %w", lobbyID, err)
	}
	return nil
}

// RetryDelete schedules a delayed delete of one lobby message.
func (e *Expiry) RetryDelete(ctx context.Context, channelID, messageID string) error {
	payload := DeleteMessagePayload{ChannelID: channelID, MessageID: messageID}
	if _, err := e.dispatcher.Schedule(ctx, e.baseURL+DeleteMessagePath, payload, retryDeleteDelay); err != nil {
		return fmt.Errorf("schedule delete of message %s: %w", messageID, err)
	}
	return nil
}

// CheckExpiry handles a delivered expiry callback. A missing lobby is an
// error; a lobby already closed is left alone when onlyIfOpen is set.
// Returns whether this call closed the lobby.
func (c *Controller) CheckExpiry(ctx context.Context, lobbyID string, onlyIfOpen bool) (bool, error) {
	l, err := c.repo.Get(ctx, lobbyID)
	if err != nil {
		return false, err
	}
	if onlyIfOpen && !l.IsOpen() {
		return false, nil
	}
	closed, err := c.Close(ctx, l, FillDeleteMessages)
	if closed {
		c.logger.WithField("lobby_id", lobbyID).Info("lobby expired")
	}
	return closed, err
}
