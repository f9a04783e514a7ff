// internal/discord/client.go
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jason-s-yu/lobbybot/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is the versioned REST root.
const DefaultBaseURL = "https://discord.com/api/v10"

// API error codes we react to.
const (
	codeUnknownMessage = 10008
	codeUnknownWebhook = 10015
)

// ErrUnknownMessage is returned when the target message no longer exists.
// Deletions treat it as success.
var ErrUnknownMessage = errors.New("unknown message")

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("discord error %d: %s", e.Code, e.Message)
}

// Client talks to the Discord REST API as the bot user.
type Client struct {
	baseURL string
	token   string
	appID   string
	http    *http.Client
	logger  *logrus.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another REST root, used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient builds a client for the bot token and application id.
func NewClient(token, appID string, logger *logrus.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		appID:   appID,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends a request. Bot-authenticated calls carry the token; interaction
// webhook calls authenticate with the interaction token in the path instead.
func (c *Client) do(ctx context.Context, method, path string, body any, authed bool, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bot "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &models.UpstreamError{Service: "discord", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &apiError{}
		var cause error = apiErr
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Code == 0 {
			cause = fmt.Errorf("%s %s: %s", method, path, bytes.TrimSpace(raw))
		} else if apiErr.Code == codeUnknownMessage || apiErr.Code == codeUnknownWebhook {
			cause = fmt.Errorf("%w: %v", ErrUnknownMessage, apiErr)
		}
		c.logger.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Debug("discord request failed")
		return &models.UpstreamError{Service: "discord", StatusCode: resp.StatusCode, Err: cause}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// PostMessage creates a message in a channel.
func (c *Client) PostMessage(ctx context.Context, channelID string, payload MessagePayload) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	if err := c.do(ctx, http.MethodPost, path, payload.normalized(), true, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// PatchMessage edits a message the bot authored.
func (c *Client) PatchMessage(ctx context.Context, channelID, messageID string, payload MessagePayload) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	return c.do(ctx, http.MethodPatch, path, payload.normalized(), true, nil)
}

// DeleteMessage removes one message. A missing message yields ErrUnknownMessage.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	return c.do(ctx, http.MethodDelete, path, nil, true, nil)
}

// BulkDeleteMessages removes 2 to 100 messages at once.
func (c *Client) BulkDeleteMessages(ctx context.Context, channelID string, messageIDs []string) error {
	if len(messageIDs) < 2 || len(messageIDs) > 100 {
		return fmt.Errorf("bulk delete needs 2-100 ids, got %d", len(messageIDs))
	}
	path := fmt.Sprintf("/channels/%s/messages/bulk-delete", channelID)
	return c.do(ctx, http.MethodPost, path, map[string][]string{"messages": messageIDs}, true, nil)
}

// ListMessages returns the most recent messages of a channel, newest first.
func (c *Client) ListMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	path := fmt.Sprintf("/channels/%s/messages?%s", channelID, q.Encode())

	var msgs []Message
	if err := c.do(ctx, http.MethodGet, path, nil, true, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// PinMessage pins a message in its channel.
func (c *Client) PinMessage(ctx context.Context, channelID, messageID string) error {
	path := fmt.Sprintf("/channels/%s/pins/%s", channelID, messageID)
	return c.do(ctx, http.MethodPut, path, nil, true, nil)
}

// Respond acknowledges an interaction through the callback endpoint.
func (c *Client) Respond(ctx context.Context, in *Interaction, resp InteractionResponse) error {
	path := fmt.Sprintf("/interactions/%s/%s/callback", in.ID, in.Token)
	return c.do(ctx, http.MethodPost, path, resp, false, nil)
}

// Defer acknowledges a command with a deferred channel message.
func (c *Client) Defer(ctx context.Context, in *Interaction, ephemeral bool) error {
	data := &ResponseData{}
	if ephemeral {
		data.Flags = FlagEphemeral
	}
	return c.Respond(ctx, in, InteractionResponse{Type: ResponseDeferredChannelMessage, Data: data})
}

// DeferUpdate acknowledges a component click without a new message.
func (c *Client) DeferUpdate(ctx context.Context, in *Interaction) error {
	return c.Respond(ctx, in, InteractionResponse{Type: ResponseDeferredUpdateMessage, Data: &ResponseData{}})
}

// Autocomplete answers an autocomplete request with the given choices.
func (c *Client) Autocomplete(ctx context.Context, in *Interaction, choices []Choice) error {
	if choices == nil {
		choices = []Choice{}
	}
	return c.Respond(ctx, in, InteractionResponse{Type: ResponseAutocompleteResult, Data: AutocompleteData{Choices: choices}})
}

// OriginalMessageID returns the id of the message created by acknowledging
// the interaction. Only valid after a deferred channel message response.
func (c *Client) OriginalMessageID(ctx context.Context, token string) (string, error) {
	var msg Message
	path := fmt.Sprintf("/webhooks/%s/%s/messages/@original", c.appID, token)
	if err := c.do(ctx, http.MethodGet, path, nil, false, &msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

// Followup sends a followup message for an interaction.
func (c *Client) Followup(ctx context.Context, token string, payload MessagePayload) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/webhooks/%s/%s", c.appID, token)
	if err := c.do(ctx, http.MethodPost, path, payload.normalized(), false, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteWebhookMessage deletes a followup, or the original response when
// messageID is empty.
func (c *Client) DeleteWebhookMessage(ctx context.Context, token, messageID string) error {
	if messageID == "" {
		messageID = "@original"
	}
	path := fmt.Sprintf("/webhooks/%s/%s/messages/%s", c.appID, token, messageID)
	return c.do(ctx, http.MethodDelete, path, nil, false, nil)
}

// RegisterCommand creates or overwrites a global slash command.
func (c *Client) RegisterCommand(ctx context.Context, cmd ApplicationCommand) error {
	path := fmt.Sprintf("/applications/%s/commands", c.appID)
	return c.do(ctx, http.MethodPost, path, cmd, true, nil)
}
