// internal/lobby/sweep.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jason-s-yu/lobbybot/internal/discord"
	"github.com/sirupsen/logrus"
)

// Sweep thresholds.
const (
	sweepLimit        = 100
	emptyReplyGrace   = 5 * time.Minute
	lobbyMessageGrace = time.Hour
)

// ChannelClient is the chat transport surface used by the sweep.
type ChannelClient interface {
	ListMessages(ctx context.Context, channelID string, limit int) ([]discord.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	BulkDeleteMessages(ctx context.Context, channelID string, messageIDs []string) error
	PostMessage(ctx context.Context, channelID string, payload discord.MessagePayload) (*discord.Message, error)
	PatchMessage(ctx context.Context, channelID, messageID string, payload discord.MessagePayload) error
	PinMessage(ctx context.Context, channelID, messageID string) error
}

// SweepReport summarizes one channel sweep.
type SweepReport struct {
	ChannelID     string
	Scanned       int
	Deleted       int
	LobbiesClosed int
	Failures      int
}

// Sweeper is best-effort housekeeping for lobby channels: it removes chatter,
// failed bot replies and lobby messages the expiry missed.
type Sweeper struct {
	chat   ChannelClient
	ctrl   *Controller
	logger *logrus.Logger
	now    func() time.Time
}

// NewSweeper builds a sweeper closing lobbies through ctrl.
func NewSweeper(chat ChannelClient, ctrl *Controller, logger *logrus.Logger) *Sweeper {
	return &Sweeper{chat: chat, ctrl: ctrl, logger: logger, now: time.Now}
}

// SweepChannel cleans up the latest messages of channelID. Only listing the
// channel can fail the sweep; every later step logs and moves on.
func (s *Sweeper) SweepChannel(ctx context.Context, channelID string) (SweepReport, error) {
	report := SweepReport{ChannelID: channelID}
	log := s.logger.WithField("channel_id", channelID)

	msgs, err := s.chat.ListMessages(ctx, channelID, sweepLimit)
	if err != nil {
		return report, fmt.Errorf("list messages in %s: %w", channelID, err)
	}
	report.Scanned = len(msgs)

	now := s.now()
	var toDelete []string
	for _, m := range msgs {
		if m.Pinned {
			continue
		}
		if !m.Author.Bot {
			toDelete = append(toDelete, m.ID)
			continue
		}
		age := now.Sub(m.Timestamp)
		if strings.TrimSpace(m.Content) == "" {
			if age > emptyReplyGrace {
				toDelete = append(toDelete, m.ID)
			}
			continue
		}
		if age <= lobbyMessageGrace {
			continue
		}

		// Closing an open lobby deletes all of its messages, this one included.
		handled, err := s.closeLobbyFor(ctx, m.ID)
		if err != nil {
			log.WithError(err).WithField("message_id", m.ID).Warn("sweep could not close lobby")
			report.Failures++
		}
		if handled {
			report.LobbiesClosed++
			continue
		}
		toDelete = append(toDelete, m.ID)
	}

	deleted, failed := s.delete(ctx, channelID, toDelete)
	report.Deleted += deleted
	report.Failures += failed

	log.WithFields(logrus.Fields{
		"scanned": report.Scanned,
		"deleted": report.Deleted,
		"closed":  report.LobbiesClosed,
	}).Info("channel swept")
	return report, nil
}

// closeLobbyFor closes the open lobby displayed in messageID. It reports
// true when Close ran, meaning the lobby's messages were already removed.
func (s *Sweeper) closeLobbyFor(ctx context.Context, messageID string) (bool, error) {
	l, err := s.ctrl.repo.FindByMessage(ctx, messageID)
	if err != nil {
		return false, err
	}
	closed, err := s.ctrl.Close(ctx, l, FillDeleteMessages)
	if !closed {
		return false, err
	}
	return l.HasMessage(messageID) || l.ID == messageID, err
}

func (s *Sweeper) delete(ctx context.Context, channelID string, ids []string) (deleted, failed int) {
	log := s.logger.WithField("channel_id", channelID)
	switch {
	case len(ids) == 0:
		return 0, 0
	case len(ids) > 1:
		err := s.chat.BulkDeleteMessages(ctx, channelID, ids)
		if err == nil {
			return len(ids), 0
		}
		// bulk delete refuses messages older than two weeks
		log.WithError(err).Warn("bulk delete failed, deleting one by one")
	}

	for _, id := range ids {
		err := s.chat.DeleteMessage(ctx, channelID, id)
		if err != nil && !errors.Is(err, discord.ErrUnknownMessage) {
			log.WithError(err).WithField("message_id", id).Warn("failed to delete message")
			failed++
			continue
		}
		deleted++
	}
	return deleted, failed
}

// PinnedInstructions is the how-to message kept pinned in lobby channels.
const PinnedInstructions = `
How to **create** a new lobby:
1. set your in-game username using ` + "`/lobby set username`" + ` **you only need to do this once**
2. set your island using ` + "`/lobby set island`" + ` **you only need to do this once**
3. start typing ` + "`/lobby create`" + ` and you will be prompted with different commands for the different game types
`

// EnsurePinned keeps one pinned bot message with content in channelID:
// the existing one is edited, otherwise a new message is posted and pinned.
func (s *Sweeper) EnsurePinned(ctx context.Context, channelID, content string) error {
	msgs, err := s.chat.ListMessages(ctx, channelID, sweepLimit)
	if err != nil {
		return fmt.Errorf("list messages in %s: %w", channelID, err)
	}

	payload := discord.MessagePayload{Content: content}
	for _, m := range msgs {
		if m.Pinned && m.Author.Bot {
			if m.Content == content {
				return nil
			}
			return s.chat.PatchMessage(ctx, channelID, m.ID, payload)
		}
	}

	msg, err := s.chat.PostMessage(ctx, channelID, payload)
	if err != nil {
		return fmt.Errorf("post instructions in %s: %w", channelID, err)
	}
	if err := s.chat.PinMessage(ctx, channelID, msg.ID); err != nil {
		return fmt.Errorf("pin instructions in %s: %w", channelID, err)
	}
	s.logger.WithField("channel_id", channelID).Info("pinned lobby instructions")
	return nil
}
