// internal/models/lobby.go
package models

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a lobby. Closed is terminal.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// ParseStatus validates s as a lobby status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", invalid("status", ErrInvalidStatus)
	}
	return st, nil
}

// Valid reports whether s is open or closed.
func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

// LobbyMessage records where one copy of a lobby is displayed.
type LobbyMessage struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// Lobby is a matchmaking session tied to one chat message (plus its mirrored
// copies in other lobby channels) and one game type.
//
// The ID is the id of the message the lobby was created from. PlayerCount,
// PlayerIDs, PlayerNames and MessageIDs are caches of Players/Messages and are
// rebuilt by RefreshDerived before every save.
type Lobby struct {
	ID           string         `json:"id"`
	ChannelID    string         `json:"channel_id"`
	CreationTime time.Time      `json:"creation_time"`
	Creator      Player         `json:"creator"`
	Game         Game           `json:"game"`
	Island       *Island        `json:"island,omitempty"`
	RandomIsland bool           `json:"randomize_island,omitempty"`
	Status       Status         `json:"status"`
	Players      []Player       `json:"players"`
	Messages     []LobbyMessage `json:"messages"`

	PlayerCount int      `json:"player_count"`
	PlayerIDs   []string `json:"player_ids"`
	PlayerNames []string `json:"player_names"`
	MessageIDs  []string `json:"message_ids"`
}

// NewLobby builds an open lobby whose only member is the creator, then
// validates it.
func NewLobby(id, channelID string, creator Player, game Game, island *Island, randomIsland bool, now time.Time) (*Lobby, error) {
	l := &Lobby{
		ID:           id,
		ChannelID:    channelID,
		CreationTime: now.UTC(),
		Creator:      creator,
		Game:         game,
		Island:       island,
		RandomIsland: randomIsland,
		Status:       StatusOpen,
		Players:      []Player{creator},
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	l.RefreshDerived()
	return l, nil
}

// Validate runs the lobby rules in order and returns the first failure.
func (l *Lobby) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return invalid("id", ErrMissingField)
	}
	if strings.TrimSpace(l.Creator.ID) == "" {
		return invalid("creator", ErrMissingField)
	}
	if err := l.Game.Validate(); err != nil {
		return err
	}
	if !l.Status.Valid() {
		return invalid("status", ErrInvalidStatus)
	}
	seen := make(map[string]struct{}, len(l.Players))
	for _, p := range l.Players {
		if _, dup := seen[p.ID]; dup {
			return invalid("players", ErrDuplicatePlayer)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// RefreshDerived recomputes the cached roster and message fields.
func (l *Lobby) RefreshDerived() {
	l.PlayerCount = len(l.Players)
	l.PlayerIDs = make([]string, 0, len(l.Players))
	l.PlayerNames = make([]string, 0, len(l.Players))
	for _, p := range l.Players {
		l.PlayerIDs = append(l.PlayerIDs, p.ID)
		l.PlayerNames = append(l.PlayerNames, p.DisplayName())
	}
	l.MessageIDs = make([]string, 0, len(l.Messages))
	for _, m := range l.Messages {
		l.MessageIDs = append(l.MessageIDs, m.MessageID)
	}
}

// IsOpen reports whether the lobby still accepts players.
func (l *Lobby) IsOpen() bool {
	return l.Status == StatusOpen
}

// HasPlayer reports whether playerID is on the roster.
func (l *Lobby) HasPlayer(playerID string) bool {
	for _, p := range l.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// AddPlayer appends p unless already present. Returns true when the roster changed.
func (l *Lobby) AddPlayer(p Player) bool {
	if l.HasPlayer(p.ID) {
		return false
	}
	l.Players = append(l.Players, p)
	return true
}

// RemovePlayer drops playerID from the roster. Returns true when the roster changed.
func (l *Lobby) RemovePlayer(playerID string) bool {
	for i, p := range l.Players {
		if p.ID == playerID {
			l.Players = append(l.Players[:i], l.Players[i+1:]...)
			return true
		}
	}
	return false
}

// MarkClosed moves the lobby to closed. Returns false if it already was.
func (l *Lobby) MarkClosed() bool {
	if l.Status == StatusClosed {
		return false
	}
	l.Status = StatusClosed
	return true
}

// AddMessage records a mirrored message, one per channel. A second message
// for the same channel replaces the first.
func (l *Lobby) AddMessage(channelID, messageID string) {
	for i, m := range l.Messages {
		if m.ChannelID == channelID {
			l.Messages[i].MessageID = messageID
			return
		}
	}
	l.Messages = append(l.Messages, LobbyMessage{ChannelID: channelID, MessageID: messageID})
}

// HasMessage reports whether messageID is one of the lobby's mirrored messages.
func (l *Lobby) HasMessage(messageID string) bool {
	for _, m := range l.Messages {
		if m.MessageID == messageID {
			return true
		}
	}
	return false
}

// Age is how long the lobby has existed at now.
func (l *Lobby) Age(now time.Time) time.Duration {
	return now.Sub(l.CreationTime)
}
