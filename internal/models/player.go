// internal/models/player.go
package models

import "strings"

// Island is a Nifty Island world that can host a game.
type Island struct {
	ID             string   `json:"id"`
	Name           string   `json:"name,omitempty"`
	URL            string   `json:"url,omitempty"`
	Owner          string   `json:"owner,omitempty"` // owner nickname, shown in autocomplete choices
	PlayerCount    int      `json:"player_count,omitempty"`
	FavoritedCount int      `json:"favorited_count,omitempty"`
	SearchTokens   []string `json:"search_tokens,omitempty"`
}

// Resolved is true once the display name and join URL are known.
func (i *Island) Resolved() bool {
	return i != nil && i.Name != "" && i.URL != ""
}

// Player is a chat member known to the bot. Players are never deleted.
type Player struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Username string  `json:"username"` // in-game username, required to create or join
	Guild    string  `json:"guild"`
	Island   *Island `json:"island"`
}

// NewPlayer returns a Player with the given chat identity.
func NewPlayer(id, name string) (*Player, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", ErrMissingField)
	}
	return &Player{ID: id, Name: name}, nil
}

// SetName updates the display name. Empty names are ignored.
func (p *Player) SetName(name string) {
	if name != "" {
		p.Name = name
	}
}

// SetUsername sets the chosen in-game username.
func (p *Player) SetUsername(username string) {
	p.Username = strings.TrimSpace(username)
}

// SetGuild sets the guild tag shown next to the player.
func (p *Player) SetGuild(guild string) {
	p.Guild = strings.TrimSpace(guild)
}

// SetIsland links the player's own island. A nil island unlinks it.
func (p *Player) SetIsland(island *Island) {
	p.Island = island
}

// DisplayName prefers the in-game username over the chat name.
func (p Player) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	return p.Name
}
