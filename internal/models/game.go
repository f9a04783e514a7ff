// internal/models/game.go
package models

// GameType is one of the fixed game modes a lobby can be created for.
type GameType string

const (
	GameTypeFFADM      GameType = "FFA DM"
	GameTypeCTF        GameType = "CTF"
	GameTypeSpyHunt    GameType = "Spy Hunt"
	GameTypeZombies    GameType = "Zombies"
	GameTypeVisitTrain GameType = "Visit Train"
)

// GameTypes lists every valid GameType in display order.
var GameTypes = []GameType{
	GameTypeFFADM,
	GameTypeCTF,
	GameTypeSpyHunt,
	GameTypeZombies,
	GameTypeVisitTrain,
}

// Valid reports whether t is one of the enumerated game types.
func (t GameType) Valid() bool {
	for _, gt := range GameTypes {
		if gt == t {
			return true
		}
	}
	return false
}

// RequiresPlayerIsland is true for modes where every member's own island is
// part of the game (the train visits each rider's island).
func (t GameType) RequiresPlayerIsland() bool {
	return t == GameTypeVisitTrain
}

// HasRiderOrder is true for modes whose roster order matters and is shuffled
// once when the party forms.
func (t GameType) HasRiderOrder() bool {
	return t == GameTypeVisitTrain
}

// Game describes what a lobby is gathering players for.
type Game struct {
	Type       GameType `json:"game_type"`
	MinPlayers int      `json:"min_players,omitempty"` // 0 => no threshold, lobby only closes by leave/expiry
	Featured   bool     `json:"is_featured,omitempty"`
}

// NewGame validates the game type and threshold and returns a Game.
func NewGame(gameType string, minPlayers int) (Game, error) {
	g := Game{Type: GameType(gameType), MinPlayers: minPlayers}
	if err := g.Validate(); err != nil {
		return Game{}, err
	}
	return g, nil
}

// Validate checks the game's fields in order and returns the first failure.
func (g Game) Validate() error {
	if !g.Type.Valid() {
		return invalid("game_type", ErrInvalidGameType)
	}
	if g.MinPlayers < 0 {
		return invalid("min_players", ErrInvalidMinPlayers)
	}
	return nil
}

// ThresholdReached reports whether count players is enough to form a party.
func (g Game) ThresholdReached(count int) bool {
	return g.MinPlayers > 0 && count >= g.MinPlayers
}
