// internal/models/denial.go
package models

// Action is what a player attempted when an eligibility check ran.
type Action string

const (
	ActionCreate Action = "create"
	ActionJoin   Action = "join"
)

// DenialReason is why a create or join request was refused. Reasons stay
// distinct values so callers choose the tone of the reply per reason.
type DenialReason int

const (
	ReasonNone DenialReason = iota
	ReasonNoUsername
	ReasonNoIsland
	ReasonPlayerInOtherLobby
	ReasonGameTypeExists
)

func (r DenialReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNoUsername:
		return "no_username"
	case ReasonNoIsland:
		return "no_island"
	case ReasonPlayerInOtherLobby:
		return "player_in_other_lobby"
	case ReasonGameTypeExists:
		return "game_type_exists"
	default:
		return "unknown"
	}
}
