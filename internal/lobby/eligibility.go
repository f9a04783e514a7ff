// internal/lobby/eligibility.go
package lobby

import "github.com/jason-s-yu/lobbybot/internal/models"

// EligibilityInput is everything a create or join decision depends on.
// OpenLobbies is a snapshot taken by the caller; Target is the lobby being
// joined and is nil on create.
type EligibilityInput struct {
	Action      models.Action
	Player      models.Player
	Game        models.Game
	Island      *models.Island
	Target      *models.Lobby
	OpenLobbies []*models.Lobby

	// NeedsIsland is set when the request itself depends on the player's
	// linked island ("my" island, or a random pick from the roster).
	NeedsIsland bool
}

// Decision is the outcome of Evaluate. Reason is ReasonNone when Allowed.
type Decision struct {
	Allowed bool
	Reason  models.DenialReason
}

func allow() Decision { return Decision{Allowed: true} }

func deny(r models.DenialReason) Decision { return Decision{Reason: r} }

type rule func(in EligibilityInput) (models.DenialReason, bool)

// rules run in order; the first failure wins.
var rules = []rule{
	requireUsername,
	requireIsland,
	notInOtherLobby,
	gameTypeFree,
}

// Evaluate decides whether the player may perform the action. It has no side
// effects and reads nothing beyond its input.
func Evaluate(in EligibilityInput) Decision {
	for _, r := range rules {
		if reason, failed := r(in); failed {
			return deny(reason)
		}
	}
	return allow()
}

func requireUsername(in EligibilityInput) (models.DenialReason, bool) {
	return models.ReasonNoUsername, in.Player.Username == ""
}

func requireIsland(in EligibilityInput) (models.DenialReason, bool) {
	needed := in.NeedsIsland || in.Game.Type.RequiresPlayerIsland()
	return models.ReasonNoIsland, needed && in.Player.Island == nil
}

func notInOtherLobby(in EligibilityInput) (models.DenialReason, bool) {
	for _, l := range in.OpenLobbies {
		if in.Target != nil && l.ID == in.Target.ID {
			continue
		}
		if l.IsOpen() && l.HasPlayer(in.Player.ID) {
			return models.ReasonPlayerInOtherLobby, true
		}
	}
	return models.ReasonNone, false
}

func gameTypeFree(in EligibilityInput) (models.DenialReason, bool) {
	if in.Action != models.ActionCreate {
		return models.ReasonNone, false
	}
	for _, l := range in.OpenLobbies {
		if l.IsOpen() && l.Game.Type == in.Game.Type {
			return models.ReasonGameTypeExists, true
		}
	}
	return models.ReasonNone, false
}
