// internal/render/render.go
package render

import (
	"fmt"
	"strings"

	"github.com/jason-s-yu/lobbybot/internal/discord"
	"github.com/jason-s-yu/lobbybot/internal/models"
)

// Button custom ids carried by lobby messages.
const (
	JoinLobbyID  = "join_lobby"
	LeaveLobbyID = "leave_lobby"
)

// Error wraps text as a red diff block.
func Error(msg string) string {
	return fmt.Sprintf("```diff\n- %s\n```", msg)
}

// Success wraps text as a green diff block.
func Success(msg string) string {
	return fmt.Sprintf("```diff\n+ %s\n```", msg)
}

// Mention formats a user mention.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

// PartyList renders one line per player. Numbered lists are used for rider
// order; includeIsland appends each player's own island link.
func PartyList(players []models.Player, numbered, includeIsland bool) string {
	var b strings.Builder
	for i, p := range players {
		b.WriteString("\n")
		if numbered {
			fmt.Fprintf(&b, "%d. ", i+1)
		} else {
			b.WriteString("* ")
		}
		b.WriteString(Mention(p.ID))
		if p.Username != "" {
			fmt.Fprintf(&b, " (%s)", p.Username)
		}
		if includeIsland && p.Island != nil {
			fmt.Fprintf(&b, " - %s", islandLink(p.Island))
		}
	}
	return b.String()
}

func islandLink(i *models.Island) string {
	name := i.Name
	if name == "" {
		name = i.ID
	}
	if i.URL == "" {
		return "**" + name + "**"
	}
	return fmt.Sprintf("[%s](<%s>)", name, i.URL)
}

func islandLabel(l *models.Lobby) string {
	switch {
	case l.Island != nil:
		name := l.Island.Name
		if name == "" {
			name = l.Island.ID
		}
		return name
	case l.RandomIsland:
		return "a random island"
	default:
		return ""
	}
}

func header(l *models.Lobby) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A new **%s** lobby has been created", l.Game.Type)
	if label := islandLabel(l); label != "" {
		fmt.Fprintf(&b, " for **%s**!", label)
	} else {
		b.WriteString("!")
	}
	b.WriteString("\n**Players in lobby:** ")
	if l.Game.MinPlayers > 0 {
		fmt.Fprintf(&b, "(%d/%d)", len(l.Players), l.Game.MinPlayers)
	} else {
		fmt.Fprintf(&b, "(%d)", len(l.Players))
	}
	b.WriteString(PartyList(l.Players, false, false))
	return b.String()
}

// LobbyMessage renders an open lobby with its join and leave buttons.
func LobbyMessage(l *models.Lobby) discord.MessagePayload {
	if !l.IsOpen() {
		return ClosedLobbyMessage(l)
	}
	return discord.MessagePayload{
		Content: header(l) + "\n**Lobby status:**\n```diff\n+ OPEN\n```",
		Components: []discord.Component{{
			Type: discord.ComponentActionRow,
			Components: []discord.Component{
				{Type: discord.ComponentButton, Label: "Join Lobby", Style: discord.ButtonPrimary, CustomID: JoinLobbyID},
				{Type: discord.ComponentButton, Label: "Leave Lobby", Style: discord.ButtonDanger, CustomID: LeaveLobbyID},
			},
		}},
		Flags: discord.FlagSuppressEmbeds,
	}
}

// ClosedLobbyMessage renders a lobby that no longer accepts players. The
// buttons are removed.
func ClosedLobbyMessage(l *models.Lobby) discord.MessagePayload {
	return discord.MessagePayload{
		Content:    header(l) + "\n**Lobby status:**\n```diff\n- CLOSED\n```",
		Components: []discord.Component{},
		Flags:      discord.FlagSuppressEmbeds,
	}
}

// PartyNotification announces a filled lobby. Rider-order modes list the
// numbered stops and link the first rider's island; other modes link the
// lobby island.
func PartyNotification(l *models.Lobby) discord.MessagePayload {
	var b strings.Builder
	fmt.Fprintf(&b, "A new **%s** party of %d players has been matched!", l.Game.Type, len(l.Players))

	var label, link string
	if l.Game.Type.HasRiderOrder() {
		b.WriteString("\n**🚆 Stops:**")
		b.WriteString(PartyList(l.Players, true, true))
		if len(l.Players) > 0 && l.Players[0].Island != nil {
			label = "🏝️ Join Starting Island 🏝️"
			link = l.Players[0].Island.URL
		}
	} else {
		if l.Island != nil {
			fmt.Fprintf(&b, "\nIsland: **%s**!", islandLabel(l))
			label = fmt.Sprintf("🏝️ Join %s 🏝️", islandLabel(l))
			link = l.Island.URL
		}
		b.WriteString("\n**Party:**")
		b.WriteString(PartyList(l.Players, false, false))
	}

	payload := discord.MessagePayload{Content: b.String(), Flags: discord.FlagSuppressEmbeds}
	if link != "" {
		payload.Components = []discord.Component{{
			Type: discord.ComponentActionRow,
			Components: []discord.Component{
				{Type: discord.ComponentButton, Label: label, Style: discord.ButtonLink, URL: link},
			},
		}}
	}
	return payload
}

var reasonText = map[models.DenialReason]string{
	models.ReasonNoUsername:         "they have not set an in-game username (use `/lobby set username`)",
	models.ReasonNoIsland:           "they have not linked an island (use `/lobby set island`)",
	models.ReasonPlayerInOtherLobby: "player is in another open lobby",
	models.ReasonGameTypeExists:     "an open lobby already exists for game type",
}

// ReasonText is the human readable form of a denial reason.
func ReasonText(r models.DenialReason) string {
	if s, ok := reasonText[r]; ok {
		return s
	}
	return "the request is not allowed"
}

// Denial renders a refused create or join as the public shaming message.
func Denial(p models.Player, action models.Action, game models.Game, island *models.Island, reason models.DenialReason) string {
	name := p.DisplayName()
	var b strings.Builder
	fmt.Fprintf(&b, "%s tried to %s a lobby for %s", name, action, game.Type)
	if island != nil {
		label := island.Name
		if label == "" {
			label = island.ID
		}
		fmt.Fprintf(&b, " on %s", label)
	}
	fmt.Fprintf(&b, " but was denied because %s.", ReasonText(reason))
	fmt.Fprintf(&b, " Shame on %s! Shame! Shame! Shame!", name)
	return Error(b.String())
}
