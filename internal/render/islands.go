// internal/render/islands.go
package render

import (
	"fmt"

	"github.com/jason-s-yu/lobbybot/internal/discord"
	"github.com/jason-s-yu/lobbybot/internal/models"
)

// MyIslandValue is the autocomplete value meaning "the invoking player's island".
const MyIslandValue = "my"

// RandomIslandValue asks for an island drawn from the final roster.
const RandomIslandValue = "random"

// maxChoices is the autocomplete result cap.
const maxChoices = 25

// ChoiceOptions selects the extra columns shown next to each island name.
type ChoiceOptions struct {
	Owner          bool
	PlayerCount    bool
	FavoritedCount bool
	IncludeSelf    bool
	// IncludeRandom offers drawing the island from the final roster.
	IncludeRandom bool
}

// IslandChoices formats islands as autocomplete choices, optionally led by
// the "My Island" entry.
func IslandChoices(islands []models.Island, opts ChoiceOptions) []discord.Choice {
	choices := make([]discord.Choice, 0, len(islands)+1)
	if opts.IncludeSelf {
		choices = append(choices, discord.Choice{Name: "🏠 My Island", Value: MyIslandValue})
	}
	if opts.IncludeRandom {
		choices = append(choices, discord.Choice{Name: "🎲 Random Member Island", Value: RandomIslandValue})
	}
	for _, i := range islands {
		if len(choices) == maxChoices {
			break
		}
		name := i.Name
		if opts.Owner && i.Owner != "" {
			name += " | 👤 " + i.Owner
		}
		if opts.PlayerCount {
			name += fmt.Sprintf(" | 🟢 %d online", i.PlayerCount)
		}
		if opts.FavoritedCount {
			name += fmt.Sprintf(" | ⭐ %d favorited", i.FavoritedCount)
		}
		if r := []rune(name); len(r) > 100 {
			name = string(r[:100])
		}
		choices = append(choices, discord.Choice{Name: name, Value: i.ID})
	}
	return choices
}
