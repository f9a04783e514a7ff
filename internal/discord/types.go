// internal/discord/types.go
package discord

import (
	"encoding/json"
	"strconv"
	"time"
)

// Interaction request types.
const (
	InteractionPing               = 1
	InteractionApplicationCommand = 2
	InteractionMessageComponent   = 3
	InteractionAutocomplete       = 4
)

// Interaction callback types.
const (
	ResponsePong                   = 1
	ResponseChannelMessage         = 4
	ResponseDeferredChannelMessage = 5
	ResponseDeferredUpdateMessage  = 6
	ResponseAutocompleteResult     = 8
)

// Message flags.
const (
	FlagSuppressEmbeds = 1 << 2
	FlagEphemeral      = 1 << 6
)

// Component types and button styles.
const (
	ComponentActionRow = 1
	ComponentButton    = 2

	ButtonPrimary = 1
	ButtonDanger  = 4
	ButtonLink    = 5
)

// Application command option types.
const (
	OptionSubCommand      = 1
	OptionSubCommandGroup = 2
	OptionString          = 3
	OptionInteger         = 4
)

type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
	Bot        bool   `json:"bot,omitempty"`
}

// DisplayName is the global name, falling back to the account username.
func (u User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

type Member struct {
	User User   `json:"user"`
	Nick string `json:"nick,omitempty"`
}

type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type int    `json:"type"`
}

// Message is a channel message as returned by the REST API.
type Message struct {
	ID         string      `json:"id"`
	ChannelID  string      `json:"channel_id"`
	Content    string      `json:"content"`
	Author     User        `json:"author"`
	Pinned     bool        `json:"pinned"`
	Timestamp  time.Time   `json:"timestamp"`
	Components []Component `json:"components,omitempty"`
}

// Component is a message component (action row or button).
type Component struct {
	Type       int         `json:"type"`
	Style      int         `json:"style,omitempty"`
	Label      string      `json:"label,omitempty"`
	CustomID   string      `json:"custom_id,omitempty"`
	URL        string      `json:"url,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// MessagePayload is the body used to create or edit a message. A nil
// Components slice is sent as an empty list, which clears existing buttons.
type MessagePayload struct {
	Content    string      `json:"content"`
	Components []Component `json:"components"`
	Flags      int         `json:"flags,omitempty"`
}

func (p MessagePayload) normalized() MessagePayload {
	if p.Components == nil {
		p.Components = []Component{}
	}
	return p
}

// Choice is an option value offered by autocomplete or a fixed choice list.
type Choice struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Interaction is an inbound webhook event.
type Interaction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          int             `json:"type"`
	Token         string          `json:"token"`
	GuildID       string          `json:"guild_id,omitempty"`
	ChannelID     string          `json:"channel_id,omitempty"`
	Channel       *Channel        `json:"channel,omitempty"`
	Member        *Member         `json:"member,omitempty"`
	User          *User           `json:"user,omitempty"`
	Message       *Message        `json:"message,omitempty"`
	Data          InteractionData `json:"data"`
}

// Invoker returns the user behind the interaction, whether sent from a guild or a DM.
func (i *Interaction) Invoker() *User {
	if i.Member != nil {
		return &i.Member.User
	}
	return i.User
}

// ChannelRef returns the channel id from whichever field Discord filled in.
func (i *Interaction) ChannelRef() string {
	if i.ChannelID != "" {
		return i.ChannelID
	}
	if i.Channel != nil {
		return i.Channel.ID
	}
	return ""
}

type InteractionData struct {
	ID            string          `json:"id,omitempty"`
	Name          string          `json:"name,omitempty"`
	CustomID      string          `json:"custom_id,omitempty"`
	ComponentType int             `json:"component_type,omitempty"`
	Options       []CommandOption `json:"options,omitempty"`
}

// CommandOption is one resolved option of an invoked command. Value holds a
// JSON string or number.
type CommandOption struct {
	Name    string          `json:"name"`
	Type    int             `json:"type"`
	Value   json.RawMessage `json:"value,omitempty"`
	Focused bool            `json:"focused,omitempty"`
	Options []CommandOption `json:"options,omitempty"`
}

// String returns the option value as text. Numbers are formatted as-is.
func (o CommandOption) String() string {
	if len(o.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(o.Value, &s); err == nil {
		return s
	}
	return string(o.Value)
}

// Int returns the option value as an integer, or 0 if it is not numeric.
func (o CommandOption) Int() int {
	var f float64
	if err := json.Unmarshal(o.Value, &f); err == nil {
		return int(f)
	}
	n, _ := strconv.Atoi(o.String())
	return n
}

// FindOption looks up a direct child option by name.
func FindOption(opts []CommandOption, name string) (CommandOption, bool) {
	for _, o := range opts {
		if o.Name == name {
			return o, true
		}
	}
	return CommandOption{}, false
}

// InteractionResponse is the body of an interaction callback. Data is a
// *ResponseData or an AutocompleteData depending on Type.
type InteractionResponse struct {
	Type int `json:"type"`
	Data any `json:"data,omitempty"`
}

type ResponseData struct {
	TTS        bool        `json:"tts"`
	Content    string      `json:"content,omitempty"`
	Flags      int         `json:"flags,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// AutocompleteData always carries a choices list, empty when nothing matched.
type AutocompleteData struct {
	Choices []Choice `json:"choices"`
}

// ApplicationCommand is a slash command definition used for registration.
type ApplicationCommand struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Type        int                 `json:"type,omitempty"`
	Options     []ApplicationOption `json:"options,omitempty"`
}

type ApplicationOption struct {
	Type         int                 `json:"type"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Required     bool                `json:"required,omitempty"`
	Autocomplete bool                `json:"autocomplete,omitempty"`
	Choices      []Choice            `json:"choices,omitempty"`
	Options      []ApplicationOption `json:"options,omitempty"`
}
