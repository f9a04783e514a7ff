// internal/handlers/interactions.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/jason-s-yu/lobbybot/internal/config"
	"github.com/jason-s-yu/lobbybot/internal/discord"
	"github.com/jason-s-yu/lobbybot/internal/lobby"
	"github.com/jason-s-yu/lobbybot/internal/middleware"
	"github.com/jason-s-yu/lobbybot/internal/models"
	"github.com/jason-s-yu/lobbybot/internal/render"
	"github.com/sirupsen/logrus"
)

// Errors shown to users for malformed commands.
const (
	msgCommandInThread   = "Command was used in a thread"
	msgInvalidChannel    = "Command was not used in the appropriate channel"
	msgInvalidCommand    = "Invalid command"
	msgInvalidGroup      = "Invalid subcommand group"
	msgInvalidSubcommand = "Invalid or umapped subcommand"
	msgIslandNotFound    = "Could not find that island"
	msgSomethingWrong    = "Something went wrong, please try again"
)

// command is a parsed /lobby invocation.
type command struct {
	group   string
	name    string
	options []discord.CommandOption
}

func parseCommand(data discord.InteractionData) (*command, string) {
	if data.Name != config.CommandName {
		return nil, msgInvalidCommand
	}
	if len(data.Options) == 0 {
		return nil, msgInvalidGroup
	}
	group := data.Options[0]
	if group.Name != config.GroupCreate && group.Name != config.GroupSet {
		return nil, msgInvalidGroup
	}
	if len(group.Options) == 0 {
		return nil, msgInvalidSubcommand
	}
	sub := group.Options[0]
	return &command{group: group.Name, name: sub.Name, options: sub.Options}, ""
}

// InteractionsHandler serves the signed interaction webhook: pings,
// /lobby commands, island autocomplete and lobby buttons.
func InteractionsHandler(s *BotServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in discord.Interaction
		if err := decodeJSON(r, &in); err != nil {
			http.Error(w, "bad interaction payload", http.StatusBadRequest)
			return
		}

		if in.Type == discord.InteractionPing {
			writeJSON(w, http.StatusOK, discord.InteractionResponse{Type: discord.ResponsePong})
			return
		}

		ctx := r.Context()
		log := s.Logger.WithFields(logrus.Fields{
			"request_id":     middleware.RequestID(ctx),
			"interaction_id": in.ID,
			"channel_id":     in.ChannelRef(),
		})

		var player *models.Player
		if u := in.Invoker(); u != nil {
			p, err := s.Controller.Repository().TouchPlayer(ctx, u.ID, u.DisplayName())
			if err != nil {
				log.WithError(err).Error("failed to upsert player")
				http.Error(w, "player lookup failed", http.StatusInternalServerError)
				return
			}
			player = p
			log = log.WithField("player_id", p.ID)
		}

		var status int
		switch in.Type {
		case discord.InteractionApplicationCommand:
			status = s.handleCommand(ctx, &in, player, log)
		case discord.InteractionAutocomplete:
			status = s.handleAutocomplete(ctx, &in, log)
		case discord.InteractionMessageComponent:
			status = s.handleComponent(ctx, &in, player, log)
		default:
			status = http.StatusBadRequest
		}
		w.WriteHeader(status)
	}
}

// fail acknowledges ephemerally and explains what was wrong.
func (s *BotServer) fail(ctx context.Context, in *discord.Interaction, msg string, status int, log *logrus.Entry) int {
	if err := s.Chat.Defer(ctx, in, true); err != nil {
		log.WithError(err).Warn("failed to acknowledge interaction")
		return status
	}
	s.replyEphemeral(ctx, in, render.Error(msg), log)
	return status
}

func (s *BotServer) handleCommand(ctx context.Context, in *discord.Interaction, p *models.Player, log *logrus.Entry) int {
	if isThread(in) {
		return s.fail(ctx, in, msgCommandInThread, http.StatusBadRequest, log)
	}
	if !slices.Contains(s.LobbyChannels, in.ChannelRef()) {
		return s.fail(ctx, in, msgInvalidChannel, http.StatusBadRequest, log)
	}
	cmd, problem := parseCommand(in.Data)
	if problem != "" {
		return s.fail(ctx, in, problem, http.StatusBadRequest, log)
	}
	if p == nil {
		return s.fail(ctx, in, msgSomethingWrong, http.StatusBadRequest, log)
	}
	log = log.WithFields(logrus.Fields{"group": cmd.group, "subcommand": cmd.name})

	if cmd.group == config.GroupSet {
		return s.handleSet(ctx, in, cmd, p, log)
	}
	return s.handleCreate(ctx, in, cmd, p, log)
}

func (s *BotServer) handleCreate(ctx context.Context, in *discord.Interaction, cmd *command, p *models.Player, log *logrus.Entry) int {
	mode, ok := s.Bot.Mode(cmd.name)
	if !ok {
		return s.fail(ctx, in, msgInvalidSubcommand, http.StatusBadRequest, log)
	}
	req := lobby.CreateRequest{
		ChannelID: in.ChannelRef(),
		Player:    *p,
		GameType:  string(mode.Type),
	}
	if opt, ok := discord.FindOption(cmd.options, "players"); ok {
		req.MinPlayers = opt.Int()
	}
	if mode.TakesIsland() {
		if opt, ok := discord.FindOption(cmd.options, "island"); ok {
			req.IslandChoice = opt.String()
		}
	}

	if err := s.Controller.CheckCreate(ctx, req); err != nil {
		return s.createFailed(ctx, in, err, false, log)
	}

	if err := s.Chat.Defer(ctx, in, false); err != nil {
		log.WithError(err).Error("failed to acknowledge create")
		return http.StatusBadGateway
	}
	msgID, err := s.Chat.OriginalMessageID(ctx, in.Token)
	if err != nil {
		log.WithError(err).Error("failed to read lobby message id")
		return http.StatusBadGateway
	}
	req.MessageID = msgID

	if _, err := s.Controller.CreateLobby(ctx, req); err != nil {
		return s.createFailed(ctx, in, err, true, log)
	}
	return http.StatusOK
}

// createFailed reports a refused or failed create. acked is true once the
// public placeholder message exists; it is removed before replying.
func (s *BotServer) createFailed(ctx context.Context, in *discord.Interaction, err error, acked bool, log *logrus.Entry) int {
	var denied *lobby.DeniedError
	var invalid *models.ValidationError
	var upstream *models.UpstreamError

	msg, status := msgSomethingWrong, http.StatusInternalServerError
	switch {
	case errors.As(err, &denied):
		log.WithField("reason", denied.Reason.String()).Info("lobby creation denied")
		msg, status = "", http.StatusBadRequest
	case errors.As(err, &invalid):
		log.WithError(err).Info("invalid create request")
		msg, status = invalid.Error(), http.StatusBadRequest
	case errors.As(err, &upstream) && upstream.Service == "nifty":
		log.WithError(err).Warn("island lookup failed")
		msg, status = msgIslandNotFound, http.StatusBadGateway
	default:
		log.WithError(err).Error("lobby creation failed")
	}

	if acked {
		if derr := s.Chat.DeleteWebhookMessage(ctx, in.Token, ""); derr != nil {
			log.WithError(derr).Warn("failed to remove lobby placeholder")
		}
	} else if derr := s.Chat.Defer(ctx, in, true); derr != nil {
		log.WithError(derr).Warn("failed to acknowledge interaction")
		return status
	}

	content := render.Error(msg)
	if denied != nil {
		content = render.Denial(denied.Player, denied.Action, denied.Game, denied.Island, denied.Reason)
	}
	s.replyEphemeral(ctx, in, content, log)
	return status
}

func (s *BotServer) handleSet(ctx context.Context, in *discord.Interaction, cmd *command, p *models.Player, log *logrus.Entry) int {
	opt, ok := discord.FindOption(cmd.options, cmd.name)
	if !ok || (cmd.name != "username" && cmd.name != "island") {
		return s.fail(ctx, in, msgInvalidSubcommand, http.StatusBadRequest, log)
	}
	if err := s.Chat.Defer(ctx, in, true); err != nil {
		log.WithError(err).Error("failed to acknowledge set command")
		return http.StatusBadGateway
	}

	var done string
	switch cmd.name {
	case "username":
		p.SetUsername(opt.String())
		if p.Username == "" {
			s.replyEphemeral(ctx, in, render.Error("Username must not be empty"), log)
			return http.StatusBadRequest
		}
		done = "Username set"
	case "island":
		island, err := s.Islands.Resolve(ctx, opt.String())
		if err != nil {
			log.WithError(err).Warn("failed to resolve player island")
			s.replyEphemeral(ctx, in, render.Error(msgIslandNotFound), log)
			return http.StatusBadRequest
		}
		p.SetIsland(island)
		done = "Island set"
	}

	if err := s.Controller.Repository().SavePlayer(ctx, p); err != nil {
		log.WithError(err).Error("failed to save player")
		s.replyEphemeral(ctx, in, render.Error(msgSomethingWrong), log)
		return http.StatusInternalServerError
	}
	s.replyEphemeral(ctx, in, render.Success(done), log)
	return http.StatusOK
}

// focused returns the option being typed into, searching nested options.
func focused(opts []discord.CommandOption) (discord.CommandOption, bool) {
	for _, o := range opts {
		if o.Focused {
			return o, true
		}
		if f, ok := focused(o.Options); ok {
			return f, true
		}
	}
	return discord.CommandOption{}, false
}

func (s *BotServer) handleAutocomplete(ctx context.Context, in *discord.Interaction, log *logrus.Entry) int {
	opt, _ := focused(in.Data.Options)
	query := opt.String()

	creating := len(in.Data.Options) > 0 && in.Data.Options[0].Name == config.GroupCreate
	var (
		islands []models.Island
		err     error
		opts    = render.ChoiceOptions{Owner: true, IncludeSelf: creating, IncludeRandom: creating}
	)
	if query == "" {
		islands, err = s.Islands.Top(ctx)
		opts.PlayerCount = true
	} else {
		islands, err = s.Islands.Search(ctx, query)
		opts.FavoritedCount = true
	}
	if err != nil {
		log.WithError(err).Warn("island autocomplete lookup failed")
	}

	if err := s.Chat.Autocomplete(ctx, in, render.IslandChoices(islands, opts)); err != nil {
		log.WithError(err).Warn("failed to answer autocomplete")
		return http.StatusBadGateway
	}
	return http.StatusOK
}

func (s *BotServer) handleComponent(ctx context.Context, in *discord.Interaction, p *models.Player, log *logrus.Entry) int {
	if err := s.Chat.DeferUpdate(ctx, in); err != nil {
		log.WithError(err).Warn("failed to acknowledge button")
	}
	if p == nil || in.Message == nil {
		return http.StatusBadRequest
	}
	messageID := in.Message.ID
	log = log.WithFields(logrus.Fields{"message_id": messageID, "custom_id": in.Data.CustomID})

	var err error
	switch in.Data.CustomID {
	case render.JoinLobbyID:
		_, err = s.Controller.JoinLobby(ctx, messageID, *p)
	case render.LeaveLobbyID:
		_, err = s.Controller.LeaveLobby(ctx, messageID, *p)
	default:
		return http.StatusBadRequest
	}

	var denied *lobby.DeniedError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, lobby.ErrLobbyClosed):
		log.Debug("button pressed on closed lobby")
		return http.StatusOK
	case errors.As(err, &denied):
		log.WithField("reason", denied.Reason.String()).Info("lobby join denied")
		s.replyEphemeral(ctx, in, render.Denial(denied.Player, denied.Action, denied.Game, denied.Island, denied.Reason), log)
		return http.StatusBadRequest
	case errors.Is(err, lobby.ErrLobbyNotFound):
		log.Warn("button pressed on unknown lobby")
		return http.StatusNotFound
	default:
		log.WithError(err).Error("lobby button failed")
		return http.StatusInternalServerError
	}
}
