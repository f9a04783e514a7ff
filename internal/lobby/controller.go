// internal/lobby/controller.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jason-s-yu/lobbybot/internal/discord"
	"github.com/jason-s-yu/lobbybot/internal/models"
	"github.com/jason-s-yu/lobbybot/internal/render"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrLobbyClosed is returned by join and leave on a closed lobby. Nothing is written.
	ErrLobbyClosed = errors.New("lobby is closed")
	// ErrNoIslandCandidates is returned when a random island is requested but
	// no member has linked one.
	ErrNoIslandCandidates = errors.New("no member has a linked island")
)

// DeniedError is returned when eligibility refuses a create or join.
type DeniedError struct {
	Reason models.DenialReason
	Action models.Action
	Player models.Player
	Game   models.Game
	Island *models.Island
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s denied for player %s: %s", e.Action, e.Player.ID, e.Reason)
}

// FillPolicy decides what happens to mirrored messages when a lobby fills.
type FillPolicy int

const (
	// FillDeleteMessages deletes every mirrored message.
	FillDeleteMessages FillPolicy = iota
	// FillKeepMessages keeps the messages, rendered as closed without buttons.
	FillKeepMessages
)

// Messenger is the part of the chat transport the controller drives.
type Messenger interface {
	PostMessage(ctx context.Context, channelID string, payload discord.MessagePayload) (*discord.Message, error)
	PatchMessage(ctx context.Context, channelID, messageID string, payload discord.MessagePayload) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// IslandResolver fills in an island's display name and join URL.
type IslandResolver interface {
	Resolve(ctx context.Context, id string) (*models.Island, error)
}

// Armer schedules the delayed callbacks a lobby needs.
type Armer interface {
	// Arm schedules the expiry callback for a new lobby.
	Arm(ctx context.Context, lobbyID string) error
	// RetryDelete schedules another attempt at deleting a lobby message.
	RetryDelete(ctx context.Context, channelID, messageID string) error
}

// Config holds the controller's policy values.
type Config struct {
	// LobbyChannels are the rooms every lobby is mirrored into.
	LobbyChannels []string
	// PartyChannel receives the party-formed notification. Empty disables it.
	PartyChannel string
	FillPolicy   FillPolicy
}

// Controller runs the lobby state machine: open until filled, emptied,
// expired or swept, then closed for good.
type Controller struct {
	repo    *Repository
	chat    Messenger
	islands IslandResolver
	expiry  Armer
	logger  *logrus.Logger
	cfg     Config

	// rngMu guards rng; requests fill lobbies concurrently.
	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
}

// NewController wires the controller's collaborators.
func NewController(repo *Repository, chat Messenger, islands IslandResolver, expiry Armer, logger *logrus.Logger, cfg Config) *Controller {
	return &Controller{
		repo:    repo,
		chat:    chat,
		islands: islands,
		expiry:  expiry,
		logger:  logger,
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:     time.Now,
	}
}

// Repository exposes the controller's store for lookups by callers.
func (c *Controller) Repository() *Repository { return c.repo }

// CreateRequest describes a /lobby create command.
type CreateRequest struct {
	// MessageID is the message the command's response was posted as; it
	// becomes the lobby id.
	MessageID  string
	ChannelID  string
	Player     models.Player
	GameType   string
	MinPlayers int
	// IslandChoice is an island id, render.MyIslandValue, render.RandomIslandValue,
	// or empty for modes without a host island.
	IslandChoice string
}

type createPlan struct {
	game   models.Game
	island *models.Island
	random bool
}

// planCreate validates the request, resolves the island choice and runs
// eligibility. It writes nothing.
func (c *Controller) planCreate(ctx context.Context, req CreateRequest) (*createPlan, error) {
	game, err := models.NewGame(req.GameType, req.MinPlayers)
	if err != nil {
		return nil, err
	}

	plan := &createPlan{game: game}
	needsIsland := false
	switch req.IslandChoice {
	case "":
	case render.RandomIslandValue:
		plan.random, needsIsland = true, true
	case render.MyIslandValue:
		needsIsland = true
		plan.island = req.Player.Island
	default:
		plan.island, err = c.islands.Resolve(ctx, req.IslandChoice)
		if err != nil {
			return nil, fmt.Errorf("resolve island %s: %w", req.IslandChoice, err)
		}
	}

	open, err := c.repo.OpenLobbies(ctx)
	if err != nil {
		return nil, err
	}
	decision := Evaluate(EligibilityInput{
		Action:      models.ActionCreate,
		Player:      req.Player,
		Game:        game,
		Island:      plan.island,
		OpenLobbies: open,
		NeedsIsland: needsIsland,
	})
	if !decision.Allowed {
		return nil, &DeniedError{Reason: decision.Reason, Action: models.ActionCreate, Player: req.Player, Game: game, Island: plan.island}
	}
	return plan, nil
}

// CheckCreate reports whether CreateLobby would currently accept req, without
// writing anything. CreateLobby repeats the check.
func (c *Controller) CheckCreate(ctx context.Context, req CreateRequest) error {
	_, err := c.planCreate(ctx, req)
	return err
}

// CreateLobby validates the request, checks eligibility, persists the lobby,
// arms its expiry, and displays it in every lobby channel.
func (c *Controller) CreateLobby(ctx context.Context, req CreateRequest) (*models.Lobby, error) {
	plan, err := c.planCreate(ctx, req)
	if err != nil {
		return nil, err
	}
	game := plan.game

	l, err := models.NewLobby(req.MessageID, req.ChannelID, req.Player, game, plan.island, plan.random, c.now())
	if err != nil {
		return nil, err
	}
	l.AddMessage(req.ChannelID, req.MessageID)
	if err := c.repo.Create(ctx, l); err != nil {
		return nil, err
	}

	log := c.logger.WithFields(logrus.Fields{"lobby_id": l.ID, "player_id": req.Player.ID, "game_type": game.Type})
	if err := c.expiry.Arm(ctx, l.ID); err != nil {
		log.WithError(err).Error("failed to arm lobby expiry")
	}

	payload := render.LobbyMessage(l)
	if err := c.chat.PatchMessage(ctx, req.ChannelID, req.MessageID, payload); err != nil {
		// a lobby nobody can see must not hold its game type or its creator
		if _, cerr := c.Close(ctx, l, FillDeleteMessages); cerr != nil {
			log.WithError(cerr).Warn("failed to close undisplayed lobby")
		}
		return l, fmt.Errorf("display lobby %s: %w", l.ID, err)
	}
	for _, ch := range c.cfg.LobbyChannels {
		if ch == req.ChannelID {
			continue
		}
		msg, err := c.chat.PostMessage(ctx, ch, payload)
		if err != nil {
			log.WithError(err).WithField("channel_id", ch).Warn("failed to mirror lobby")
			continue
		}
		c.AddMirroredMessage(l, ch, msg.ID)
	}
	if len(l.Messages) > 1 {
		if err := c.repo.Save(ctx, l); err != nil {
			return l, err
		}
	}

	log.Info("lobby created")
	return l, nil
}

// JoinResult reports what a join did.
type JoinResult struct {
	Lobby  *models.Lobby
	Joined bool // false when the player was already on the roster
	Filled bool // the join reached the threshold and closed the lobby
}

// JoinLobby adds the player to the lobby shown in messageID. Reaching the
// player threshold closes the lobby and announces the party.
func (c *Controller) JoinLobby(ctx context.Context, messageID string, p models.Player) (*JoinResult, error) {
	l, err := c.repo.FindByMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !l.IsOpen() {
		return nil, ErrLobbyClosed
	}

	open, err := c.repo.OpenLobbies(ctx)
	if err != nil {
		return nil, err
	}
	decision := Evaluate(EligibilityInput{
		Action:      models.ActionJoin,
		Player:      p,
		Game:        l.Game,
		Island:      l.Island,
		Target:      l,
		OpenLobbies: open,
	})
	if !decision.Allowed {
		return nil, &DeniedError{Reason: decision.Reason, Action: models.ActionJoin, Player: p, Game: l.Game, Island: l.Island}
	}

	if l.RandomIsland && !canPickIsland(l, p) {
		return nil, &DeniedError{Reason: models.ReasonNoIsland, Action: models.ActionJoin, Player: p, Game: l.Game, Island: l.Island}
	}

	res := &JoinResult{Lobby: l}
	if l.AddPlayer(p) {
		res.Joined = true
		if err := c.repo.Save(ctx, l); err != nil {
			return nil, err
		}
	}

	log := c.logger.WithFields(logrus.Fields{"lobby_id": l.ID, "player_id": p.ID})
	if !l.Game.ThresholdReached(len(l.Players)) {
		log.Debug("player joined lobby")
		return res, c.Sync(ctx, l)
	}

	if l.Game.Type.HasRiderOrder() {
		if err := c.RandomizeRoster(ctx, l); err != nil {
			return nil, err
		}
	}
	if l.RandomIsland {
		if _, err := c.PickRandomIsland(l); err != nil {
			return nil, fmt.Errorf("lobby %s: %w", l.ID, err)
		}
	}
	if _, err := c.Close(ctx, l, c.cfg.FillPolicy); err != nil {
		return nil, err
	}
	res.Filled = true
	log.WithField("players", len(l.Players)).Info("lobby filled")

	if c.cfg.PartyChannel != "" {
		if _, err := c.chat.PostMessage(ctx, c.cfg.PartyChannel, render.PartyNotification(l)); err != nil {
			return res, fmt.Errorf("announce party for lobby %s: %w", l.ID, err)
		}
	}
	return res, nil
}

// canPickIsland reports whether a random island can be drawn should p's join
// fill the lobby. Joins below the threshold always pass.
func canPickIsland(l *models.Lobby, p models.Player) bool {
	count := len(l.Players)
	if !l.HasPlayer(p.ID) {
		count++
	}
	if !l.Game.ThresholdReached(count) || p.Island != nil {
		return true
	}
	for _, m := range l.Players {
		if m.Island != nil {
			return true
		}
	}
	return false
}

// LeaveLobby removes the player from the lobby shown in messageID. The last
// player leaving closes it.
func (c *Controller) LeaveLobby(ctx context.Context, messageID string, p models.Player) (*models.Lobby, error) {
	l, err := c.repo.FindByMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !l.IsOpen() {
		return nil, ErrLobbyClosed
	}
	if !l.RemovePlayer(p.ID) {
		return l, nil
	}

	log := c.logger.WithFields(logrus.Fields{"lobby_id": l.ID, "player_id": p.ID})
	if len(l.Players) == 0 {
		log.Info("last player left, closing lobby")
		_, err := c.Close(ctx, l, FillDeleteMessages)
		return l, err
	}

	if err := c.repo.Save(ctx, l); err != nil {
		return nil, err
	}
	log.Debug("player left lobby")
	return l, c.Sync(ctx, l)
}

// RandomizeRoster shuffles the roster once and persists it.
func (c *Controller) RandomizeRoster(ctx context.Context, l *models.Lobby) error {
	c.rngMu.Lock()
	c.rng.Shuffle(len(l.Players), func(i, j int) {
		l.Players[i], l.Players[j] = l.Players[j], l.Players[i]
	})
	c.rngMu.Unlock()
	return c.repo.Save(ctx, l)
}

// PickRandomIsland sets the lobby island to one drawn uniformly from the
// members' linked islands. Members without an island are not candidates.
// The lobby is not persisted here; closing it does.
func (c *Controller) PickRandomIsland(l *models.Lobby) (*models.Island, error) {
	candidates := make([]*models.Island, 0, len(l.Players))
	for _, p := range l.Players {
		if p.Island != nil {
			candidates = append(candidates, p.Island)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoIslandCandidates
	}
	c.rngMu.Lock()
	n := c.rng.IntN(len(candidates))
	c.rngMu.Unlock()
	picked := *candidates[n]
	l.Island = &picked
	return l.Island, nil
}

// CloseLobby closes the lobby with the given id and deletes its messages.
func (c *Controller) CloseLobby(ctx context.Context, id string) error {
	l, err := c.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = c.Close(ctx, l, FillDeleteMessages)
	return err
}

// Close marks the lobby closed, persists it, then deletes or freezes its
// mirrored messages per policy. Closing a closed lobby is a no-op that
// returns false. Message cleanup failures are logged and returned joined,
// after the closed state is already stored; failed deletes are retried once
// through the dispatcher.
func (c *Controller) Close(ctx context.Context, l *models.Lobby, policy FillPolicy) (bool, error) {
	if !l.MarkClosed() {
		return false, nil
	}
	if err := c.repo.Save(ctx, l); err != nil {
		return true, err
	}

	log := c.logger.WithField("lobby_id", l.ID)
	var errs []error
	for _, m := range c.messages(l) {
		var err error
		if policy == FillKeepMessages {
			err = c.chat.PatchMessage(ctx, m.ChannelID, m.MessageID, render.ClosedLobbyMessage(l))
		} else {
			err = c.chat.DeleteMessage(ctx, m.ChannelID, m.MessageID)
		}
		if err == nil || errors.Is(err, discord.ErrUnknownMessage) {
			continue
		}
		mlog := log.WithFields(logrus.Fields{"channel_id": m.ChannelID, "message_id": m.MessageID})
		mlog.WithError(err).Warn("failed to clean up lobby message")
		errs = append(errs, err)
		if policy != FillKeepMessages {
			if rerr := c.expiry.RetryDelete(ctx, m.ChannelID, m.MessageID); rerr != nil {
				mlog.WithError(rerr).Warn("failed to schedule message delete retry")
			}
		}
	}
	log.Info("lobby closed")
	return true, errors.Join(errs...)
}

// CloseStale closes every open lobby older than maxAge and returns how many
// were closed. One failure does not stop the rest.
func (c *Controller) CloseStale(ctx context.Context, maxAge time.Duration) (int, error) {
	open, err := c.repo.OpenLobbies(ctx)
	if err != nil {
		return 0, err
	}
	now := c.now()
	closed := 0
	var errs []error
	for _, l := range open {
		if l.Age(now) <= maxAge {
			continue
		}
		ok, err := c.Close(ctx, l, FillDeleteMessages)
		if err != nil {
			errs = append(errs, fmt.Errorf("close lobby %s: %w", l.ID, err))
		}
		if ok {
			closed++
		}
	}
	return closed, errors.Join(errs...)
}

// AddMirroredMessage records that the lobby is also displayed in channelID.
func (c *Controller) AddMirroredMessage(l *models.Lobby, channelID, messageID string) {
	l.AddMessage(channelID, messageID)
	l.RefreshDerived()
}

// Sync re-renders the lobby into every mirrored message concurrently.
func (c *Controller) Sync(ctx context.Context, l *models.Lobby) error {
	payload := render.LobbyMessage(l)
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range c.messages(l) {
		g.Go(func() error {
			if err := c.chat.PatchMessage(gctx, m.ChannelID, m.MessageID, payload); err != nil {
				return fmt.Errorf("patch message %s in %s: %w", m.MessageID, m.ChannelID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// messages lists where the lobby is shown. Records written before mirroring
// existed only know the origin message.
func (c *Controller) messages(l *models.Lobby) []models.LobbyMessage {
	if len(l.Messages) > 0 {
		return l.Messages
	}
	return []models.LobbyMessage{{ChannelID: l.ChannelID, MessageID: l.ID}}
}
