package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/lobbybot/internal/discord"
	"github.com/jason-s-yu/lobbybot/internal/models"
	"github.com/jason-s-yu/lobbybot/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLobbyPersistsArmsAndMirrors(t *testing.T) {
	h := newHarness(t, Config{LobbyChannels: []string{"lobby-1", "lobby-2"}})
	ctx := context.Background()

	l := h.create(t, "m1", player("alice", false), models.GameTypeCTF, 4, "isl-9")

	assert.Equal(t, []string{"m1"}, h.armer.armed)
	assert.Equal(t, "Island isl-9", l.Island.Name)

	patches := h.chat.ops("patch")
	require.Len(t, patches, 1)
	assert.Equal(t, "m1", patches[0].MessageID)
	posts := h.chat.ops("post")
	require.Len(t, posts, 1)
	assert.Equal(t, "lobby-2", posts[0].ChannelID)

	stored, err := h.repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, stored.Status)
	assert.Equal(t, []string{"m1", posts[0].MessageID}, stored.MessageIDs)
	assert.Equal(t, 1, stored.PlayerCount)

	// companion message resolves to the same lobby
	found, err := h.repo.FindByMessage(ctx, posts[0].MessageID)
	require.NoError(t, err)
	assert.Equal(t, "m1", found.ID)
}

func TestCreateLobbyDisplayFailureClosesLobby(t *testing.T) {
	h := newHarness(t, Config{LobbyChannels: []string{"lobby-1"}})
	ctx := context.Background()
	h.chat.patchErr = errors.New("503 service unavailable")

	_, err := h.ctrl.CreateLobby(ctx, CreateRequest{
		MessageID: "m1", ChannelID: "lobby-1", Player: player("alice", false),
		GameType: string(models.GameTypeCTF), MinPlayers: 2, IslandChoice: "isl-1",
	})
	require.Error(t, err)

	stored, err := h.repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, stored.Status)

	// neither the game type nor the creator stays blocked
	h.chat.patchErr = nil
	h.create(t, "m2", player("bob", false), models.GameTypeCTF, 2, "isl-1")
	h.create(t, "m3", player("alice", false), models.GameTypeZombies, 2, "isl-1")
}

func TestCreateLobbyInvalidGameType(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.ctrl.CreateLobby(context.Background(), CreateRequest{
		MessageID: "m1", ChannelID: "lobby-1", Player: player("alice", false), GameType: "Tag",
	})
	assert.ErrorIs(t, err, models.ErrInvalidGameType)
	assert.Empty(t, h.armer.armed)
}

func TestCreateLobbyIslandResolutionFailureIsFatal(t *testing.T) {
	h := newHarness(t, Config{})
	h.ctrl.islands = fakeIslands{err: errors.New("directory down")}

	_, err := h.ctrl.CreateLobby(context.Background(), CreateRequest{
		MessageID: "m1", ChannelID: "lobby-1", Player: player("alice", false),
		GameType: string(models.GameTypeCTF), MinPlayers: 2, IslandChoice: "isl-1",
	})
	require.Error(t, err)
	_, getErr := h.repo.Get(context.Background(), "m1")
	assert.ErrorIs(t, getErr, ErrLobbyNotFound)
}

func TestCreateDeniedWhenGameTypeOpen(t *testing.T) {
	h := newHarness(t, Config{})
	h.create(t, "m1", player("alice", false), models.GameTypeZombies, 4, "isl-1")

	_, err := h.ctrl.CreateLobby(context.Background(), CreateRequest{
		MessageID: "m2", ChannelID: "lobby-1", Player: player("bob", false),
		GameType: string(models.GameTypeZombies), MinPlayers: 4, IslandChoice: "isl-1",
	})
	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, models.ReasonGameTypeExists, denied.Reason)
	assert.Equal(t, models.ActionCreate, denied.Action)

	_, getErr := h.repo.Get(context.Background(), "m2")
	assert.ErrorIs(t, getErr, ErrLobbyNotFound)
}

func TestCreateWithMyIslandRequiresLinkedIsland(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.ctrl.CreateLobby(context.Background(), CreateRequest{
		MessageID: "m1", ChannelID: "lobby-1", Player: player("alice", false),
		GameType: string(models.GameTypeCTF), MinPlayers: 2, IslandChoice: render.MyIslandValue,
	})
	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, models.ReasonNoIsland, denied.Reason)

	l := h.create(t, "m2", player("bob", true), models.GameTypeCTF, 2, render.MyIslandValue)
	assert.Equal(t, "isl-bob", l.Island.ID)
}

// min 2: A creates, B joins, lobby closes, messages are deleted, party is announced.
func TestJoinReachingThresholdClosesLobby(t *testing.T) {
	h := newHarness(t, Config{LobbyChannels: []string{"lobby-1"}, PartyChannel: "party"})
	ctx := context.Background()
	h.create(t, "m1", player("a", false), models.GameTypeCTF, 2, "isl-1")
	h.chat.reset()

	res, err := h.ctrl.JoinLobby(ctx, "m1", player("b", false))
	require.NoError(t, err)
	assert.True(t, res.Joined)
	assert.True(t, res.Filled)
	assert.Equal(t, models.StatusClosed, res.Lobby.Status)

	deletes := h.chat.ops("delete")
	require.Len(t, deletes, 1)
	assert.Equal(t, "m1", deletes[0].MessageID)

	posts := h.chat.ops("post")
	require.Len(t, posts, 1)
	assert.Equal(t, "party", posts[0].ChannelID)
	assert.Contains(t, posts[0].Payload.Content, "<@a>")
	assert.Contains(t, posts[0].Payload.Content, "<@b>")

	stored, err := h.repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, stored.Status)
	assert.Equal(t, []string{"a", "b"}, stored.PlayerIDs)

	// a further join is refused without mutation
	_, err = h.ctrl.JoinLobby(ctx, "m1", player("c", false))
	assert.ErrorIs(t, err, ErrLobbyClosed)
	stored, err = h.repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.PlayerCount)
}

func TestJoinKeepMessagesPolicy(t *testing.T) {
	h := newHarness(t, Config{FillPolicy: FillKeepMessages})
	h.create(t, "m1", player("a", false), models.GameTypeCTF, 2, "isl-1")
	h.chat.reset()

	_, err := h.ctrl.JoinLobby(context.Background(), "m1", player("b", false))
	require.NoError(t, err)

	assert.Empty(t, h.chat.ops("delete"))
	patches := h.chat.ops("patch")
	require.Len(t, patches, 1)
	assert.Contains(t, patches[0].Payload.Content, "CLOSED")
	assert.Empty(t, patches[0].Payload.Components)
}

func TestJoinBelowThresholdSyncsAllMessages(t *testing.T) {
	h := newHarness(t, Config{LobbyChannels: []string{"lobby-1", "lobby-2", "lobby-3"}})
	h.create(t, "m1", player("a", false), models.GameTypeCTF, 5, "isl-1")
	h.chat.reset()

	res, err := h.ctrl.JoinLobby(context.Background(), "m1", player("b", false))
	require.NoError(t, err)
	assert.False(t, res.Filled)

	patches := h.chat.ops("patch")
	assert.Len(t, patches, 3)
	for _, p := range patches {
		assert.Contains(t, p.Payload.Content, "(2/5)")
	}
}

func TestJoinIsIdempotentForMember(t *testing.T) {
	h := newHarness(t, Config{})
	h.create(t, "m1", player("a", false), models.GameTypeCTF, 5, "isl-1")

	res, err := h.ctrl.JoinLobby(context.Background(), "m1", player("a", false))
	require.NoError(t, err)
	assert.False(t, res.Joined)
	assert.Len(t, res.Lobby.Players, 1)
}

func TestJoinDeniedWhenInOtherLobby(t *testing.T) {
	h := newHarness(t, Config{})
	h.create(t, "m1", player("a", false), models.GameTypeCTF, 5, "isl-1")
	h.create(t, "m2", player("b", false), models.GameTypeZombies, 5, "isl-1")

	_, err := h.ctrl.JoinLobby(context.Background(), "m2", player("a", false))
	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, models.ReasonPlayerInOtherLobby, denied.Reason)
	assert.Equal(t, models.ActionJoin, denied.Action)
}

func TestLeaveLastPlayerClosesLobby(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	h.create(t, "m1", player("a", false), models.GameTypeCTF, 4, "isl-1")
	h.chat.reset()

	l, err := h.ctrl.LeaveLobby(ctx, "m1", player("a", false))
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, l.Status)
	require.Len(t, h.chat.ops("delete"), 1)

	stored, err := h.repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, stored.Status)
	assert.Zero(t, stored.PlayerCount)

	_, err = h.ctrl.LeaveLobby(ctx, "m1", player("a", false))
	assert.ErrorIs(t, err, ErrLobbyClosed)
}

func TestLeaveNonMemberIsNoop(t *testing.T) {
	h := newHarness(t, Config{})
	h.create(t, "m1", player("a", false), models.GameTypeCTF, 4, "isl-1")
	h.chat.reset()

	l, err := h.ctrl.LeaveLobby(context.Background(), "m1", player("z", false))
	require.NoError(t, err)
	assert.Len(t, l.Players, 1)
	assert.Empty(t, h.chat.calls)
}

func TestExpiryAfterManualCloseIsNoop(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	h.create(t, "m1", player("a", false), models.GameTypeCTF, 4, "isl-1")

	require.NoError(t, h.ctrl.CloseLobby(ctx, "m1"))
	h.chat.reset()

	closed, err := h.ctrl.CheckExpiry(ctx, "m1", true)
	require.NoError(t, err)
	assert.False(t, closed)
	assert.Empty(t, h.chat.calls)

	// closing twice is not an error either
	require.NoError(t, h.ctrl.CloseLobby(ctx, "m1"))
}

func TestExpiryClosesOpenLobby(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	h.create(t, "m1", player("a", false), models.GameTypeCTF, 4, "isl-1")

	closed, err := h.ctrl.CheckExpiry(ctx, "m1", true)
	require.NoError(t, err)
	assert.True(t, closed)

	_, err = h.ctrl.CheckExpiry(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrLobbyNotFound)
}

func TestCloseTreatsUnknownMessageAsSuccess(t *testing.T) {
	h := newHarness(t, Config{LobbyChannels: []string{"lobby-1", "lobby-2"}})
	h.create(t, "m1", player("a", false), models.GameTypeCTF, 4, "isl-1")
	h.chat.deleteFn = func(_, messageID string) error {
		if messageID == "m1" {
			return &models.UpstreamError{Service: "discord", StatusCode: 404, Err: discord.ErrUnknownMessage}
		}
		return errors.New("boom")
	}

	err := h.ctrl.CloseLobby(context.Background(), "m1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, discord.ErrUnknownMessage)
	assert.Equal(t, []string{"posted-1"}, h.armer.retried)

	stored, getErr := h.repo.Get(context.Background(), "m1")
	require.NoError(t, getErr)
	assert.Equal(t, models.StatusClosed, stored.Status)
}

func TestPickRandomIslandDrawsOnlyLinkedIslands(t *testing.T) {
	h := newHarness(t, Config{})
	l := &models.Lobby{Players: []models.Player{player("a", false), player("b", true), player("c", false), player("d", true)}}

	for i := 0; i < 50; i++ {
		island, err := h.ctrl.PickRandomIsland(l)
		require.NoError(t, err)
		assert.Contains(t, []string{"isl-b", "isl-d"}, island.ID)
	}

	_, err := h.ctrl.PickRandomIsland(&models.Lobby{Players: []models.Player{player("a", false)}})
	assert.ErrorIs(t, err, ErrNoIslandCandidates)
}

func TestRandomDrawsAreSafeAcrossRequests(t *testing.T) {
	h := newHarness(t, Config{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		l, err := models.NewLobby(fmt.Sprintf("m%d", i), "lobby-1", player("a", true), models.Game{Type: models.GameTypeVisitTrain, MinPlayers: 5}, nil, false, h.clock)
		require.NoError(t, err)
		l.AddPlayer(player("b", true))
		l.AddPlayer(player("c", true))

		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				island, err := h.ctrl.PickRandomIsland(l)
				assert.NoError(t, err)
				assert.Contains(t, []string{"isl-a", "isl-b", "isl-c"}, island.ID)
				assert.NoError(t, h.ctrl.RandomizeRoster(context.Background(), l))
			}
		}()
	}
	wg.Wait()
}

func TestRandomIslandPickedWhenFilled(t *testing.T) {
	h := newHarness(t, Config{PartyChannel: "party"})
	h.create(t, "m1", player("a", true), models.GameTypeFFADM, 2, render.RandomIslandValue)

	res, err := h.ctrl.JoinLobby(context.Background(), "m1", player("b", true))
	require.NoError(t, err)
	require.NotNil(t, res.Lobby.Island)
	assert.Contains(t, []string{"isl-a", "isl-b"}, res.Lobby.Island.ID)

	posts := h.chat.ops("post")
	require.Len(t, posts, 1)
	assert.Contains(t, posts[0].Payload.Content, "Island: **Home of")
}

func TestRandomIslandJoinDeniedWhenNoMemberHasIsland(t *testing.T) {
	h := newHarness(t, Config{PartyChannel: "party"})
	ctx := context.Background()
	h.create(t, "m1", player("a", true), models.GameTypeFFADM, 3, render.RandomIslandValue)

	_, err := h.ctrl.JoinLobby(ctx, "m1", player("b", false))
	require.NoError(t, err)
	_, err = h.ctrl.LeaveLobby(ctx, "m1", player("a", true))
	require.NoError(t, err)
	_, err = h.ctrl.JoinLobby(ctx, "m1", player("c", false))
	require.NoError(t, err)

	_, err = h.ctrl.JoinLobby(ctx, "m1", player("d", false))
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, models.ReasonNoIsland, denied.Reason)

	stored, err := h.repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, stored.Status)
	assert.Equal(t, []string{"b", "c"}, stored.PlayerIDs)

	// d is free to join elsewhere
	h.create(t, "m2", player("d", false), models.GameTypeCTF, 2, "isl-1")

	res, err := h.ctrl.JoinLobby(ctx, "m1", player("e", true))
	require.NoError(t, err)
	require.True(t, res.Filled)
	assert.Equal(t, "isl-e", res.Lobby.Island.ID)
}

func TestVisitTrainShufflesRosterOnFill(t *testing.T) {
	h := newHarness(t, Config{PartyChannel: "party"})
	ctx := context.Background()
	h.create(t, "m1", player("p0", true), models.GameTypeVisitTrain, 5, "")
	for _, id := range []string{"p1", "p2", "p3"} {
		_, err := h.ctrl.JoinLobby(ctx, "m1", player(id, true))
		require.NoError(t, err)
	}

	res, err := h.ctrl.JoinLobby(ctx, "m1", player("p4", true))
	require.NoError(t, err)
	require.True(t, res.Filled)
	assert.ElementsMatch(t, []string{"p0", "p1", "p2", "p3", "p4"}, res.Lobby.PlayerIDs)

	posts := h.chat.ops("post")
	require.Len(t, posts, 1)
	assert.Contains(t, posts[0].Payload.Content, "Stops:")
	assert.Equal(t, res.Lobby.Players[0].Island.URL, posts[0].Payload.Components[0].Components[0].URL)
}

func TestVisitTrainJoinRequiresIsland(t *testing.T) {
	h := newHarness(t, Config{})
	h.create(t, "m1", player("p0", true), models.GameTypeVisitTrain, 5, "")

	_, err := h.ctrl.JoinLobby(context.Background(), "m1", player("p1", false))
	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, models.ReasonNoIsland, denied.Reason)
}

func TestCloseStale(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	h.create(t, "old", player("a", false), models.GameTypeCTF, 4, "isl-1")
	h.clock = h.clock.Add(90 * time.Minute)
	h.create(t, "new", player("b", false), models.GameTypeZombies, 4, "isl-1")

	n, err := h.ctrl.CloseStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	old, err := h.repo.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, old.Status)
	fresh, err := h.repo.Get(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, fresh.Status)
}

func TestStatusNeverReopens(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	h.create(t, "m1", player("a", false), models.GameTypeCTF, 3, "isl-1")
	require.NoError(t, h.ctrl.CloseLobby(ctx, "m1"))

	_, err := h.ctrl.JoinLobby(ctx, "m1", player("b", false))
	assert.ErrorIs(t, err, ErrLobbyClosed)
	_, err = h.ctrl.LeaveLobby(ctx, "m1", player("a", false))
	assert.ErrorIs(t, err, ErrLobbyClosed)
	_, err = h.ctrl.CheckExpiry(ctx, "m1", false)
	require.NoError(t, err)

	stored, err := h.repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, stored.Status)
}
