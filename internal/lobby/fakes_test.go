package lobby

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/lobbybot/internal/database"
	"github.com/jason-s-yu/lobbybot/internal/discord"
	"github.com/jason-s-yu/lobbybot/internal/models"
	"github.com/sirupsen/logrus"
)

type chatCall struct {
	Op        string
	ChannelID string
	MessageID string
	Payload   discord.MessagePayload
}

// fakeChat records every call and serves ListMessages from a fixed slice.
type fakeChat struct {
	mu       sync.Mutex
	calls    []chatCall
	nextID   int
	listed   []discord.Message
	deleteFn func(channelID, messageID string) error
	bulkErr  error
	patchErr error
}

func (f *fakeChat) record(c chatCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeChat) PostMessage(_ context.Context, channelID string, p discord.MessagePayload) (*discord.Message, error) {
	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("posted-%d", f.nextID)
	f.mu.Unlock()
	f.record(chatCall{Op: "post", ChannelID: channelID, MessageID: id, Payload: p})
	return &discord.Message{ID: id, ChannelID: channelID, Content: p.Content}, nil
}

func (f *fakeChat) PatchMessage(_ context.Context, channelID, messageID string, p discord.MessagePayload) error {
	f.record(chatCall{Op: "patch", ChannelID: channelID, MessageID: messageID, Payload: p})
	return f.patchErr
}

func (f *fakeChat) DeleteMessage(_ context.Context, channelID, messageID string) error {
	f.record(chatCall{Op: "delete", ChannelID: channelID, MessageID: messageID})
	if f.deleteFn != nil {
		return f.deleteFn(channelID, messageID)
	}
	return nil
}

func (f *fakeChat) BulkDeleteMessages(_ context.Context, channelID string, ids []string) error {
	for _, id := range ids {
		f.record(chatCall{Op: "bulk", ChannelID: channelID, MessageID: id})
	}
	return f.bulkErr
}

func (f *fakeChat) ListMessages(context.Context, string, int) ([]discord.Message, error) {
	return f.listed, nil
}

func (f *fakeChat) PinMessage(_ context.Context, channelID, messageID string) error {
	f.record(chatCall{Op: "pin", ChannelID: channelID, MessageID: messageID})
	return nil
}

func (f *fakeChat) ops(op string) []chatCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chatCall
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeChat) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type fakeIslands struct {
	err error
}

func (f fakeIslands) Resolve(_ context.Context, id string) (*models.Island, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Island{ID: id, Name: "Island " + id, URL: "https://niftyis.land/owner/" + id}, nil
}

type fakeArmer struct {
	armed   []string
	retried []string
}

func (f *fakeArmer) Arm(_ context.Context, id string) error {
	f.armed = append(f.armed, id)
	return nil
}

func (f *fakeArmer) RetryDelete(_ context.Context, _, messageID string) error {
	f.retried = append(f.retried, messageID)
	return nil
}

type harness struct {
	ctrl  *Controller
	repo  *Repository
	chat  *fakeChat
	armer *fakeArmer
	clock time.Time
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	h := &harness{
		repo:  NewRepository(database.NewMemoryStore()),
		chat:  &fakeChat{},
		armer: &fakeArmer{},
		clock: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	h.ctrl = NewController(h.repo, h.chat, fakeIslands{}, h.armer, logger, cfg)
	h.ctrl.rng = rand.New(rand.NewPCG(1, 2))
	h.ctrl.now = func() time.Time { return h.clock }
	return h
}

func player(id string, withIsland bool) models.Player {
	p := models.Player{ID: id, Name: "name-" + id, Username: "user-" + id}
	if withIsland {
		p.Island = &models.Island{ID: "isl-" + id, Name: "Home of " + id, URL: "https://niftyis.land/" + id + "/1"}
	}
	return p
}

func (h *harness) create(t *testing.T, msgID string, p models.Player, gameType models.GameType, min int, island string) *models.Lobby {
	t.Helper()
	l, err := h.ctrl.CreateLobby(context.Background(), CreateRequest{
		MessageID:    msgID,
		ChannelID:    "lobby-1",
		Player:       p,
		GameType:     string(gameType),
		MinPlayers:   min,
		IslandChoice: island,
	})
	if err != nil {
		t.Fatalf("create lobby %s: %v", msgID, err)
	}
	return l
}
