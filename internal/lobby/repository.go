// internal/lobby/repository.go
package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jason-s-yu/lobbybot/internal/database"
	"github.com/jason-s-yu/lobbybot/internal/models"
)

var (
	// ErrLobbyNotFound is returned when no lobby matches an id or message id.
	ErrLobbyNotFound = errors.New("lobby not found")
	// ErrPlayerNotFound is returned when a player has never interacted with the bot.
	ErrPlayerNotFound = errors.New("player not found")
)

// Repository persists lobbies and players in the document store.
type Repository struct {
	store database.Store
}

// NewRepository wraps a document store.
func NewRepository(store database.Store) *Repository {
	return &Repository{store: store}
}

// Get loads a lobby by id.
func (r *Repository) Get(ctx context.Context, id string) (*models.Lobby, error) {
	var l models.Lobby
	err := r.store.Get(ctx, database.CollectionLobbies, id, &l)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrLobbyNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// FindByMessage resolves a lobby from any of its mirrored message ids. The
// origin message id is the lobby id, so that lookup is tried first.
func (r *Repository) FindByMessage(ctx context.Context, messageID string) (*models.Lobby, error) {
	l, err := r.Get(ctx, messageID)
	if err == nil || !errors.Is(err, ErrLobbyNotFound) {
		return l, err
	}

	docs, err := r.store.Query(ctx, database.CollectionLobbies, "message_ids", database.OpArrayContains, messageID)
	if err != nil {
		return nil, fmt.Errorf("find lobby by message %s: %w", messageID, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: message %s", ErrLobbyNotFound, messageID)
	}
	return decodeLobby(docs[len(docs)-1])
}

// Create writes a new lobby, replacing any document with the same id.
func (r *Repository) Create(ctx context.Context, l *models.Lobby) error {
	l.RefreshDerived()
	if err := r.store.Set(ctx, database.CollectionLobbies, l.ID, l, false); err != nil {
		return fmt.Errorf("create lobby %s: %w", l.ID, err)
	}
	return nil
}

// Save merges the lobby into its stored document after recomputing the
// derived roster fields.
func (r *Repository) Save(ctx context.Context, l *models.Lobby) error {
	l.RefreshDerived()
	if err := r.store.Set(ctx, database.CollectionLobbies, l.ID, l, true); err != nil {
		return fmt.Errorf("save lobby %s: %w", l.ID, err)
	}
	return nil
}

// OpenLobbies returns a snapshot of every open lobby.
func (r *Repository) OpenLobbies(ctx context.Context) ([]*models.Lobby, error) {
	docs, err := r.store.Query(ctx, database.CollectionLobbies, "status", database.OpEqual, string(models.StatusOpen))
	if err != nil {
		return nil, fmt.Errorf("query open lobbies: %w", err)
	}
	lobbies := make([]*models.Lobby, 0, len(docs))
	for _, d := range docs {
		l, err := decodeLobby(d)
		if err != nil {
			return nil, err
		}
		lobbies = append(lobbies, l)
	}
	return lobbies, nil
}

// GetPlayer loads a player by chat user id.
func (r *Repository) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	var p models.Player
	err := r.store.Get(ctx, database.CollectionPlayers, id, &p)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePlayer upserts the player keyed by id.
func (r *Repository) SavePlayer(ctx context.Context, p *models.Player) error {
	if err := r.store.Set(ctx, database.CollectionPlayers, p.ID, p, true); err != nil {
		return fmt.Errorf("save player %s: %w", p.ID, err)
	}
	return nil
}

// TouchPlayer loads the player, creating it on first contact, and refreshes
// the display name.
func (r *Repository) TouchPlayer(ctx context.Context, id, name string) (*models.Player, error) {
	p, err := r.GetPlayer(ctx, id)
	created := false
	if errors.Is(err, ErrPlayerNotFound) {
		p, err = models.NewPlayer(id, name)
		created = true
	}
	if err != nil {
		return nil, err
	}
	if !created && (name == "" || p.Name == name) {
		return p, nil
	}
	p.SetName(name)
	if err := r.SavePlayer(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeLobby(raw json.RawMessage) (*models.Lobby, error) {
	var l models.Lobby
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("decode lobby: %w", err)
	}
	return &l, nil
}
