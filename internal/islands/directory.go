// internal/islands/directory.go
package islands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jason-s-yu/lobbybot/internal/cache"
	"github.com/jason-s-yu/lobbybot/internal/database"
	"github.com/jason-s-yu/lobbybot/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// TopDocumentID is the document in CollectionTopIslands holding the current top list.
const TopDocumentID = "latest"

type topDocument struct {
	Islands []models.Island `json:"islands"`
}

// Directory resolves, searches and ranks islands. Resolution goes to the
// API through a Redis cache; search and top lists read the indexed copies in
// the document store.
type Directory struct {
	api    *API
	store  database.Store
	cache  *cache.Cache // nil disables caching
	group  singleflight.Group
	logger *logrus.Logger
}

// NewDirectory builds a directory. cache may be nil.
func NewDirectory(api *API, store database.Store, c *cache.Cache, logger *logrus.Logger) *Directory {
	return &Directory{api: api, store: store, cache: c, logger: logger}
}

// Resolve returns the island with its name and join URL filled in.
// Concurrent lookups of the same id share one upstream request. Failures are
// returned as is; there is no fallback island.
func (d *Directory) Resolve(ctx context.Context, id string) (*models.Island, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &models.ValidationError{Field: "island", Err: models.ErrMissingField}
	}

	if d.cache != nil {
		var cached models.Island
		found, err := d.cache.Get(ctx, id, &cached)
		if err != nil {
			d.logger.WithError(err).WithField("island_id", id).Warn("island cache read failed")
		}
		if found && cached.Resolved() {
			return &cached, nil
		}
	}

	// the shared lookup outlives any one caller's cancellation
	v, err, _ := d.group.Do(id, func() (any, error) {
		return d.api.Preview(context.WithoutCancel(ctx), id)
	})
	if err != nil {
		return nil, fmt.Errorf("resolve island %s: %w", id, err)
	}
	island := *v.(*models.Island)

	if d.cache != nil {
		if err := d.cache.Set(ctx, id, island); err != nil {
			d.logger.WithError(err).WithField("island_id", id).Warn("island cache write failed")
		}
	}
	return &island, nil
}

// Search returns indexed islands whose name has a word or word prefix equal
// to query, most favorited first.
func (d *Directory) Search(ctx context.Context, query string) ([]models.Island, error) {
	token := strings.ToLower(strings.TrimSpace(query))
	if token == "" {
		return nil, nil
	}
	docs, err := d.store.Query(ctx, database.CollectionIslands, "search_tokens", database.OpArrayContains, token)
	if err != nil {
		return nil, fmt.Errorf("search islands: %w", err)
	}

	found := make([]models.Island, 0, len(docs))
	for _, raw := range docs {
		var i models.Island
		if err := json.Unmarshal(raw, &i); err != nil {
			return nil, fmt.Errorf("decode island: %w", err)
		}
		found = append(found, i)
	}
	sort.SliceStable(found, func(a, b int) bool {
		return found[a].FavoritedCount > found[b].FavoritedCount
	})
	return found, nil
}

// Top returns the most recently indexed top list, empty if none was indexed yet.
func (d *Directory) Top(ctx context.Context) ([]models.Island, error) {
	var doc topDocument
	err := d.store.Get(ctx, database.CollectionTopIslands, TopDocumentID, &doc)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load top islands: %w", err)
	}
	return doc.Islands, nil
}
