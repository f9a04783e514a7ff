// internal/islands/indexer.go
package islands

import (
	"context"
	"fmt"
	"strings"

	"github.com/jason-s-yu/lobbybot/internal/database"
	"github.com/jason-s-yu/lobbybot/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	indexBatchSize  = 500
	minBloomsPlaced = 25
	topCount        = 10
)

// Indexer copies the island directory into the document store so autocomplete
// can search it without calling the API.
type Indexer struct {
	api    *API
	store  database.Store
	logger *logrus.Logger
}

func NewIndexer(api *API, store database.Store, logger *logrus.Logger) *Indexer {
	return &Indexer{api: api, store: store, logger: logger}
}

// SearchTokens returns the lowercase words of name followed by every prefix
// of every word.
func SearchTokens(name string) []string {
	words := strings.Fields(strings.ToLower(name))
	tokens := append([]string{}, words...)
	for _, w := range words {
		r := []rune(w)
		for i := 1; i <= len(r); i++ {
			tokens = append(tokens, string(r[:i]))
		}
	}
	return tokens
}

func toIsland(raw apiIsland) models.Island {
	id := raw.ValueID
	if id == "" {
		id = raw.ID
	}
	owner := raw.Owner.Nickname
	if owner == "" {
		owner = raw.Owner.Username
	}
	return models.Island{
		ID:             id,
		Name:           raw.Name,
		URL:            JoinURL(raw.Owner.Username, raw.DeeplinkIndex.String()),
		Owner:          owner,
		PlayerCount:    raw.PlayerCount,
		FavoritedCount: raw.FavoritedCount,
		SearchTokens:   SearchTokens(raw.Name),
	}
}

// eligible drops barely built islands.
func eligible(items []apiIsland) []models.Island {
	out := make([]models.Island, 0, len(items))
	for _, raw := range items {
		if raw.BloomsPlaced < minBloomsPlaced {
			continue
		}
		out = append(out, toIsland(raw))
	}
	return out
}

// IndexAll pages through every island and upserts the eligible ones. A page
// that fails to load or write is logged and skipped. Returns how many islands
// were written.
func (ix *Indexer) IndexAll(ctx context.Context) (int, error) {
	total, _, err := ix.api.List(ctx, 1, 0, "")
	if err != nil {
		return 0, fmt.Errorf("count islands: %w", err)
	}
	ix.logger.WithField("total", total).Info("indexing islands")

	written := 0
	for offset := 0; offset < total; offset += indexBatchSize {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		_, items, err := ix.api.List(ctx, indexBatchSize, offset, "")
		if err != nil {
			ix.logger.WithError(err).WithField("offset", offset).Warn("failed to fetch island page")
			continue
		}
		for _, island := range eligible(items) {
			if err := ix.store.Set(ctx, database.CollectionIslands, island.ID, island, false); err != nil {
				ix.logger.WithError(err).WithField("island_id", island.ID).Warn("failed to index island")
				continue
			}
			written++
		}
	}
	ix.logger.WithField("written", written).Info("island index complete")
	return written, nil
}

// IndexTop replaces the top list with the currently most active islands.
func (ix *Indexer) IndexTop(ctx context.Context) ([]models.Island, error) {
	_, items, err := ix.api.List(ctx, topCount, 0, "active")
	if err != nil {
		return nil, fmt.Errorf("fetch top islands: %w", err)
	}
	top := eligible(items)
	if err := ix.store.Set(ctx, database.CollectionTopIslands, TopDocumentID, topDocument{Islands: top}, false); err != nil {
		return nil, fmt.Errorf("store top islands: %w", err)
	}
	return top, nil
}
