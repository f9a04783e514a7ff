// internal/database/store.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Collections used by the bot.
const (
	CollectionPlayers    = "players"
	CollectionLobbies    = "lobbies"
	CollectionIslands    = "islands"
	CollectionTopIslands = "top_islands"
)

// ErrNotFound is returned by Get when no document exists for the id.
var ErrNotFound = errors.New("document not found")

// Op is a query comparison operator.
type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

// Store is a key-value document repository. Documents are JSON objects
// addressed by (collection, id). Writes are last-writer-wins; there is no
// compare-and-swap.
type Store interface {
	// Get decodes the document into dest, or returns an error wrapping ErrNotFound.
	Get(ctx context.Context, collection, id string, dest any) error

	// Set writes doc. With merge, top-level fields of doc overwrite the stored
	// document's fields and the rest are kept; without merge the document is replaced.
	Set(ctx context.Context, collection, id string, doc any, merge bool) error

	// Query returns every document whose field (dotted path) matches value under op.
	Query(ctx context.Context, collection, field string, op Op, value any) ([]json.RawMessage, error)
}

func notFound(collection, id string) error {
	return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
}

func fieldPath(field string) []string {
	return strings.Split(field, ".")
}

func checkOp(op Op) error {
	switch op {
	case OpEqual, OpArrayContains:
		return nil
	default:
		return fmt.Errorf("unsupported query operator %q", op)
	}
}
