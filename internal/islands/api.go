// internal/islands/api.go
package islands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/lobbybot/internal/models"
)

// DefaultAPIBase is the Nifty Island API root.
const DefaultAPIBase = "https://api.niftyisland.com"

// JoinURLBase is where island deep links live.
const JoinURLBase = "https://niftyis.land"

type apiOwner struct {
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

type apiIsland struct {
	ValueID        string      `json:"valueId"`
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Owner          apiOwner    `json:"owner"`
	DeeplinkIndex  json.Number `json:"deeplinkIndex"`
	PlayerCount    int         `json:"playerCount"`
	FavoritedCount int         `json:"favoritedCount"`
	BloomsPlaced   int         `json:"bloomsPlaced"`
}

type islandPage struct {
	Total int         `json:"total"`
	Items []apiIsland `json:"items"`
}

// JoinURL builds the public deep link for an island.
func JoinURL(ownerUsername, deeplinkIndex string) string {
	return fmt.Sprintf("%s/%s/%s", JoinURLBase, ownerUsername, deeplinkIndex)
}

// API is a small client for the island directory's HTTP API.
type API struct {
	base string
	http *http.Client
}

// NewAPI returns a client rooted at base (DefaultAPIBase when empty).
func NewAPI(base string) *API {
	if base == "" {
		base = DefaultAPIBase
	}
	return &API{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *API) get(ctx context.Context, path string, q url.Values, out any) error {
	u := a.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return &models.UpstreamError{Service: "nifty", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &models.UpstreamError{
			Service:    "nifty",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("GET %s: %s", path, strings.TrimSpace(string(body))),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &models.UpstreamError{Service: "nifty", StatusCode: resp.StatusCode, Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return nil
}

// Preview fetches the display name and join URL of one island.
func (a *API) Preview(ctx context.Context, id string) (*models.Island, error) {
	var raw apiIsland
	if err := a.get(ctx, "/api/islands/"+url.PathEscape(id)+"/preview", nil, &raw); err != nil {
		return nil, err
	}
	if raw.Name == "" || raw.Owner.Username == "" || raw.DeeplinkIndex == "" {
		return nil, &models.UpstreamError{Service: "nifty", Err: fmt.Errorf("incomplete preview for island %s", id)}
	}
	return &models.Island{
		ID:    id,
		Name:  raw.Name,
		URL:   JoinURL(raw.Owner.Username, raw.DeeplinkIndex.String()),
		Owner: raw.Owner.Nickname,
	}, nil
}

// List fetches one page of islands. order may be empty or e.g. "active".
func (a *API) List(ctx context.Context, limit, offset int, order string) (int, []apiIsland, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if order != "" {
		q.Set("order", order)
	}
	var page islandPage
	if err := a.get(ctx, "/api/v2/islands", q, &page); err != nil {
		return 0, nil, err
	}
	return page.Total, page.Items, nil
}
