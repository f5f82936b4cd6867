// Package blizzard is the listings source backed by the Battle.net game
// data API.
package blizzard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// Config configures the API client. BaseURL may contain "{region}".
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RPS          float64
	Burst        int
	Timeout      time.Duration
}

// Classic auction houses are split per faction.
var auctionHouseIDs = map[domain.Faction]int{
	domain.FactionAlliance: 2,
	domain.FactionHorde:    6,
}

var connectedRealmHref = regexp.MustCompile(`connected-realm/(\d+)`)

// Client calls the game data API with a client-credentials token.
type Client struct {
	cfg     Config
	http    *resty.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time

	cache       domain.ResponseCache
	realmTTL    time.Duration
	listingsTTL time.Duration

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClient creates a Client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	hc := resty.New()
	hc.SetTimeout(cfg.Timeout)
	hc.SetRetryCount(2)
	hc.SetRetryWaitTime(time.Second)
	hc.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
	})

	return &Client{
		cfg:     cfg,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		logger:  logger.With(slog.String("component", "blizzard")),
		now:     time.Now,
	}
}

// WithCache serves repeated requests from cache. Realm lookups are kept for
// realmTTL and auction snapshots for listingsTTL; a zero TTL disables
// caching for that kind of request.
func (c *Client) WithCache(cache domain.ResponseCache, realmTTL, listingsTTL time.Duration) *Client {
	c.cache = cache
	c.realmTTL = realmTTL
	c.listingsTTL = listingsTTL
	return c
}

func (c *Client) baseURL(region domain.Region) string {
	return strings.TrimRight(strings.ReplaceAll(c.cfg.BaseURL, "{region}", string(region)), "/")
}

// accessToken returns a cached token, fetching a new one shortly before the
// old one expires.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		Post(c.cfg.TokenURL)
	if err != nil {
		return "", fmt.Errorf("blizzard: token: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("blizzard: token: status %d", resp.StatusCode())
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body(), &tok); err != nil {
		return "", fmt.Errorf("blizzard: token: decode: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("blizzard: token: empty access token")
	}
	c.token = tok.AccessToken
	c.expires = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

// cachedResponse is a response body together with the time it was fetched,
// so a cached snapshot keeps its original timestamp.
type cachedResponse struct {
	FetchedAt int64           `json:"fetched_at"`
	Body      json.RawMessage `json:"body"`
}

// cacheKey identifies a request by namespace, locale and path.
func cacheKey(ns domain.Namespace, path string) string {
	sum := sha256.Sum256([]byte(ns.String() + "|" + ns.Locale() + "|" + path))
	return hex.EncodeToString(sum[:])
}

// get decodes the JSON body of path under the namespace's regional host
// into out and returns when the body was fetched. With a cache and a
// positive ttl, a cached body is used while it lasts.
func (c *Client) get(ctx context.Context, ns domain.Namespace, path string, ttl time.Duration, out any) (time.Time, error) {
	var key string
	if c.cache != nil && ttl > 0 {
		key = cacheKey(ns, path)
		if fetched, ok := c.fromCache(ctx, key, path, out); ok {
			return fetched, nil
		}
	}

	body, err := c.fetch(ctx, ns, path)
	if err != nil {
		return time.Time{}, err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return time.Time{}, fmt.Errorf("blizzard: get %s: decode: %w", path, err)
	}
	fetched := c.now()
	if key != "" {
		c.toCache(ctx, key, path, fetched, body, ttl)
	}
	return fetched, nil
}

func (c *Client) fromCache(ctx context.Context, key, path string, out any) (time.Time, bool) {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("response cache read failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return time.Time{}, false
	}
	var entry cachedResponse
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("response cache entry unreadable", slog.String("path", path), slog.String("error", err.Error()))
		return time.Time{}, false
	}
	if err := json.Unmarshal(entry.Body, out); err != nil {
		c.logger.Warn("response cache entry unreadable", slog.String("path", path), slog.String("error", err.Error()))
		return time.Time{}, false
	}
	c.logger.Debug("served from cache", slog.String("path", path))
	return time.Unix(entry.FetchedAt, 0), true
}

func (c *Client) toCache(ctx context.Context, key, path string, fetched time.Time, body []byte, ttl time.Duration) {
	data, err := json.Marshal(cachedResponse{FetchedAt: fetched.Unix(), Body: body})
	if err == nil {
		err = c.cache.Set(ctx, key, data, ttl)
	}
	if err != nil {
		c.logger.Warn("response cache write failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// fetch performs the authenticated request and returns the raw body.
func (c *Client) fetch(ctx context.Context, ns domain.Namespace, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("blizzard: rate limit: %w", err)
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"namespace": ns.String(),
			"locale":    ns.Locale(),
		}).
		Get(c.baseURL(ns.Region) + path)
	if err != nil {
		return nil, fmt.Errorf("blizzard: get %s: %w", path, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
	}
	if resp.IsError() {
		return nil, fmt.Errorf("blizzard: get %s: status %d", path, resp.StatusCode())
	}
	c.logger.Debug("fetched", slog.String("path", path), slog.String("namespace", ns.String()), slog.Int("bytes", len(resp.Body())))
	return resp.Body(), nil
}

// ConnectedRealmIDs lists the connected realms of a namespace.
func (c *Client) ConnectedRealmIDs(ctx context.Context, ns domain.Namespace) ([]int32, error) {
	var index struct {
		ConnectedRealms []struct {
			Href string `json:"href"`
		} `json:"connected_realms"`
	}
	if _, err := c.get(ctx, ns, "/data/wow/connected-realm/index", c.realmTTL, &index); err != nil {
		return nil, err
	}
	ids := make([]int32, 0, len(index.ConnectedRealms))
	for _, cr := range index.ConnectedRealms {
		m := connectedRealmHref.FindStringSubmatch(cr.Href)
		if m == nil {
			c.logger.Warn("unrecognised connected realm href", slog.String("href", cr.Href))
			continue
		}
		id, err := strconv.ParseInt(m[1], 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, int32(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type realmWire struct {
	ID       int32  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Category string `json:"category"`
	Timezone string `json:"timezone"`
	Locale   string `json:"locale"`
	Type     struct {
		Type string `json:"type"`
	} `json:"type"`
}

// ConnectedRealm fetches one connected realm and its realms.
func (c *Client) ConnectedRealm(ctx context.Context, ns domain.Namespace, crid int32) (domain.ConnectedRealm, error) {
	var wire struct {
		ID     int32       `json:"id"`
		Realms []realmWire `json:"realms"`
	}
	if _, err := c.get(ctx, ns, fmt.Sprintf("/data/wow/connected-realm/%d", crid), c.realmTTL, &wire); err != nil {
		return domain.ConnectedRealm{}, err
	}
	cr := domain.ConnectedRealm{ID: wire.ID, Realms: make([]domain.Realm, 0, len(wire.Realms))}
	for _, r := range wire.Realms {
		cr.Realms = append(cr.Realms, domain.Realm{
			ID:         r.ID,
			Name:       r.Name,
			Slug:       r.Slug,
			Timezone:   r.Timezone,
			Locale:     r.Locale,
			IsHardcore: strings.EqualFold(r.Category, "hardcore") || strings.EqualFold(r.Type.Type, "hardcore"),
		})
	}
	return cr, nil
}

// Auctions fetches a connected realm's auctions. Classic namespaces need a
// faction.
func (c *Client) Auctions(ctx context.Context, ns domain.Namespace, crid int32, faction domain.Faction) (*domain.AuctionsResponse, error) {
	path := fmt.Sprintf("/data/wow/connected-realm/%d/auctions", crid)
	if ns.GameVersion.IsClassic() {
		ahID, ok := auctionHouseIDs[faction]
		if !ok {
			return nil, fmt.Errorf("blizzard: auctions: classic needs a faction, got %q", faction)
		}
		path = fmt.Sprintf("%s/%d", path, ahID)
	}
	var resp domain.AuctionsResponse
	fetched, err := c.get(ctx, ns, path, c.listingsTTL, &resp)
	if err != nil {
		return nil, err
	}
	resp.Timestamp = int32(fetched.Unix())
	return &resp, nil
}

// Commodities fetches the region-wide commodity listings.
func (c *Client) Commodities(ctx context.Context, ns domain.Namespace) (*domain.CommoditiesResponse, error) {
	var resp domain.CommoditiesResponse
	fetched, err := c.get(ctx, ns, "/data/wow/auctions/commodities", c.listingsTTL, &resp)
	if err != nil {
		return nil, err
	}
	resp.Timestamp = int32(fetched.Unix())
	return &resp, nil
}
