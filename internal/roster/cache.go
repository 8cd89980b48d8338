package roster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/park285/goban-desk/internal/obslog"
	"github.com/park285/goban-desk/pkg/modapi"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const ModeratorsPath = "players/?is_moderator=true&page_size=100"

var ErrNoFetcher = errors.New("roster: no fetcher configured")

type Moderator struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Getter is the read half of the HTTP helper.
type Getter interface {
	Get(ctx context.Context, path string, out any) error
}

type Option func(*Cache)

// WithStore shares fetched rosters through s.
func WithStore(s Store) Option { return func(c *Cache) { c.store = s } }

// Cache holds the moderator roster for every viewer built on it. A
// successful fetch happens at most once per cache; concurrent loads share
// it. Failures leave the cache empty so the next Load retries.
type Cache struct {
	getter Getter
	store  Store
	group  singleflight.Group

	mu      sync.Mutex
	mods    []Moderator
	fetches int
}

func NewCache(g Getter, opts ...Option) *Cache {
	c := &Cache{getter: g}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the roster ordered with currentUser first, then by username.
func (c *Cache) Load(ctx context.Context, currentUser int64) ([]Moderator, error) {
	if mods, ok := c.cached(); ok {
		return sortFor(mods, currentUser), nil
	}
	v, err, _ := c.group.Do("moderators", func() (any, error) {
		if mods, ok := c.cached(); ok {
			return mods, nil
		}
		mods, err := c.fill(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.mods = mods
		c.mu.Unlock()
		return mods, nil
	})
	if err != nil {
		return nil, err
	}
	return sortFor(v.([]Moderator), currentUser), nil
}

// Cached returns the roster without fetching.
func (c *Cache) Cached(currentUser int64) []Moderator {
	mods, _ := c.cached()
	return sortFor(mods, currentUser)
}

// Fetches reports how many network fetches this cache has issued.
func (c *Cache) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

// Reset drops the in-process roster. A shared store keeps its copy.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.mods = nil
	c.fetches = 0
	c.mu.Unlock()
}

func (c *Cache) cached() ([]Moderator, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mods, c.mods != nil
}

func (c *Cache) fill(ctx context.Context) ([]Moderator, error) {
	if c.store != nil {
		mods, ok, err := c.store.Load(ctx)
		if err != nil {
			obslog.L().Warn("roster_store_load_failed", zap.Error(err))
		} else if ok {
			return mods, nil
		}
	}
	if c.getter == nil {
		return nil, ErrNoFetcher
	}
	c.mu.Lock()
	c.fetches++
	c.mu.Unlock()

	var page modapi.PlayerPage
	if err := c.getter.Get(ctx, ModeratorsPath, &page); err != nil {
		return nil, fmt.Errorf("fetch moderators: %w", err)
	}
	mods := make([]Moderator, 0, len(page.Results))
	for _, p := range page.Results {
		mods = append(mods, Moderator{ID: p.ID, Username: p.Username})
	}
	obslog.L().Info("roster_fetched", zap.Int("count", len(mods)))

	if c.store != nil {
		if err := c.store.Save(ctx, mods); err != nil {
			obslog.L().Warn("roster_store_save_failed", zap.Error(err))
		}
	}
	return mods, nil
}

func sortFor(mods []Moderator, me int64) []Moderator {
	if mods == nil {
		return nil
	}
	out := append([]Moderator(nil), mods...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ID == me || b.ID == me {
			return a.ID == me && b.ID != me
		}
		la, lb := strings.ToLower(a.Username), strings.ToLower(b.Username)
		if la != lb {
			return la < lb
		}
		return a.Username < b.Username
	})
	return out
}
