package roster

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKey   = "roster:moderators"
	defaultTTL = 10 * time.Minute
)

// Store shares a fetched roster beyond one Cache.
type Store interface {
	Load(ctx context.Context) ([]Moderator, bool, error)
	Save(ctx context.Context, mods []Moderator) error
	Clear(ctx context.Context) error
}

type MemoryStore struct {
	mu      sync.Mutex
	mods    []Moderator
	expires time.Time
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now}
}

func (m *MemoryStore) Load(_ context.Context) ([]Moderator, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mods == nil || m.now().After(m.expires) {
		return nil, false, nil
	}
	return append([]Moderator(nil), m.mods...), true, nil
}

func (m *MemoryStore) Save(_ context.Context, mods []Moderator) error {
	m.mu.Lock()
	m.mods = append([]Moderator(nil), mods...)
	m.expires = m.now().Add(m.ttl)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.mods = nil
	m.mu.Unlock()
	return nil
}

// RedisStore keeps the roster as JSON under one key with a TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// NewRedisStoreFromURL parses a redis:// URL.
func NewRedisStoreFromURL(raw string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(raw)
	if err != nil {
		return nil, err
	}
	return NewRedisStore(redis.NewClient(opts), ttl), nil
}

func (s *RedisStore) Load(ctx context.Context) ([]Moderator, bool, error) {
	raw, err := s.rdb.Get(ctx, redisKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var mods []Moderator
	if err := json.Unmarshal(raw, &mods); err != nil {
		return nil, false, err
	}
	return mods, true, nil
}

func (s *RedisStore) Save(ctx context.Context, mods []Moderator) error {
	raw, err := json.Marshal(mods)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, redisKey, raw, s.ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, redisKey).Err()
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
