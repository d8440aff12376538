package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/medtrack/internal/accounts"
)

// Data is the server-side state of a browser session.
type Data struct {
	Identity *accounts.Identity `json:"identity,omitempty"`
	Flashes  []string           `json:"flashes,omitempty"`
}

func (d *Data) empty() bool {
	return d == nil || (d.Identity == nil && len(d.Flashes) == 0)
}

// Store persists session data by session id. Load returns (nil, nil) for
// unknown or expired ids.
type Store interface {
	Load(ctx context.Context, id string) (*Data, error)
	Save(ctx context.Context, id string, data *Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps sessions in Redis as JSON under "session:<id>".
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	return &RedisStore{client: client}
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Data, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get: %w", err)
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return &data, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, data *Data, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key(id), raw, ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}

// MemoryStore keeps sessions in process. Sessions are lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	now   func() time.Time
}

type memoryEntry struct {
	raw     []byte
	expires time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Data, error) {
	s.mu.Lock()
	entry, ok := s.items[id]
	if ok && !entry.expires.IsZero() && s.now().After(entry.expires) {
		delete(s.items, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var data Data
	if err := json.Unmarshal(entry.raw, &data); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return &data, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, data *Data, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	entry := memoryEntry{raw: raw}
	if ttl > 0 {
		entry.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.items[id] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}
