package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-promo/internal/cache"
)

// Store keeps live carts between commands.
type Store interface {
	Get(ctx context.Context, id string) (*Cart, error)
	Save(ctx context.Context, c *Cart, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps carts as JSON documents that expire after the session TTL.
type RedisStore struct {
	R *redis.Client
}

// Get implements Store.
func (s RedisStore) Get(ctx context.Context, id string) (*Cart, error) {
	data, err := s.R.Get(ctx, cache.KeyCart(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return &c, nil
}

// Save implements Store.
func (s RedisStore) Save(ctx context.Context, c *Cart, ttl time.Duration) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return s.R.Set(ctx, cache.KeyCart(c.ID), data, ttl).Err()
}

// Delete implements Store.
func (s RedisStore) Delete(ctx context.Context, id string) error {
	return s.R.Del(ctx, cache.KeyCart(id)).Err()
}

// MemoryStore is an in-process Store for tests and single-node tooling. TTLs
// are ignored.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]*Cart)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, c *Cart, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[c.ID] = c.Clone()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, id)
	return nil
}
