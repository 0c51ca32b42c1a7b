package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRegistry tracks live sessions by token ID. A token whose session is gone is revoked.
type SessionRegistry interface {
	Put(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (userID string, ok bool, err error)
	// Delete reports whether the session existed.
	Delete(ctx context.Context, sessionID string) (bool, error)
}

const sessionKeyPrefix = "session:"

// RedisSessions keeps sessions in Redis with a TTL
type RedisSessions struct {
	client *redis.Client
}

// NewRedisSessions creates a Redis-backed session registry
func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client}
}

func (r *RedisSessions) Put(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, sessionKeyPrefix+sessionID, userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *RedisSessions) Get(ctx context.Context, sessionID string) (string, bool, error) {
	userID, err := r.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get session: %w", err)
	}
	return userID, true, nil
}

func (r *RedisSessions) Delete(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Del(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return n > 0, nil
}

// NewRedisClient connects to Redis and pings it
func NewRedisClient(ctx context.Context, addr, password string, db int, url string) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}
	if url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

type memorySession struct {
	userID    string
	expiresAt time.Time
}

// MemorySessions keeps sessions in process memory
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

// NewMemorySessions creates an in-memory session registry
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{
		sessions: make(map[string]memorySession),
		now:      time.Now,
	}
}

func (m *MemorySessions) Put(_ context.Context, sessionID, userID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = memorySession{userID: userID, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemorySessions) Get(_ context.Context, sessionID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return "", false, nil
	}
	if !m.now().Before(s.expiresAt) {
		delete(m.sessions, sessionID)
		return "", false, nil
	}
	return s.userID, true, nil
}

func (m *MemorySessions) Delete(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	return ok, nil
}
