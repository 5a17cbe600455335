package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore guarda o estado "active" dos refresh tokens. A implementação
// Redis é a padrão; a variante em memória cobre instalações sem REDIS_URL.
type SessionStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
}

// ErrSessionNotFound indica chave ausente ou expirada.
var ErrSessionNotFound = errors.New("sessão não encontrada")

// RedisSessions implementa SessionStore sobre um cliente Redis.
type RedisSessions struct {
	client *redis.Client
}

// NewRedisSessions cria o armazenamento Redis.
func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client}
}

func (s *RedisSessions) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisSessions) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisSessions) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

type memorySession struct {
	value   string
	expires time.Time
}

// MemorySessions implementa SessionStore em memória com expiração simples.
type MemorySessions struct {
	mu      sync.Mutex
	entries map[string]memorySession
}

// NewMemorySessions cria o armazenamento em memória vazio.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{entries: make(map[string]memorySession)}
}

func (s *MemorySessions) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memorySession{value: value, expires: time.Now().Add(ttl)}

	for k, entry := range s.entries {
		if time.Now().After(entry.expires) {
			delete(s.entries, k)
		}
	}
	return nil
}

func (s *MemorySessions) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || time.Now().After(entry.expires) {
		delete(s.entries, key)
		return "", ErrSessionNotFound
	}
	return entry.value, nil
}

func (s *MemorySessions) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
