package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "wavebot"

// RedisStore implements ports.StateStore on Redis.
// Keys are wavebot:<SYMBOL>:risk and wavebot:<SYMBOL>:portfolio, without expiry.
type RedisStore struct {
	client *redis.Client
	symbol string
	mu     sync.Mutex
}

// NewRedisStore connects to addr and verifies the connection with a PING.
func NewRedisStore(ctx context.Context, addr, password string, db int, symbol string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("storage.NewRedisStore: ping %s: %w", addr, err)
	}
	return &RedisStore{client: client, symbol: strings.ToUpper(symbol)}, nil
}

// Close closes the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Key returns the Redis key holding a snapshot kind.
func (s *RedisStore) Key(kind string) string {
	return keyPrefix + ":" + s.symbol + ":" + kind
}

// LoadRiskState returns the saved risk state, or nil when none was saved.
func (s *RedisStore) LoadRiskState(ctx context.Context) (*domain.RiskState, error) {
	var st domain.RiskState
	found, err := s.get(ctx, kindRisk, &st)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadRiskState: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &st, nil
}

// SaveRiskState stores the risk state.
func (s *RedisStore) SaveRiskState(ctx context.Context, state domain.RiskState) error {
	if err := s.set(ctx, kindRisk, state); err != nil {
		return fmt.Errorf("storage.SaveRiskState: %w", err)
	}
	return nil
}

// LoadPortfolio returns the saved portfolio snapshot, or nil when none was saved.
func (s *RedisStore) LoadPortfolio(ctx context.Context) (*domain.PortfolioSnapshot, error) {
	var snap domain.PortfolioSnapshot
	found, err := s.get(ctx, kindPortfolio, &snap)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadPortfolio: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &snap, nil
}

// SavePortfolio stores the portfolio snapshot.
func (s *RedisStore) SavePortfolio(ctx context.Context, snap domain.PortfolioSnapshot) error {
	if err := s.set(ctx, kindPortfolio, snap); err != nil {
		return fmt.Errorf("storage.SavePortfolio: %w", err)
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, kind string, dest any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.client.Get(ctx, s.Key(kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", kind, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", kind, err)
	}
	return true, nil
}

func (s *RedisStore) set(ctx context.Context, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.client.Set(ctx, s.Key(kind), data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", kind, err)
	}
	return nil
}
