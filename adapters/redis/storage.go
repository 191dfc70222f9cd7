package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"learnxp/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" env:"LEARNXP_REDIS_ADDR"`
	Password     string        `json:"password,omitempty" env:"LEARNXP_REDIS_PASSWORD"`
	DB           int           `json:"db" env:"LEARNXP_REDIS_DB"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements engine.Storage on Redis.
//
// Each user's record lives in a single hash:
//
//	game:{user_id} -> { data: JSON UserGameState, version: int64 }
//
// The version field is the concurrency token. Save runs a Lua script that
// compares the stored version against the one the caller read and swaps the
// whole record atomically, so concurrent awards against the same user never
// lose updates.
type Store struct {
	client *redis.Client
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func userKey(user core.UserID) string {
	return fmt.Sprintf("game:%s", user)
}

// createScript provisions the record only if the key does not exist yet.
var createScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 then
		return 0
	end
	redis.call('HSET', KEYS[1], 'data', ARGV[1], 'version', 1)
	return 1
`)

// saveScript is a compare-and-swap on the version field.
// Returns 1 on success, 0 on version mismatch, -1 when the record is missing.
var saveScript = redis.NewScript(`
	local version = redis.call('HGET', KEYS[1], 'version')
	if not version then
		return -1
	end
	if tonumber(version) ~= tonumber(ARGV[1]) then
		return 0
	end
	redis.call('HSET', KEYS[1], 'data', ARGV[2], 'version', tonumber(version) + 1)
	return 1
`)

func (s *Store) Create(ctx context.Context, user core.UserID) error {
	data, err := json.Marshal(core.NewUserGameState(user))
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	created, err := createScript.Run(ctx, s.client, []string{userKey(user)}, data).Int()
	if err != nil {
		return fmt.Errorf("failed to create user state: %w", err)
	}
	if created == 0 {
		return core.ErrAlreadyExists
	}
	return nil
}

func (s *Store) Load(ctx context.Context, user core.UserID) (core.UserGameState, core.Version, error) {
	vals, err := s.client.HMGet(ctx, userKey(user), "data", "version").Result()
	if err != nil {
		return core.UserGameState{}, 0, fmt.Errorf("failed to load user state: %w", err)
	}
	raw, ok := vals[0].(string)
	if !ok || vals[1] == nil {
		return core.UserGameState{}, 0, core.ErrNotFound
	}

	var state core.UserGameState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return core.UserGameState{}, 0, fmt.Errorf("corrupt user state for %q: %w", user, err)
	}
	if state.Badges == nil {
		state.Badges = map[core.Badge]struct{}{}
	}

	var version core.Version
	if v, ok := vals[1].(string); ok {
		var parsed int64
		if _, err := fmt.Sscanf(v, "%d", &parsed); err != nil {
			return core.UserGameState{}, 0, fmt.Errorf("corrupt version for %q: %w", user, err)
		}
		version = core.Version(parsed)
	}
	return state, version, nil
}

func (s *Store) Save(ctx context.Context, user core.UserID, state core.UserGameState, expected core.Version) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	res, err := saveScript.Run(ctx, s.client, []string{userKey(user)}, int64(expected), data).Int()
	if err != nil {
		return fmt.Errorf("failed to save user state: %w", err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return core.ErrVersionMismatch
	case -1:
		return core.ErrNotFound
	default:
		return errors.New("unexpected result from save script")
	}
}
