package cache

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	client     *redis.Client
	clientOnce sync.Once
	clientErr  error
)

// ErrLockTimeout is returned when a waited-on computation does not finish in time
var ErrLockTimeout = errors.New("timeout waiting for lock")

// Config holds Redis configuration
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// LoadConfigFromEnv loads Redis configuration from environment variables
func LoadConfigFromEnv() *Config {
	port, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, _ := time.ParseDuration(getEnv("CACHE_TTL", "10m"))

	return &Config{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     port,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
		TTL:      ttl,
	}
}

// GetClient returns the global Redis client (singleton pattern)
func GetClient() (*redis.Client, error) {
	clientOnce.Do(func() {
		config := LoadConfigFromEnv()

		opts := &redis.Options{
			Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
			Password:     config.Password,
			DB:           config.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 2,
		}

		// Enable TLS if configured (required for Upstash)
		if getEnv("REDIS_TLS_ENABLED", "false") == "true" {
			opts.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}

		client = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			clientErr = fmt.Errorf("failed to connect to Redis: %w", err)
			return
		}
	})

	return client, clientErr
}

// Close closes the Redis client
func Close() {
	if client != nil {
		client.Close()
	}
}

// Store caches query results in Redis. Keys embed the dataset hash, so a
// dataset change never serves stale results.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore wraps a client; ttl applies to every cached result
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// RouteKey generates a cache key for a route query
func RouteKey(datasetHash, from, to string, k int) string {
	data := fmt.Sprintf("%s|%s|%s|%d", datasetHash, from, to, k)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("route:%x", hash[:8])
}

// CarrierKey generates a cache key for a carrier query
func CarrierKey(indexHash, from, to string, maxSegments int) string {
	data := fmt.Sprintf("%s|%s|%s|%d", indexHash, from, to, maxSegments)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("carrier:%x", hash[:8])
}

// LockKey generates a mutex lock key
func LockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}

// GetJSON loads a cached value into dst. It returns false on a cache miss.
func (s *Store) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil // cache miss
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// SetJSON caches a value
func (s *Store) SetJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return s.rdb.Set(ctx, key, data, s.ttl).Err()
}

// AcquireLock attempts to acquire a distributed lock
// Returns true if lock was acquired, false if already locked
func (s *Store) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, LockKey(key), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (s *Store) ReleaseLock(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, LockKey(key)).Err()
}

// WaitForLock waits for a lock to be released and then retrieves the result
// This implements the "wait for result" pattern to avoid thundering herd
func (s *Store) WaitForLock(ctx context.Context, key string, dst interface{}, maxWait time.Duration) (bool, error) {
	lockKey := LockKey(key)
	deadline := time.Now().Add(maxWait)

	for time.Now().Before(deadline) {
		exists, err := s.rdb.Exists(ctx, lockKey).Result()
		if err != nil {
			return false, err
		}

		if exists == 0 {
			return s.GetJSON(ctx, key, dst)
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return false, ErrLockTimeout
}

// HealthCheck performs a health check on the Redis connection
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
