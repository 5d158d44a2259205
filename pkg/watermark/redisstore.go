package watermark

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// RedisStoreConfig holds configuration for the Redis-backed store.
type RedisStoreConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string // leave empty if no password
	DB       int
	Key      string // the single watermark key, one per pipeline identity
}

// LoadRedisStoreConfigFromEnv loads Redis store configuration.
func LoadRedisStoreConfigFromEnv() (*RedisStoreConfig, error) {
	cfg := &RedisStoreConfig{
		Addr:     os.Getenv("WATERMARK_REDIS_ADDR"),
		Password: os.Getenv("WATERMARK_REDIS_PASSWORD"),
		Key:      os.Getenv("WATERMARK_REDIS_KEY"),
	}
	if cfg.Addr == "" {
		return nil, errors.New("WATERMARK_REDIS_ADDR environment variable not set")
	}
	if cfg.Key == "" {
		return nil, errors.New("WATERMARK_REDIS_KEY environment variable not set")
	}
	return cfg, nil
}

// RedisStore keeps the watermark under a single Redis key. Useful where the
// relay runs next to an existing Redis and a cloud bucket is overkill.
type RedisStore struct {
	client *redis.Client
	key    string
	logger zerolog.Logger
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, cfg *RedisStoreConfig, logger zerolog.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis for watermark store")

	return &RedisStore{
		client: rdb,
		key:    cfg.Key,
		logger: logger.With().Str("component", "RedisWatermarkStore").Str("key", cfg.Key).Logger(),
	}, nil
}

// Load reads and parses the watermark key. A missing key is a first run.
func (s *RedisStore) Load(ctx context.Context) (int64, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.logger.Info().Msg("Watermark key not found, treating as first run.")
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get watermark key: %w", err)
	}

	value, err := decodeWatermark(raw)
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// Save overwrites the watermark key with the new value. No TTL: the
// watermark must outlive any cache policy.
func (s *RedisStore) Save(ctx context.Context, value int64) error {
	if err := s.client.Set(ctx, s.key, encodeWatermark(value), 0).Err(); err != nil {
		return fmt.Errorf("failed to set watermark key: %w", err)
	}
	s.logger.Info().Int64("watermark", value).Msg("Persisted watermark to Redis.")
	return nil
}

// Close gracefully closes the Redis client connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		s.logger.Info().Msg("Closing Redis client connection...")
		return s.client.Close()
	}
	return nil
}
