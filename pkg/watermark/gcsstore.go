package watermark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
)

// GCSStoreConfig holds configuration for the GCS-backed watermark store.
type GCSStoreConfig struct {
	BucketName string
	ObjectName string
}

// DefaultWatermarkObjectName mirrors the state blob name the relay has always
// used, so an existing deployment picks up its previous watermark.
const DefaultWatermarkObjectName = "last_forwarded_alert_id.txt"

// LoadGCSStoreConfigFromEnv loads GCS store configuration from environment variables.
func LoadGCSStoreConfigFromEnv() (*GCSStoreConfig, error) {
	cfg := &GCSStoreConfig{
		BucketName: os.Getenv("WATERMARK_BUCKET"),
		ObjectName: os.Getenv("WATERMARK_OBJECT"),
	}
	if cfg.BucketName == "" {
		return nil, errors.New("WATERMARK_BUCKET environment variable not set")
	}
	if cfg.ObjectName == "" {
		cfg.ObjectName = DefaultWatermarkObjectName
	}
	return cfg, nil
}

// GCSStore keeps the watermark in a single GCS object, the direct analogue of
// the state blob the relay's predecessor used.
type GCSStore struct {
	client GCSClient
	config GCSStoreConfig
	logger zerolog.Logger
}

// NewGCSStore creates a store over an injected GCS client.
func NewGCSStore(client GCSClient, cfg GCSStoreConfig, logger zerolog.Logger) (*GCSStore, error) {
	if client == nil {
		return nil, errors.New("GCS client cannot be nil")
	}
	if cfg.BucketName == "" {
		return nil, errors.New("GCS bucket name is required")
	}
	if cfg.ObjectName == "" {
		return nil, errors.New("GCS object name is required")
	}
	return &GCSStore{
		client: client,
		config: cfg,
		logger: logger.With().Str("component", "GCSWatermarkStore").Str("bucket", cfg.BucketName).Str("object", cfg.ObjectName).Logger(),
	}, nil
}

// Load reads and parses the watermark object. An absent object or an empty
// object is a first run, not an error.
func (s *GCSStore) Load(ctx context.Context) (int64, bool, error) {
	reader, err := s.client.Bucket(s.config.BucketName).Object(s.config.ObjectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			s.logger.Info().Msg("Watermark object not found, treating as first run.")
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to open watermark object: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read watermark object: %w", err)
	}
	if len(raw) == 0 {
		s.logger.Info().Msg("Watermark object is empty, treating as first run.")
		return 0, false, nil
	}

	value, err := decodeWatermark(string(raw))
	if err != nil {
		return 0, false, err
	}
	s.logger.Debug().Int64("watermark", value).Msg("Loaded watermark from GCS.")
	return value, true, nil
}

// Save overwrites the watermark object with the new value.
func (s *GCSStore) Save(ctx context.Context, value int64) error {
	writer := s.client.Bucket(s.config.BucketName).Object(s.config.ObjectName).NewWriter(ctx)
	if _, err := writer.Write([]byte(encodeWatermark(value))); err != nil {
		// Close to release the writer; the write error is the one that matters.
		_ = writer.Close()
		return fmt.Errorf("failed to write watermark object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close watermark object writer: %w", err)
	}
	s.logger.Info().Int64("watermark", value).Msg("Persisted watermark to GCS.")
	return nil
}
