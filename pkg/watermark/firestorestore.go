package watermark

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStoreConfig holds configuration for the Firestore-backed store.
type FirestoreStoreConfig struct {
	ProjectID      string
	CollectionName string // e.g. "pipeline-state"
	DocumentID     string // one document per pipeline identity
}

// LoadFirestoreStoreConfigFromEnv loads Firestore store configuration.
func LoadFirestoreStoreConfigFromEnv() (*FirestoreStoreConfig, error) {
	cfg := &FirestoreStoreConfig{
		ProjectID:      os.Getenv("GCP_PROJECT_ID"),
		CollectionName: os.Getenv("WATERMARK_FIRESTORE_COLLECTION"),
		DocumentID:     os.Getenv("WATERMARK_FIRESTORE_DOC"),
	}
	if cfg.ProjectID == "" {
		return nil, errors.New("GCP_PROJECT_ID environment variable not set for Firestore watermark store")
	}
	if cfg.CollectionName == "" {
		return nil, errors.New("WATERMARK_FIRESTORE_COLLECTION environment variable not set")
	}
	if cfg.DocumentID == "" {
		return nil, errors.New("WATERMARK_FIRESTORE_DOC environment variable not set")
	}
	return cfg, nil
}

// firestoreWatermarkDoc is the stored document shape.
type firestoreWatermarkDoc struct {
	Value string `firestore:"value"`
}

// FirestoreStore keeps the watermark in a single Firestore document.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	document   string
	logger     zerolog.Logger
}

// NewFirestoreStore creates a store over an injected *firestore.Client.
func NewFirestoreStore(client *firestore.Client, cfg *FirestoreStoreConfig, logger zerolog.Logger) (*FirestoreStore, error) {
	if client == nil {
		return nil, errors.New("firestore client cannot be nil")
	}
	return &FirestoreStore{
		client:     client,
		collection: cfg.CollectionName,
		document:   cfg.DocumentID,
		logger:     logger.With().Str("component", "FirestoreWatermarkStore").Str("collection", cfg.CollectionName).Str("doc", cfg.DocumentID).Logger(),
	}, nil
}

// Load reads the watermark document. A missing document is a first run.
func (s *FirestoreStore) Load(ctx context.Context) (int64, bool, error) {
	snap, err := s.client.Collection(s.collection).Doc(s.document).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			s.logger.Info().Msg("Watermark document not found, treating as first run.")
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get watermark document: %w", err)
	}

	var doc firestoreWatermarkDoc
	if err := snap.DataTo(&doc); err != nil {
		return 0, false, fmt.Errorf("failed to decode watermark document: %w", err)
	}
	if doc.Value == "" {
		return 0, false, nil
	}

	value, err := decodeWatermark(doc.Value)
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// Save overwrites the watermark document with the new value.
func (s *FirestoreStore) Save(ctx context.Context, value int64) error {
	_, err := s.client.Collection(s.collection).Doc(s.document).Set(ctx, firestoreWatermarkDoc{Value: encodeWatermark(value)})
	if err != nil {
		return fmt.Errorf("failed to set watermark document: %w", err)
	}
	s.logger.Info().Int64("watermark", value).Msg("Persisted watermark to Firestore.")
	return nil
}
