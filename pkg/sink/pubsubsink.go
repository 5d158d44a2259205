package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// PubsubSinkConfig holds configuration for the Google Pub/Sub sink.
type PubsubSinkConfig struct {
	ProjectID      string
	TopicID        string
	PublishTimeout time.Duration
}

// LoadPubsubSinkConfigFromEnv loads sink configuration from environment variables.
func LoadPubsubSinkConfigFromEnv() (*PubsubSinkConfig, error) {
	cfg := &PubsubSinkConfig{
		ProjectID:      os.Getenv("GCP_PROJECT_ID"),
		TopicID:        os.Getenv("PUBSUB_TOPIC_ID_ALERTS"),
		PublishTimeout: 10 * time.Second,
	}
	if cfg.ProjectID == "" {
		return nil, errors.New("GCP_PROJECT_ID environment variable not set for Pub/Sub sink")
	}
	if cfg.TopicID == "" {
		return nil, errors.New("PUBSUB_TOPIC_ID_ALERTS environment variable not set")
	}
	if pt := os.Getenv("PUBSUB_PUBLISH_TIMEOUT"); pt != "" {
		if val, err := time.ParseDuration(pt); err == nil && val > 0 {
			cfg.PublishTimeout = val
		}
	}
	return cfg, nil
}

// PubsubSink appends alert batches to a Google Cloud Pub/Sub topic, one
// message per record. Delivery is at-least-once; downstream consumers key on
// the record's sequence id for idempotence.
type PubsubSink struct {
	client         *pubsub.Client
	topic          *pubsub.Topic
	publishTimeout time.Duration
	logger         zerolog.Logger
}

// NewPubsubSink creates a sink over an injected *pubsub.Client and confirms
// the topic exists, retrying the check with backoff to ride out transient
// admin-plane errors at startup.
func NewPubsubSink(client *pubsub.Client, cfg *PubsubSinkConfig, logger zerolog.Logger) (*PubsubSink, error) {
	if client == nil {
		return nil, errors.New("pubsub client cannot be nil for sink")
	}
	if cfg == nil {
		return nil, errors.New("pubsub sink config cannot be nil")
	}
	if cfg.TopicID == "" {
		return nil, errors.New("pubsub sink topic ID is required")
	}

	topic := client.Topic(cfg.TopicID)

	maxRetries := 3
	retryDelay := 100 * time.Millisecond
	exists := false
	var existsErr error

	for i := 0; i < maxRetries; i++ {
		topicCtx, topicCancel := context.WithTimeout(context.Background(), 5*time.Second)
		exists, existsErr = topic.Exists(topicCtx)
		topicCancel()

		if existsErr == nil && exists {
			break
		}
		if existsErr != nil {
			logger.Warn().Err(existsErr).Str("topic_id", cfg.TopicID).Int("attempt", i+1).
				Msg("NewPubsubSink: failed to check existence of topic, retrying...")
		} else {
			logger.Warn().Str("topic_id", cfg.TopicID).Int("attempt", i+1).
				Msg("NewPubsubSink: topic reported as not existing, retrying...")
		}
		time.Sleep(retryDelay)
		retryDelay *= 2
	}

	if existsErr != nil {
		return nil, fmt.Errorf("failed to check existence of topic %s after %d retries: %w", cfg.TopicID, maxRetries, existsErr)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %s does not exist after %d retries", cfg.TopicID, maxRetries)
	}

	publishTimeout := cfg.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = 10 * time.Second
	}

	logger.Info().Str("topic_id", cfg.TopicID).Msg("PubsubSink initialized successfully.")

	return &PubsubSink{
		client:         client,
		topic:          topic,
		publishTimeout: publishTimeout,
		logger:         logger.With().Str("component", "PubsubSink").Str("topic_id", cfg.TopicID).Logger(),
	}, nil
}

// Append publishes every record in the batch and waits for all publish
// results before returning. Individual failures are combined into one error
// so the caller sees a single append outcome for the run.
func (p *PubsubSink) Append(ctx context.Context, batch []json.RawMessage) error {
	if len(batch) == 0 {
		return nil
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	results := make([]*pubsub.PublishResult, 0, len(batch))
	for _, record := range batch {
		results = append(results, p.topic.Publish(publishCtx, &pubsub.Message{Data: record}))
	}

	var combinedErr error
	published := 0
	for i, res := range results {
		if _, err := res.Get(publishCtx); err != nil {
			p.logger.Error().Err(err).Int("batch_index", i).Msg("Failed to publish record to Pub/Sub.")
			if combinedErr == nil {
				combinedErr = err
			} else {
				combinedErr = fmt.Errorf("%v; %w", combinedErr, err)
			}
			continue
		}
		published++
	}

	if combinedErr != nil {
		return fmt.Errorf("published %d of %d records: %w", published, len(batch), combinedErr)
	}

	p.logger.Info().Int("record_count", published).Msg("Appended batch to Pub/Sub topic.")
	return nil
}

// Stop flushes outstanding publishes and releases the topic.
func (p *PubsubSink) Stop() {
	p.logger.Info().Msg("Stopping Pub/Sub sink, flushing outstanding publishes...")
	p.topic.Stop()
	p.logger.Info().Msg("Pub/Sub sink stopped. The injected client is not closed here.")
}
