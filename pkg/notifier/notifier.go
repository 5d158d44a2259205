package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ====================================================================================
// Best-effort operational notifications. Nothing in the relay ever blocks on,
// retries, or escalates a notification failure; the worst case is a missing
// chat message, which the logs still record.
// ====================================================================================

// Notifier delivers a human-readable message to the operations channel.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// WebhookConfig holds configuration for the webhook notifier.
type WebhookConfig struct {
	URL     string // empty disables notifications entirely
	Timeout time.Duration
}

const defaultWebhookTimeout = 5 * time.Second

// LoadWebhookConfigFromEnv loads webhook configuration from environment
// variables. An unset URL is not an error: notifications are optional.
func LoadWebhookConfigFromEnv() *WebhookConfig {
	cfg := &WebhookConfig{
		URL:     os.Getenv("NOTIFY_WEBHOOK_URL"),
		Timeout: defaultWebhookTimeout,
	}
	if to := os.Getenv("NOTIFY_WEBHOOK_TIMEOUT"); to != "" {
		if val, err := time.ParseDuration(to); err == nil && val > 0 {
			cfg.Timeout = val
		}
	}
	return cfg
}

// WebhookNotifier posts messages to a Teams-style incoming webhook as a
// JSON object with a single "text" field.
type WebhookNotifier struct {
	httpClient *http.Client
	url        string
	logger     zerolog.Logger
}

// NewWebhookNotifier creates a notifier. A nil or URL-less config yields a
// notifier that silently drops every message.
func NewWebhookNotifier(cfg *WebhookConfig, logger zerolog.Logger) *WebhookNotifier {
	url := ""
	timeout := defaultWebhookTimeout
	if cfg != nil {
		url = cfg.URL
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
	}
	return &WebhookNotifier{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		logger:     logger.With().Str("component", "WebhookNotifier").Logger(),
	}
}

// Notify posts the text. Every failure path logs and returns; none of them
// are visible to the caller.
func (n *WebhookNotifier) Notify(ctx context.Context, text string) {
	if n.url == "" {
		n.logger.Debug().Msg("Webhook URL not configured, skipping notification.")
		return
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to marshal webhook payload.")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to build webhook request.")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to send webhook notification.")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.logger.Warn().Int("status", resp.StatusCode).Msg("Webhook responded with a non-2xx status.")
		return
	}
	n.logger.Debug().Int("status", resp.StatusCode).Msg("Webhook notification sent.")
}
