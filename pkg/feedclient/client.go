package feedclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/illmade-knight/go-alertfeed/pkg/types"
	"github.com/rs/zerolog"
)

// ====================================================================================
// HTTP client for the national disaster-alert open-data feed. One Fetch pulls
// the newest page of alerts for a calendar-day window; the relay's dedup core
// decides which of them are actually new.
// ====================================================================================

// DefaultBaseURL is the fixed endpoint of the disaster-alert feed.
const DefaultBaseURL = "https://www.safetydata.go.kr/V2/api/DSSP-IF-00247"

const (
	defaultPageSize = 10
	defaultTimeout  = 10 * time.Second
)

// ErrMissingBody marks a response whose JSON lacks the "body" list entirely.
// That is a fetch failure, not an empty result: an empty day still carries
// the key with an empty array.
var ErrMissingBody = errors.New("feed response has no body field")

// Config holds configuration for the feed client.
type Config struct {
	BaseURL    string
	ServiceKey string
	PageSize   int
	Timeout    time.Duration
}

// LoadFeedClientConfigFromEnv loads feed client configuration from environment variables.
func LoadFeedClientConfigFromEnv() (*Config, error) {
	cfg := &Config{
		BaseURL:    os.Getenv("ALERT_FEED_BASE_URL"),
		ServiceKey: os.Getenv("ALERT_FEED_API_KEY"),
		PageSize:   defaultPageSize,
		Timeout:    defaultTimeout,
	}
	if cfg.ServiceKey == "" {
		return nil, errors.New("ALERT_FEED_API_KEY environment variable not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if ps := os.Getenv("ALERT_FEED_PAGE_SIZE"); ps != "" {
		if val, err := strconv.Atoi(ps); err == nil && val > 0 {
			cfg.PageSize = val
		}
	}
	if to := os.Getenv("ALERT_FEED_TIMEOUT"); to != "" {
		if val, err := time.ParseDuration(to); err == nil && val > 0 {
			cfg.Timeout = val
		}
	}
	return cfg, nil
}

// Client fetches candidate alerts from the upstream feed.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// NewClient creates a feed client. The HTTP timeout bounds the whole
// request; anything slower is treated as a fetch failure by the caller.
func NewClient(cfg *Config, logger zerolog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("feed client config cannot be nil")
	}
	if cfg.ServiceKey == "" {
		return nil, errors.New("feed service key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	resolved := *cfg
	resolved.BaseURL = baseURL
	resolved.Timeout = timeout
	resolved.PageSize = pageSize

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     resolved,
		logger:     logger.With().Str("component", "FeedClient").Logger(),
	}, nil
}

// Fetch retrieves the candidate alerts created within the calendar day of
// window. The returned slice preserves the feed's delivery order; callers
// must not assume it is sorted.
func (c *Client) Fetch(ctx context.Context, window time.Time) ([]types.AlertRecord, error) {
	query := url.Values{}
	query.Set("serviceKey", c.config.ServiceKey)
	query.Set("pageNo", "1")
	query.Set("numOfRows", strconv.Itoa(c.config.PageSize))
	query.Set("returnType", "json")
	query.Set("crtDt", window.Format("20060102"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}

	c.logger.Debug().Str("window", window.Format("20060102")).Msg("Fetching candidate alerts from feed.")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused before we bail out.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	// Body is a pointer slice so an absent key and an empty list stay
	// distinguishable after decoding.
	var payload struct {
		Body *[]json.RawMessage `json:"body"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w", err)
	}
	if payload.Body == nil {
		return nil, ErrMissingBody
	}

	records := make([]types.AlertRecord, 0, len(*payload.Body))
	for _, raw := range *payload.Body {
		records = append(records, types.NewAlertRecord(raw))
	}

	c.logger.Info().Int("candidate_count", len(records)).Msg("Fetched candidate alerts from feed.")
	return records, nil
}
