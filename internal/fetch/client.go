package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spendlens/spendlens-engine/internal/cache"
	"github.com/spendlens/spendlens-engine/internal/models"
	"github.com/spendlens/spendlens-engine/internal/utils"
)

// Client fetches spending records over HTTP from the transparency API
// aggregator, with cache-aside on the query spec.
type Client struct {
	baseURL     string
	recordsPath string
	apiKey      string
	httpClient  *http.Client
	logger      *slog.Logger

	cache      cache.Provider
	recordsTTL time.Duration
}

// NewClient constructs a Client. A nil cache provider disables caching.
func NewClient(baseURL, recordsPath, apiKey string, timeout time.Duration, cacheProvider cache.Provider, recordsTTL time.Duration, logger *slog.Logger) *Client {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		recordsPath: recordsPath,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
		cache:       cacheProvider,
		recordsTTL:  recordsTTL,
	}
}

// FetchRecords queries the data source for records matching the query spec.
// Unreachable or erroring backends surface as ErrDataSourceUnavailable so
// the orchestrator can absorb the step as failed-but-non-fatal; HTTP 429
// surfaces as ErrRateLimited.
func (c *Client) FetchRecords(ctx context.Context, spec models.QuerySpec) ([]models.Record, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("records base URL not configured: %w", utils.ErrDataSourceUnavailable)
	}

	key := cacheKey(spec)
	if data, err := c.cache.Get(ctx, key); err == nil {
		var cached []models.Record
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		// A corrupt entry is dropped and refetched.
		_ = c.cache.Del(ctx, key)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("record cache read failed", slog.Any("error", err))
	}

	records, err := c.fetchRemote(ctx, spec)
	if err != nil {
		return nil, err
	}

	if c.recordsTTL > 0 {
		if data, err := json.Marshal(records); err == nil {
			if err := c.cache.Set(ctx, key, data, c.recordsTTL); err != nil {
				c.logger.Warn("record cache write failed", slog.Any("error", err))
			}
		}
	}
	return records, nil
}

func (c *Client) fetchRemote(ctx context.Context, spec models.QuerySpec) ([]models.Record, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encode query spec: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.recordsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build records request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("records request: %v: %w", err, utils.ErrDataSourceUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("records request: %w", utils.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("records request: status %d: %w", resp.StatusCode, utils.ErrDataSourceUnavailable)
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("records request: status %d: %s", resp.StatusCode, snippet)
	}

	var payload struct {
		Records []models.Record `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode records response: %w", err)
	}
	return payload.Records, nil
}

func cacheKey(spec models.QuerySpec) string {
	data, _ := json.Marshal(spec)
	sum := sha256.Sum256(data)
	return "records:" + hex.EncodeToString(sum[:8])
}
