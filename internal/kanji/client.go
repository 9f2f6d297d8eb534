// Package kanji talks to the Kanji Alive API and keeps a catalog of kanji on the device.
package kanji

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/example/nihongo/pkg/models"
)

// DefaultBaseURL is the public Kanji Alive endpoint on RapidAPI
const DefaultBaseURL = "https://kanjialive-api.p.rapidapi.com/api/public"

// DefaultHost is the RapidAPI host header value
const DefaultHost = "kanjialive-api.p.rapidapi.com"

var (
	// ErrNotFound is returned when no kanji matches
	ErrNotFound = errors.New("kanji not found")
	// ErrMissingAPIKey is returned by NewClient without a key
	ErrMissingAPIKey = errors.New("kanji API key is not set")
)

// ClientConfig configures a Client
type ClientConfig struct {
	BaseURL       string
	APIKey        string
	APIHost       string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// Client represents a client for the Kanji Alive API
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiHost    string
	limiter    *rate.Limiter
}

// NewClient creates a new Kanji Alive client
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIHost == "" {
		cfg.APIHost = DefaultHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		apiHost:    cfg.APIHost,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
	}, nil
}

// All returns every kanji the API knows about
func (c *Client) All(ctx context.Context) ([]models.Kanji, error) {
	var records []apiKanji
	if err := c.get(ctx, "/kanji/all", &records); err != nil {
		return nil, err
	}
	return toModels(records), nil
}

// Search finds kanji by character, reading or English meaning
func (c *Client) Search(ctx context.Context, query string) ([]models.Kanji, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNotFound
	}
	var records []apiKanji
	if err := c.get(ctx, "/search/"+url.PathEscape(query), &records); err != nil {
		return nil, err
	}
	return toModels(records), nil
}

// Detail returns the full entry for one character
func (c *Client) Detail(ctx context.Context, character string) (*models.Kanji, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/kanji/"+url.PathEscape(character), &raw); err != nil {
		return nil, err
	}

	var failure struct {
		Error string `json:"Error"`
	}
	if json.Unmarshal(raw, &failure) == nil && failure.Error != "" {
		return nil, errors.Wrap(ErrNotFound, failure.Error)
	}

	var record apiKanji
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, errors.Wrap(err, "failed to decode kanji detail")
	}
	k := record.toModel()
	if k.Character == "" {
		return nil, ErrNotFound
	}
	return &k, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.apiHost)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("kanji API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
