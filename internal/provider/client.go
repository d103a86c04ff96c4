// Package provider implements the fetch collaborator: an HTTP client for
// the WeatherAPI.com current-conditions endpoint that returns normalized
// observations and maps transport failures to typed errors.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nfrey/weathervault/internal/weather"
)

const defaultBaseURL = "https://api.weatherapi.com/v1/current.json"

var (
	// ErrEmptyLocation is returned before any network traffic when the
	// requested location is blank.
	ErrEmptyLocation = errors.New("location cannot be empty")

	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errCircuitOpen = errors.New("circuit breaker open")
)

// APIError is a non-retryable error reported by the weather API itself
// (unknown location, bad key, malformed query).
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("weather api error %d (http %d): %s", e.Code, e.StatusCode, e.Message)
}

// BackoffConfig controls exponential retry behaviour for transient failures.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Client fetches current weather from WeatherAPI.com.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	backoff BackoffConfig
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a custom endpoint (used in tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithBackoff overrides the retry policy.
func WithBackoff(cfg BackoffConfig) Option {
	return func(c *Client) { c.backoff = cfg }
}

// NewClient constructs a Client with sane retry and circuit-breaker
// defaults.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "weatherapi",
			MaxRequests: 5,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
		}),
		backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves and normalizes the current observation for a location.
// Location accepts whatever the API accepts: a city name, "city,country",
// or "lat,lon".
func (c *Client) Fetch(ctx context.Context, location string) (*weather.Observation, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, ErrEmptyLocation
	}
	if c.apiKey == "" {
		return nil, errors.New("weather api key is not configured")
	}

	values := url.Values{}
	values.Set("key", c.apiKey)
	values.Set("q", location)
	values.Set("aqi", "no")
	endpoint := c.baseURL + "?" + values.Encode()

	resp, err := c.doWithRetry(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetching weather for %s: %w", location, err)
	}
	defer resp.Body.Close()

	var body struct {
		weather.Payload
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding weather response for %s: %w", location, err)
	}

	if body.Error != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       body.Error.Code,
			Message:    body.Error.Message,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "unexpected response"}
	}

	obs, err := weather.Normalize(&body.Payload)
	if err != nil {
		return nil, fmt.Errorf("normalizing weather for %s: %w", location, err)
	}
	return obs, nil
}

// doWithRetry executes the request through the circuit breaker, retrying
// transient failures (network errors, 429, 5xx) with exponential backoff.
// Any other response is handed back to the caller as-is.
func (c *Client) doWithRetry(ctx context.Context, endpoint string) (*http.Response, error) {
	var attempt int
	var lastErr error

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			resp, execErr := c.client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				_ = resp.Body.Close()
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				_ = resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			}
			return resp, nil
		})
		if err == nil {
			return result.(*http.Response), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = err
		if attempt >= c.backoff.MaxRetries {
			return nil, lastErr
		}

		delay := c.backoff.InitialInterval << attempt
		if c.backoff.MaxInterval > 0 && delay > c.backoff.MaxInterval {
			delay = c.backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}
