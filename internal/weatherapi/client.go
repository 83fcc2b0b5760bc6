package weatherapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
)

const (
	defaultBaseURL = "https://api.weatherapi.com/v1"
	httpTimeout    = 10 * time.Second
)

// APIError is returned for any non-2xx upstream response. Message carries
// the server's error message when the body contained one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("weatherapi: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("weatherapi: status %d", e.StatusCode)
}

// Client calls the WeatherAPI.com v1 endpoints. It performs no caching and
// no retries; a circuit breaker guards the upstream against sustained
// failure.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

// NewClient constructs a Client with the given API key using the production
// base URL.
func NewClient(apiKey string) *Client {
	return newClient(apiKey, defaultBaseURL)
}

// NewClientWithBaseURL constructs a Client pointing at a custom base URL
// (for tests).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	return newClient(apiKey, baseURL)
}

func newClient(apiKey, baseURL string) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weatherapi",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: httpTimeout},
		circuit: cb,
	}
}

// Forecast fetches location, current conditions, and a multi-day forecast
// for the given query. The query is a free-text city name or a "lat,lon"
// pair. Air quality and alerts are always disabled.
func (c *Client) Forecast(ctx context.Context, query string, days int) (*Response, error) {
	values := url.Values{}
	values.Set("key", c.apiKey)
	values.Set("q", query)
	values.Set("days", strconv.Itoa(days))
	values.Set("aqi", "no")
	values.Set("alerts", "no")

	return c.get(ctx, c.baseURL+"/forecast.json?"+values.Encode())
}

// Current fetches location and current conditions only.
func (c *Client) Current(ctx context.Context, query string) (*Response, error) {
	values := url.Values{}
	values.Set("key", c.apiKey)
	values.Set("q", query)
	values.Set("aqi", "no")

	return c.get(ctx, c.baseURL+"/current.json?"+values.Encode())
}

// upstreamError is WeatherAPI.com's error envelope.
type upstreamError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) get(ctx context.Context, rawURL string) (*Response, error) {
	result, err := c.circuit.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", rawURL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{StatusCode: resp.StatusCode}
			var body upstreamError
			if decErr := json.NewDecoder(resp.Body).Decode(&body); decErr == nil {
				apiErr.Message = body.Error.Message
			}
			return nil, apiErr
		}

		var out Response
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		return &out, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("weatherapi circuit open: %w", err)
		}
		return nil, err
	}

	resp, ok := result.(*Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}
