// Package client provides the Ordiscan HTTP client: bearer authentication,
// JSON content negotiation, a fixed request timeout, error classification and
// request metrics.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public Ordiscan API.
const DefaultBaseURL = "https://api.ordiscan.com"

// Prometheus metrics for Ordiscan client operations.
var (
	ordiscanRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordiscan_requests_total",
		Help: "Total Ordiscan requests by endpoint and status",
	}, []string{"endpoint", "status"})

	ordiscanRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ordiscan_request_duration_seconds",
		Help:    "Ordiscan request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	ordiscanErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordiscan_errors_total",
		Help: "Total Ordiscan errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx and any other non-2xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"
)

// Client talks to the Ordiscan REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, without trailing slash.
	BaseURL string

	// APIKey is sent as a bearer token. Required.
	APIKey string

	// Timeout bounds each HTTP round trip, body included.
	Timeout time.Duration

	// UserAgent is optional.
	UserAgent string
}

// DefaultConfig returns the production configuration for the given key.
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		APIKey:    apiKey,
		Timeout:   30 * time.Second,
		UserAgent: "inscription-grid/0.1.0",
	}
}

// New creates a new Ordiscan client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		config:     cfg,
		logger:     log.With().Str("component", "ordiscan-client").Logger(),
	}, nil
}

// Get issues an authenticated GET against path with the given query and
// returns the body of a 2xx response. Any other status yields an
// *OrdiscanError carrying the status code and the response body text.
// Transport and read failures are returned wrapped in an *OrdiscanError of
// class network with a zero status code.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ordiscanErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &OrdiscanError{
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &OrdiscanError{
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
			Message:    string(body),
		}
	}

	return body, nil
}

// Do sends req with the credential and accept headers set. Non-2xx responses
// are returned as-is; only transport failures produce an error.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	endpoint := EndpointLabel(req.URL.Path)

	startTime := time.Now()
	defer func() {
		ordiscanRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", req.URL.RawQuery).
		Msg("Executing Ordiscan request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		ordiscanErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		ordiscanRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &OrdiscanError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}

	ordiscanRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := classifyStatus(resp.StatusCode)
		ordiscanErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Ordiscan request error")
	}

	return resp, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func classifyStatus(status int) ErrorClass {
	if status >= 400 && status < 500 {
		return ErrorClassClient
	}
	return ErrorClassServer
}

// EndpointLabel collapses the address segment of an Ordiscan path so metric
// labels stay bounded: /v1/address/bc1q.../activity becomes
// /v1/address/{address}/activity.
func EndpointLabel(path string) string {
	parts := strings.Split(path, "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "address" && parts[i+1] != "" {
			parts[i+1] = "{address}"
			break
		}
	}
	return strings.Join(parts, "/")
}
