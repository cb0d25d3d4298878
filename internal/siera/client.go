// Package siera is a client for the Commetric Siera tagging API. It keeps the
// access token current by renewing it with the refresh token whenever the
// service answers 401, and retries the rejected call with the new token.
package siera

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ObiAU/sieratagger/internal/models"
)

const (
	DefaultBaseURL = "https://siera.commetric.cloud/api/v1"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxAuthRetries is how many times a call may renew the token
	// and retry after a 401.
	DefaultMaxAuthRetries = 1

	// DefaultRequestsPerSecond paces calls to the API.
	DefaultRequestsPerSecond = 5

	// MaxBatchSize is the most articles the public API accepts per /tag call.
	MaxBatchSize = 10

	// TokenConfigKey is the key the renewed access token is persisted under.
	TokenConfigKey = "TOKEN"

	versionEndpoint  = "/version"
	newTokenEndpoint = "/new_token"
	tagEndpoint      = "/tag"
)

var _ models.Tagger = (*Client)(nil)

type Client struct {
	baseURL        string
	httpClient     *http.Client
	creds          *Credentials
	store          models.TokenStore
	limiter        *rate.Limiter
	maxAuthRetries int
	logger         *slog.Logger

	// refreshMu serializes token renewal.
	refreshMu sync.Mutex
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithTokenStore sets where renewed access tokens are persisted.
func WithTokenStore(store models.TokenStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables pacing.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func WithMaxAuthRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxAuthRetries = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client. It fails with ErrNotConfigured when a credential is
// missing, rather than sending a request that can only be rejected.
func New(creds *Credentials, opts ...Option) (*Client, error) {
	if creds == nil || !creds.Configured() {
		return nil, ErrNotConfigured
	}

	c := &Client{
		baseURL:        DefaultBaseURL,
		httpClient:     &http.Client{Timeout: DefaultTimeout},
		creds:          creds,
		limiter:        rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		maxAuthRetries: DefaultMaxAuthRetries,
		logger:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Credentials returns the holder the client reads tokens from.
func (c *Client) Credentials() *Credentials {
	return c.creds
}

// Call sends an authenticated request and returns the JSON body of a 200
// response. A 401 renews the access token and repeats the identical request,
// at most maxAuthRetries times.
func (c *Client) Call(ctx context.Context, method, endpoint string, payload []byte) (json.RawMessage, error) {
	for renewals := 0; ; renewals++ {
		token := c.creds.AccessToken()

		status, body, err := c.send(ctx, method, endpoint, payload, token)
		if err != nil {
			return nil, err
		}

		switch status {
		case http.StatusOK:
			var raw json.RawMessage
			if err := json.Unmarshal(body, &raw); err != nil {
				return nil, &DecodeError{Endpoint: endpoint, Err: err}
			}
			c.logger.Debug("siera call succeeded", "method", method, "endpoint", endpoint)
			return raw, nil

		case http.StatusUnauthorized:
			if renewals >= c.maxAuthRetries {
				return nil, &AuthRetryExhaustedError{Endpoint: endpoint, Attempts: renewals}
			}
			c.logger.Warn("unauthorised, attempting to generate a new token",
				"endpoint", endpoint, "attempt", renewals+1)
			if err := c.renewIfCurrent(ctx, token); err != nil {
				return nil, err
			}

		default:
			return nil, &APIError{StatusCode: status, Body: string(body), Endpoint: endpoint}
		}
	}
}

// RefreshToken mints a new access token from the refresh token, installs it
// and persists it through the token store.
func (c *Client) RefreshToken(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refresh(ctx)
}

// renewIfCurrent renews the token unless another caller already replaced the
// one that was rejected.
func (c *Client) renewIfCurrent(ctx context.Context, rejected string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if c.creds.AccessToken() != rejected {
		c.logger.Debug("token already renewed by a concurrent call")
		return nil
	}
	return c.refresh(ctx)
}

// refresh performs the renewal (caller must hold refreshMu).
func (c *Client) refresh(ctx context.Context) error {
	c.logger.Info("renewing token")

	payload, err := json.Marshal(map[string]string{"refresh_token": c.creds.RefreshToken()})
	if err != nil {
		return fmt.Errorf("siera: encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+newTokenEndpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("siera: build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	status, body, err := c.roundTrip(req, newTokenEndpoint)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &TokenRefreshError{StatusCode: status, Body: string(body)}
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return &DecodeError{Endpoint: newTokenEndpoint, Err: err}
	}
	if result.Token == "" {
		return &MissingFieldError{Field: "token", Endpoint: newTokenEndpoint}
	}

	c.creds.SetAccessToken(result.Token)

	if c.store != nil {
		if err := c.store.SetConfigValue(TokenConfigKey, result.Token); err != nil {
			c.logger.Warn("failed to persist renewed token", "error", err)
		}
	}

	c.logger.Info("token renewed")
	return nil
}

// GetVersion returns the version of the Siera rules the service applies.
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	raw, err := c.Call(ctx, http.MethodGet, versionEndpoint, nil)
	if err != nil {
		return "", err
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", &DecodeError{Endpoint: versionEndpoint, Err: err}
	}
	version, ok := fields["version"].(string)
	if !ok {
		return "", &MissingFieldError{Field: "version", Endpoint: versionEndpoint}
	}
	return version, nil
}

func (c *Client) Version(ctx context.Context) (string, error) {
	return c.GetVersion(ctx)
}

// TagArticles submits one batch and returns the service's tags per article id.
func (c *Client) TagArticles(ctx context.Context, articles []models.Article) (models.TagResult, error) {
	if len(articles) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d articles, limit %d", ErrBatchTooLarge, len(articles), MaxBatchSize)
	}
	if len(articles) == 0 {
		return models.TagResult{}, nil
	}

	payload, err := json.Marshal(articles)
	if err != nil {
		return nil, fmt.Errorf("siera: encode articles: %w", err)
	}

	raw, err := c.Call(ctx, http.MethodPost, tagEndpoint, payload)
	if err != nil {
		return nil, err
	}

	var result models.TagResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &DecodeError{Endpoint: tagEndpoint, Err: err}
	}
	return result, nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte, token string) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return 0, nil, fmt.Errorf("siera: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.creds.APIKey())
	req.Header.Set("Token", token)

	return c.roundTrip(req, endpoint)
}

func (c *Client) roundTrip(req *http.Request, endpoint string) (int, []byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return 0, nil, fmt.Errorf("siera: rate limit wait: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: req.Method, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &TransportError{Op: req.Method, Endpoint: endpoint, Err: err}
	}
	return resp.StatusCode, body, nil
}
