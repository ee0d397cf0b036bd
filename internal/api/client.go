package api

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rickgao/notebook-client/internal/auth"
	"github.com/rickgao/notebook-client/internal/cache"
)

// Client provides access to the notebook backend REST API.
type Client struct {
	baseURL    string
	creds      auth.Credentials
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration

	cache    cache.Cache
	cacheTTL time.Duration

	// Schedule ID -> notebook ID, learned from reads, for cache invalidation
	// on delete.
	scheduleOwners sync.Map
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL string, creds auth.Credentials, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		creds:   creds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
		cache:        cache.Nop{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// UserID returns the user the client authenticates as.
func (c *Client) UserID() string {
	return c.creds.UserID
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCache enables read-through caching of GET replies for ttl.
func WithCache(store cache.Cache, ttl time.Duration) ClientOption {
	return func(c *Client) {
		if store == nil || ttl <= 0 {
			c.cache = cache.Nop{}
			c.cacheTTL = 0
			return
		}
		c.cache = store
		c.cacheTTL = ttl
	}
}
