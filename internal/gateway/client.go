package gateway

import (
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client is the JSON-over-HTTPS gateway to the chat backend. The bearer
// token lives on the client instance, never in package state; construct one
// per session and thread it through.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// New creates a gateway client for the given API base URL, e.g.
// "https://chat.example.org/api".
func New(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/json"),
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken attaches the bearer token to every subsequent request.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

// ClearToken removes the bearer token.
func (c *Client) ClearToken() {
	c.http.SetAuthToken("")
}
