// Package indexnow notifies search engines about changed blog URLs
// through the IndexNow protocol.
package indexnow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultEndpoint is the shared IndexNow submission endpoint; engines
// propagate submissions between each other.
const DefaultEndpoint = "https://api.indexnow.org/indexnow"

// maxURLsPerSubmission is the protocol limit per request.
const maxURLsPerSubmission = 10000

type submission struct {
	Host    string   `json:"host"`
	Key     string   `json:"key"`
	URLList []string `json:"urlList"`
}

// Client submits changed URLs to IndexNow. A Client with an empty key
// is disabled and silently ignores submissions.
type Client struct {
	client   *resty.Client
	endpoint string
	host     string
	key      string
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the submission endpoint, mainly for tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// NewClient creates a client for the given site. siteURL is the public
// base URL of the site; key is the IndexNow verification key served at
// the site root.
func NewClient(siteURL, key string, opts ...Option) (*Client, error) {
	c := &Client{
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetRetryCount(3).
			SetRetryWaitTime(2 * time.Second).
			SetRetryMaxWaitTime(10 * time.Second),
		endpoint: DefaultEndpoint,
		key:      key,
	}

	if siteURL != "" {
		parsed, err := url.Parse(siteURL)
		if err != nil {
			return nil, fmt.Errorf("parse site url: %w", err)
		}
		c.host = parsed.Host
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Enabled reports whether the client is configured to submit.
func (c *Client) Enabled() bool {
	return c.key != "" && c.host != ""
}

// Submit pings IndexNow with the given absolute URLs. Submitting an
// empty list or calling a disabled client is a no-op.
func (c *Client) Submit(ctx context.Context, urls []string) error {
	if !c.Enabled() || len(urls) == 0 {
		return nil
	}
	if len(urls) > maxURLsPerSubmission {
		urls = urls[:maxURLsPerSubmission]
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetBody(submission{Host: c.host, Key: c.key, URLList: urls}).
		Post(c.endpoint)

	if err != nil {
		return fmt.Errorf("submit to indexnow: %w", err)
	}

	// 200 and 202 both mean accepted.
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusAccepted {
		return fmt.Errorf("unexpected status code %d from indexnow", resp.StatusCode())
	}

	return nil
}
