// Package fetch holds the HTTP plumbing shared by the fetcher modules:
// a filtered, size-limited GET that classifies failures for the watch
// runner, and a Mux that routes a job's selector to the right backend.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/flemzord/sitewatch/internal/security"
	"github.com/flemzord/sitewatch/internal/watch"
)

// Client defaults.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "sitewatch/1.0 (+https://github.com/flemzord/sitewatch)"
	DefaultMaxBodyBytes = 5 << 20
	maxRedirects        = 10
)

// ClientConfig configures a Client.
type ClientConfig struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64

	// Filter, if set, is checked for the initial URL and every redirect.
	Filter *security.URLFilter

	// Audit receives EventURLBlocked for filtered URLs. May be nil.
	Audit *security.AuditLogger

	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Client performs resource retrieval for fetchers.
type Client struct {
	http      *http.Client
	userAgent string
	maxBody   int64
	filter    *security.URLFilter
	audit     *security.AuditLogger
}

// Page is a retrieved resource.
type Page struct {
	// URL is the final URL after redirects.
	URL         *url.URL
	ContentType string
	Body        []byte
}

// NewClient creates a Client, applying defaults for zero fields.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	c := &Client{
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
		filter:    cfg.Filter,
		audit:     cfg.Audit,
	}
	c.http = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: cfg.Transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return c.check(req.URL.String())
		},
	}
	return c
}

// Get retrieves rawURL. Failures that mean the resource cannot be reached
// at all (blocked URL, refused connection, unknown host, HTTP 4xx such as
// 404 or 410) are returned as *watch.ResourceFetchError. Timeouts, 408,
// 429 and 5xx responses, cancellation and body read errors are returned as
// plain errors so the job is retried on a later tick.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	if err := c.check(rawURL); err != nil {
		return nil, watch.NewResourceFetchError(rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, watch.NewResourceFetchError(rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch: %s: %w", rawURL, ctx.Err())
		}
		if isTimeout(err) {
			return nil, fmt.Errorf("fetch: %s: %w", rawURL, unwrapURLError(err))
		}
		return nil, watch.NewResourceFetchError(rawURL, unwrapURLError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		statusErr := fmt.Errorf("HTTP %s", resp.Status)
		if isTemporaryStatus(resp.StatusCode) {
			return nil, fmt.Errorf("fetch: %s: %w", rawURL, statusErr)
		}
		return nil, watch.NewResourceFetchError(rawURL, statusErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("fetch: reading %s: %w", rawURL, err)
	}

	return &Page{
		URL:         resp.Request.URL,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (c *Client) check(rawURL string) error {
	err := c.filter.Check(rawURL)
	if err != nil {
		c.audit.Log(security.AuditEvent{
			Type:   security.EventURLBlocked,
			Detail: rawURL,
			Metadata: map[string]string{
				"reason": err.Error(),
			},
		})
	}
	return err
}

// isTemporaryStatus reports whether code means the server may answer later.
func isTemporaryStatus(code int) bool {
	return code >= http.StatusInternalServerError ||
		code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// unwrapURLError strips the "Get \"<url>\": " prefix net/http adds, since
// the URL is already part of the ResourceFetchError.
func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return uerr.Err
	}
	return err
}
