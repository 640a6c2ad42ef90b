// Package projects holds the HTTP clients for the canonical project store and the
// project owners service.
package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/propindex/internal/domain"
	"github.com/kailas-cloud/propindex/internal/domain/project"
)

// Defaults for the canonical store client.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultPageSize  = 100
	MaxPageSize      = 1000
	DefaultRateLimit = 20.0
	maxBodyBytes     = 8 << 20
)

var errUnexpectedStatus = errors.New("unexpected status")

// Client reads the canonical project store.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	pageSize   int
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithPageSize sets the listing page size, capped at MaxPageSize, the largest
// limit the store accepts.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = min(n, MaxPageSize)
		}
	}
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables limiting.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a canonical store client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), int(DefaultRateLimit)),
		pageSize:   DefaultPageSize,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListPage fetches one page of raw records (GET /projects?skip=&limit=).
// Records are returned undecoded so a malformed record fails alone.
// An empty page marks the end of the listing.
func (c *Client) ListPage(ctx context.Context, skip int) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(c.pageSize))

	body, err := c.get(ctx, "/projects?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var page []json.RawMessage
	if err := json.Unmarshal(body, &page); err != nil {
		// Some deployments wrap the listing: {"projects": [...]}.
		var wrapped struct {
			Projects []json.RawMessage `json:"projects"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil || wrapped.Projects == nil {
			return nil, fmt.Errorf("decode project listing: %w: %w", domain.ErrUpstreamUnavailable, err)
		}
		page = wrapped.Projects
	}
	return page, nil
}

// Get hydrates one record (GET /projects/{id}).
// A 404 is domain.ErrNotFound; transport failures and 5xx are domain.ErrUpstreamUnavailable.
func (c *Client) Get(ctx context.Context, id int64) (project.Project, error) {
	body, err := c.get(ctx, "/projects/"+strconv.FormatInt(id, 10))
	if err != nil {
		return project.Project{}, err
	}
	p, err := project.DecodeWithID(body, id)
	if err != nil {
		return project.Project{}, fmt.Errorf("hydrate project %d: %w", id, err)
	}
	return p, nil
}

// Ping checks that the canonical store answers.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("skip", "0")
	q.Set("limit", "1")
	_, err := c.get(ctx, "/projects?"+q.Encode())
	return err
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return doGet(ctx, c.httpClient, c.baseURL+path)
}

// doGet performs a GET and maps the status to domain sentinels.
func doGet(ctx context.Context, hc *http.Client, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w: %w", target, domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", target, domain.ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("GET %s: %w", target, domain.ErrNotFound)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("GET %s: status %d: %w", target, resp.StatusCode, domain.ErrUpstreamUnavailable)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("GET %s: status %d: %w", target, resp.StatusCode, errUnexpectedStatus)
	}
	return body, nil
}
