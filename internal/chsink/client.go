// Package chsink is a batching sink that buffers rows, flushes them to a
// ClickHouse-style HTTP endpoint on size or time thresholds, and retries
// transient failures.
package chsink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/time/rate"

	"journalchd/internal/ingest"
	"journalchd/internal/row"
)

// Config holds the knobs SPEC_FULL.md §4.7 names.
type Config struct {
	// URI is e.g. "http://default:@localhost:8123/default" — scheme,
	// optional basic-auth credentials, host, and the target database as
	// the path's first segment.
	URI string

	Table       string
	MaxEntries  int
	Period      time.Duration
	Compression bool

	// RateLimit caps outbound POSTs per second; zero means unlimited.
	RateLimit rate.Limit
}

const defaultRateLimit = rate.Limit(10)

// Client is a row.Row sink backed by an HTTP ClickHouse-style server. It
// implements ingest.Sink.
type Client struct {
	cfg       Config
	serverURL *url.URL
	user      string
	password  string
	http      *http.Client
	limiter   *rate.Limiter

	mu        sync.Mutex
	buffered  []row.Row
	lastFlush time.Time
}

// New validates cfg.URI and returns a ready Client. A malformed URI is a
// fatal startup error per SPEC_FULL.md §4.5, so it is returned rather
// than deferred to the first Commit.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("chsink: invalid sink URI: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("chsink: sink URI %q missing scheme or host", cfg.URI)
	}

	user, password := "", ""
	if u.User != nil {
		user = u.User.Username()
		password, _ = u.User.Password()
	}

	limit := cfg.RateLimit
	if limit == 0 {
		limit = defaultRateLimit
	}

	return &Client{
		cfg:       cfg,
		serverURL: u,
		user:      user,
		password:  password,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(limit, 1),
		lastFlush: time.Now(),
	}, nil
}

// Write buffers r for the next flush.
func (c *Client) Write(r row.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffered = append(c.buffered, r)
	return nil
}

// Commit flushes the buffer if either threshold is exceeded.
func (c *Client) Commit() (ingest.CommitResult, error) {
	c.mu.Lock()
	due := len(c.buffered) >= c.cfg.MaxEntries || time.Since(c.lastFlush) >= c.cfg.Period
	if !due || len(c.buffered) == 0 {
		c.mu.Unlock()
		return ingest.CommitResult{}, nil
	}
	batch := c.buffered
	c.buffered = nil
	c.lastFlush = time.Now()
	c.mu.Unlock()

	if err := c.flush(batch); err != nil {
		return ingest.CommitResult{}, err
	}
	return ingest.CommitResult{Entries: len(batch), Transactions: 1}, nil
}

// End flushes unconditionally and releases the HTTP client's connections.
func (c *Client) End() error {
	c.mu.Lock()
	batch := c.buffered
	c.buffered = nil
	c.mu.Unlock()

	var err error
	if len(batch) > 0 {
		err = c.flush(batch)
	}
	c.http.CloseIdleConnections()
	return err
}

func (c *Client) flush(batch []row.Row) error {
	payload, err := encodeRowBinary(batch)
	if err != nil {
		return fmt.Errorf("chsink: encode: %w", err)
	}

	if c.cfg.Compression {
		payload, err = compressLZ4(payload)
		if err != nil {
			return fmt.Errorf("chsink: compress: %w", err)
		}
	}

	ctx := context.Background()
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("chsink: rate limiter: %w", err)
	}

	op := func() error {
		return c.post(payload)
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	return backoff.Retry(op, b)
}

func (c *Client) post(payload []byte) error {
	endpoint := *c.serverURL
	endpoint.User = nil // credentials go on the Authorization header, not in the URL
	q := endpoint.Query()
	q.Set("query", fmt.Sprintf("INSERT INTO %s FORMAT RowBinary", c.cfg.Table))
	if db := databaseFromPath(endpoint.Path); db != "" {
		q.Set("database", db)
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("chsink: build request: %w", err))
	}
	if c.cfg.Compression {
		req.Header.Set("Content-Encoding", "lz4")
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chsink: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	respErr := fmt.Errorf("chsink: server returned %d: %s", resp.StatusCode, body)

	// A 4xx means the request itself is malformed; retrying would just
	// repeat the same failure forever.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return backoff.Permanent(respErr)
	}
	return respErr
}

func databaseFromPath(p string) string {
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	return p
}

func compressLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
