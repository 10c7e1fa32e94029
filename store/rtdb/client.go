/*
Package rtdb implements generic.Store on Firebase Realtime Database through
its REST API.

PURPOSE:
  The dashboard writes straight into a Realtime Database. This store reads
  and writes the same tree so the engine and the dashboard see one dataset.

TREE:
  config                                   tier configuration document
  sales/{month}/{uid}/{saleId}             sales
  ml_links/{week}/{uid}/items/{linkKey}    {url, ts}
  closures/{month}                         closure record
  ig_tracking/{date}/{uid}                 {posts, stories, times}
  users/{uid}                              profile

WRITE-IF-ABSENT:
  Conditional writes use the ETag protocol. A GET with "X-Firebase-ETag:
  true" returns the node's ETag (an absent node has one too). A PUT with
  "if-match" succeeds only if the node is unchanged, otherwise the server
  answers 412. AddMarketplaceLink treats a 412 as a lost race, which is a
  duplicate. Instagram counters retry the read-modify-write on 412.

RESILIENCE:
  Every request runs inside a gobreaker circuit breaker with retries and
  exponential backoff. Client errors (4xx, 412) are permanent: they are not
  retried and do not trip the breaker.

SEE ALSO:
  - store.go: The generic.Store methods
  - resilience/: Retry and breaker
*/
package rtdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/warp/sales-engine/generic"
	"github.com/warp/sales-engine/resilience"
)

// Config configures the REST client.
type Config struct {
	// BaseURL is the database root, e.g. https://project-default-rtdb.firebaseio.com
	BaseURL string
	// AuthToken is sent as the "auth" query parameter when set.
	AuthToken  string
	Timeout    time.Duration
	Resilience resilience.Config
}

var (
	// errPrecondition is a 412 on a conditional write.
	errPrecondition = errors.New("rtdb: precondition failed")
	errClient       = errors.New("rtdb: client error")
)

// Client wraps HTTP calls to the Realtime Database REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	auth       string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates a client. A nil httpClient gets one with cfg.Timeout.
func NewClient(httpClient *http.Client, cfg Config, logger *zap.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		auth:       cfg.AuthToken,
		cb: resilience.NewCircuitBreaker("rtdb", func(err error) bool {
			return errors.Is(err, errClient) || errors.Is(err, errPrecondition)
		}),
		cfg:    cfg.Resilience,
		logger: logger,
	}
}

// response is a completed REST call.
type response struct {
	body []byte
	etag string
}

func (r response) isNull() bool {
	s := strings.TrimSpace(string(r.body))
	return s == "" || s == "null"
}

// request options
type reqOpts struct {
	etag    bool
	ifMatch string
	query   url.Values
}

// do executes one REST call under the breaker and retry policy.
func (c *Client) do(ctx context.Context, method, path string, body any, opts reqOpts) (response, error) {
	var payload []byte
	if body != nil {
		switch b := body.(type) {
		case json.RawMessage:
			payload = b
		default:
			var err error
			if payload, err = json.Marshal(body); err != nil {
				return response{}, fmt.Errorf("rtdb: encode %s: %w", path, err)
			}
		}
	}

	var resp response
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			r, err := c.roundTrip(ctx, method, path, payload, opts)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return response{}, fmt.Errorf("%w: %v", generic.ErrUpstreamUnavailable, err)
	}
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, opts reqOpts) (response, error) {
	u := c.url(path, opts.query)
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return response{}, resilience.Permanent(fmt.Errorf("rtdb: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if opts.etag {
		req.Header.Set("X-Firebase-ETag", "true")
	}
	if opts.ifMatch != "" {
		req.Header.Set("if-match", opts.ifMatch)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("rtdb: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			return response{}, resilience.Permanent(ctx.Err())
		}
		return response{}, fmt.Errorf("%w: %v", generic.ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return response{}, fmt.Errorf("%w: read body: %v", generic.ErrUpstreamUnavailable, err)
	}

	switch {
	case res.StatusCode == http.StatusPreconditionFailed:
		return response{}, resilience.Permanent(errPrecondition)
	case res.StatusCode >= 500:
		c.logger.Warn("rtdb: server error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", res.StatusCode),
		)
		return response{}, fmt.Errorf("%w: %s %s returned %d", generic.ErrUpstreamUnavailable, method, path, res.StatusCode)
	case res.StatusCode >= 400:
		c.logger.Warn("rtdb: client error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", res.StatusCode),
			zap.String("body", string(body)),
		)
		return response{}, resilience.Permanent(fmt.Errorf("%w: %s %s returned %d: %s", errClient, method, path, res.StatusCode, string(body)))
	}

	c.logger.Debug("rtdb: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", res.StatusCode),
	)
	return response{body: body, etag: res.Header.Get("ETag")}, nil
}

func (c *Client) url(path string, query url.Values) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	if c.auth != "" {
		q.Set("auth", c.auth)
	}
	u := c.baseURL + "/" + strings.Trim(path, "/") + ".json"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// =============================================================================
// TYPED HELPERS
// =============================================================================

// get decodes the node at path into out. found is false for a null node.
func (c *Client) get(ctx context.Context, path string, out any) (found bool, err error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, reqOpts{})
	if err != nil {
		return false, err
	}
	if resp.isNull() {
		return false, nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return false, fmt.Errorf("rtdb: decode %s: %w", path, err)
	}
	return true, nil
}

func (c *Client) getRaw(ctx context.Context, path string) (response, error) {
	return c.do(ctx, http.MethodGet, path, nil, reqOpts{})
}

func (c *Client) getWithETag(ctx context.Context, path string) (response, error) {
	return c.do(ctx, http.MethodGet, path, nil, reqOpts{etag: true})
}

// shallowKeys lists the child keys of path without their values.
func (c *Client) shallowKeys(ctx context.Context, path string) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, reqOpts{query: url.Values{"shallow": {"true"}}})
	if err != nil || resp.isNull() {
		return nil, err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(resp.body, &keys); err != nil {
		return nil, fmt.Errorf("rtdb: decode keys of %s: %w", path, err)
	}
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	return out, nil
}

func (c *Client) put(ctx context.Context, path string, value any) error {
	_, err := c.do(ctx, http.MethodPut, path, value, reqOpts{})
	return err
}

// putIfMatch writes value only if the node still has etag. Returns
// errPrecondition when it changed.
func (c *Client) putIfMatch(ctx context.Context, path string, value any, etag string) error {
	_, err := c.do(ctx, http.MethodPut, path, value, reqOpts{ifMatch: etag})
	return err
}

func (c *Client) patch(ctx context.Context, path string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	_, err := c.do(ctx, http.MethodPatch, path, updates, reqOpts{})
	return err
}

func (c *Client) delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, reqOpts{})
	return err
}
