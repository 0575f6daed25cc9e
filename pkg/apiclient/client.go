// Package apiclient is the request layer of the console. It throttles
// duplicate requests, retries transient failures with exponential backoff
// and reports every failure as an *Error.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Default client configuration.
const (
	DefaultBaseURL = "http://localhost:5000/api"
	DefaultTimeout = 10 * time.Second
)

// Params are the query parameters of read and remove requests.
type Params map[string]any

// Transport sends a single request. *retryablehttp.Client satisfies it.
type Transport interface {
	Do(req *retryablehttp.Request) (*http.Response, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Client talks to the operations service. Each Client owns its throttle
// cache, so independent clients never share state.
type Client struct {
	baseURL   string
	timeout   time.Duration
	window    time.Duration
	policy    RetryPolicy
	transport Transport
	throttle  *RequestKeyCache
	now       func() time.Time
	sleep     Sleeper
	log       Logger
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the per-attempt transport timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithThrottleWindow sets the minimum interval between identical requests.
func WithThrottleWindow(d time.Duration) Option {
	return func(c *Client) {
		c.window = d
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithTransport sets a custom transport. The timeout option is ignored.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithClock sets the time source used by the throttle cache.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithSleeper sets how the client waits between retries.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleep = s
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
		window:  DefaultThrottleWindow,
		policy:  DefaultRetryPolicy(),
		now:     time.Now,
		sleep:   sleepContext,
		log:     nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = newTransport(c.timeout, c.log)
	}
	c.throttle = NewRequestKeyCache(c.window, c.now)
	return c
}

// newTransport returns a retryablehttp client with its own retry loop
// disabled. Attempts are driven by RetryPolicy so that verb policy and
// backoff stay exact; the library still buffers bodies for resubmission.
func newTransport(timeout time.Duration, log Logger) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.HTTPClient.Timeout = timeout
	rc.Logger = leveledLogger{log: log}
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		return false, nil
	}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Read issues a GET with params encoded in the query string.
func (c *Client) Read(ctx context.Context, endpoint string, params Params) (*Envelope, error) {
	return c.do(ctx, VerbRead, endpoint, params, func(ctx context.Context) (*retryablehttp.Request, error) {
		return c.newQueryRequest(ctx, VerbRead, endpoint, params)
	})
}

// Create issues a POST with body encoded as JSON.
func (c *Client) Create(ctx context.Context, endpoint string, body any) (*Envelope, error) {
	return c.doJSON(ctx, VerbCreate, endpoint, body)
}

// Update issues a PUT with body encoded as JSON.
func (c *Client) Update(ctx context.Context, endpoint string, body any) (*Envelope, error) {
	return c.doJSON(ctx, VerbUpdate, endpoint, body)
}

// Remove issues a DELETE with params encoded in the query string.
func (c *Client) Remove(ctx context.Context, endpoint string, params Params) (*Envelope, error) {
	return c.do(ctx, VerbRemove, endpoint, params, func(ctx context.Context) (*retryablehttp.Request, error) {
		return c.newQueryRequest(ctx, VerbRemove, endpoint, params)
	})
}

// Upload issues a multipart/form-data POST.
func (c *Client) Upload(ctx context.Context, endpoint string, payload *Multipart) (*Envelope, error) {
	if payload == nil {
		payload = &Multipart{}
	}
	body, contentType, err := payload.encode()
	if err != nil {
		return nil, clientLogicError(fmt.Errorf("encode multipart: %w", err))
	}
	return c.do(ctx, VerbUpload, endpoint, payload.fingerprintParams(), func(ctx context.Context) (*retryablehttp.Request, error) {
		req, err := retryablehttp.NewRequestWithContext(ctx, VerbUpload.Method(), c.url(endpoint), body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
}

func (c *Client) doJSON(ctx context.Context, verb Verb, endpoint string, body any) (*Envelope, error) {
	if body == nil {
		body = map[string]any{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, clientLogicError(fmt.Errorf("encode body: %w", err))
	}
	return c.do(ctx, verb, endpoint, body, func(ctx context.Context) (*retryablehttp.Request, error) {
		req, err := retryablehttp.NewRequestWithContext(ctx, verb.Method(), c.url(endpoint), payload)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
}

func (c *Client) newQueryRequest(ctx context.Context, verb Verb, endpoint string, params Params) (*retryablehttp.Request, error) {
	target := c.url(endpoint)
	if q := encodeQuery(params); q != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + q
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, verb.Method(), target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) url(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

func encodeQuery(params Params) string {
	if len(params) == 0 {
		return ""
	}
	values := url.Values{}
	for k, v := range params {
		if v == nil {
			continue
		}
		values.Set(k, fmt.Sprint(v))
	}
	return values.Encode()
}

// do runs one logical request: throttle check, then attempts under the
// retry policy until success or a terminal failure.
func (c *Client) do(ctx context.Context, verb Verb, endpoint string, params any, build func(context.Context) (*retryablehttp.Request, error)) (*Envelope, error) {
	key, err := Fingerprint(verb, endpoint, params)
	if err != nil {
		return nil, clientLogicError(err)
	}
	if !c.throttle.TryDispatch(key) {
		c.log.Warnf("Request throttled: %s %s", verb, endpoint)
		return nil, throttledError(verb, endpoint)
	}

	var state RetryState
	for {
		status, body, apiErr := c.attempt(ctx, build)
		if apiErr == nil {
			return decodeEnvelope(status, body)
		}

		next, ok := c.policy.Next(state, verb, apiErr)
		if !ok {
			c.log.Errorf("Error in %s %s: %v", verb, endpoint, apiErr.Err)
			return nil, apiErr
		}
		c.log.Warnf("%s %s failed (%s), retry %d/%d in %s", verb, endpoint, apiErr.Kind, next.Attempt, c.policy.MaxRetries, next.NextDelay)
		if err := c.sleep(ctx, next.NextDelay); err != nil {
			return nil, apiErr
		}
		state = next
	}
}

func (c *Client) attempt(ctx context.Context, build func(context.Context) (*retryablehttp.Request, error)) (int, []byte, *Error) {
	req, err := build(ctx)
	if err != nil {
		return 0, nil, clientLogicError(err)
	}

	resp, err := c.transport.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return 0, nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, transportError(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, body, responseError(resp.StatusCode, bytes.TrimSpace(body))
	}
	return resp.StatusCode, body, nil
}
