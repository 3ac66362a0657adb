// Package backend is the HTTP client for the storefront's remote REST backend: carts, products,
// galleries, coupons, orders, payments, addresses and notifications.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultTimeout             = 25 * time.Second
	errorBodyReadLimit   int64 = 4096
	successBodyReadLimit int64 = 8 << 20
)

var errBaseURLRequired = errors.New("backend base url is required")

// Observer receives one call per finished backend request.
type Observer interface {
	ObserveBackendRequest(op string, status int, elapsed time.Duration)
}

// Client talks to the storefront backend. Gallery lookups have their own breaker so a
// gallery outage, which only costs thumbnails, never blocks product or order calls.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	breaker        *gobreaker.CircuitBreaker[*rawResponse]
	galleryBreaker *gobreaker.CircuitBreaker[*rawResponse]
	observer       Observer
	now            func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds every request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			// copy so a caller-supplied client is never mutated
			client := *c.httpClient
			client.Timeout = timeout
			c.httpClient = &client
		}
	}
}

// WithBreaker replaces the default circuit breaker settings of both breakers.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(c *Client) {
		c.breaker = newBreaker(breakerName, maxFailures, openTimeout)
		c.galleryBreaker = newBreaker(galleryBreakerName, maxFailures, openTimeout)
	}
}

// WithObserver reports request durations, typically to Prometheus.
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient builds a backend client for baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:        trimmed,
		httpClient:     &http.Client{Timeout: defaultTimeout},
		breaker:        newBreaker(breakerName, 5, 30*time.Second),
		galleryBreaker: newBreaker(galleryBreakerName, 5, 30*time.Second),
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

const (
	breakerName        = "storefront-backend"
	galleryBreakerName = "storefront-backend-gallery"
	galleryOpPrefix    = "gallery."
)

func newBreaker(name string, maxFailures uint32, openTimeout time.Duration) *gobreaker.CircuitBreaker[*rawResponse] {
	if maxFailures == 0 {
		maxFailures = 5
	}
	return gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
		Name:    name,
		Timeout: openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
	})
}

func (c *Client) breakerFor(op string) *gobreaker.CircuitBreaker[*rawResponse] {
	if strings.HasPrefix(op, galleryOpPrefix) {
		return c.galleryBreaker
	}
	return c.breaker
}

type rawResponse struct {
	status int
	body   []byte
}

// errServerStatus marks a 5xx so the breaker counts it; the response itself is still returned.
type errServerStatus struct {
	resp *rawResponse
}

func (e errServerStatus) Error() string {
	return "backend returned status " + strconv.Itoa(e.resp.status)
}

type tokenKey struct{}

// WithToken attaches the shopper's bearer credential to ctx; requests forward it upstream.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFromContext(ctx context.Context) string {
	if token, ok := ctx.Value(tokenKey{}).(string); ok {
		return token
	}
	return ""
}

// do sends one request. op is a low-cardinality label for logs and metrics.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "backend client not configured")
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+op+" request")
		}
	}

	start := c.now()
	resp, err := c.breakerFor(op).Execute(func() (*rawResponse, error) {
		return c.send(ctx, method, path, payload)
	})

	var serverErr errServerStatus
	if errors.As(err, &serverErr) {
		resp, err = serverErr.resp, nil
	}

	status := 0
	if resp != nil {
		status = resp.status
	}
	if c.observer != nil {
		c.observer.ObserveBackendRequest(op, status, c.now().Sub(start))
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "The shop is temporarily unavailable. Please try again shortly.").
			WithDetails(map[string]any{"op": op})
	case err != nil:
		return pkgerrors.FromTransport(err, op)
	}

	if resp.status < 200 || resp.status > 299 {
		return pkgerrors.FromHTTPStatus(resp.status, serverMessage(resp.body),
			fmt.Errorf("%s %s: status %d", method, path, resp.status))
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+op+" response")
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*rawResponse, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := tokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	limit := successBodyReadLimit
	if resp.StatusCode >= 300 {
		limit = errorBodyReadLimit
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, err
	}

	raw := &rawResponse{status: resp.StatusCode, body: data}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, errServerStatus{resp: raw}
	}
	return raw, nil
}

// serverMessage pulls a human message out of an error body: {"message"}, {"error"} or plain text.
func serverMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] == '{' {
		var parsed struct {
			Message string `json:"message"`
			Error   any    `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &parsed); err == nil {
			if parsed.Message != "" {
				return parsed.Message
			}
			switch v := parsed.Error.(type) {
			case string:
				return v
			case map[string]any:
				if msg, ok := v["message"].(string); ok {
					return msg
				}
			}
		}
		return ""
	}
	if trimmed[0] == '<' {
		return ""
	}
	return string(trimmed)
}
