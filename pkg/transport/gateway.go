package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/elvisfernandes/ng-dfservice/pkg/resource"
)

// Header names understood by the remote API.
const (
	HeaderAPIKey         = "X-DreamFactory-Api-Key"
	HeaderSessionToken   = "X-DreamFactory-Session-Token"
	HeaderMethodOverride = "X-HTTP-METHOD"
	HeaderRequestID      = "X-Request-ID"
)

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HeaderSource supplies the authentication headers attached to every
// request. It must return a fresh header set on each call.
type HeaderSource interface {
	Headers() http.Header
}

// StaticHeaders is a HeaderSource that only sends an API key.
type StaticHeaders string

// Headers implements HeaderSource.
func (k StaticHeaders) Headers() http.Header {
	h := http.Header{}
	h.Set(HeaderAPIKey, string(k))
	return h
}

// Gateway issues requests for Locators against a base API endpoint.
type Gateway struct {
	baseURL string
	client  Doer
	logger  hclog.Logger

	mu      sync.RWMutex
	headers HeaderSource
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithDoer sets the HTTP capability used to send requests.
func WithDoer(d Doer) Option {
	return func(g *Gateway) {
		g.client = d
	}
}

// WithHeaderSource sets where authentication headers come from.
func WithHeaderSource(h HeaderSource) Option {
	return func(g *Gateway) {
		g.headers = h
	}
}

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

// New creates a gateway for the configured API endpoint. Unless overridden,
// requests go through cfg.NewHTTPClient() and carry only the API key.
func New(cfg *Config, opts ...Option) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway config: %w", err)
	}

	g := &Gateway{
		baseURL: cfg.NormalizedBaseURL(),
		headers: StaticHeaders(cfg.APIKey),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.client == nil {
		g.client = cfg.NewHTTPClient()
	}
	if g.logger == nil {
		g.logger = hclog.NewNullLogger()
	}
	g.logger = g.logger.Named("transport")

	return g, nil
}

// SetHeaderSource replaces the header source. The session manager installs
// itself here once it has been created on top of the gateway. Requests
// already in flight keep the headers they were built with.
func (g *Gateway) SetHeaderSource(h HeaderSource) {
	g.mu.Lock()
	g.headers = h
	g.mu.Unlock()
}

func (g *Gateway) headerSource() HeaderSource {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.headers
}

// BaseURL returns the endpoint requests are sent to.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	methodOverride string
}

// WithMethodOverride tunnels method through the X-HTTP-METHOD header. The
// header only exists on this one request.
func WithMethodOverride(method string) RequestOption {
	return func(o *requestOptions) {
		o.methodOverride = method
	}
}

// Fetch retrieves records using the locator's path and query parameters.
func (g *Gateway) Fetch(ctx context.Context, loc *resource.Locator) (*Response, error) {
	return g.Do(ctx, http.MethodGet, loc.QueryURL(g.baseURL), nil)
}

// Create posts rec wrapped in a resource envelope, or the locator's raw body
// when rec is nil.
func (g *Gateway) Create(ctx context.Context, loc *resource.Locator, rec resource.Record) (*Response, error) {
	var body any = loc.Body
	if rec != nil {
		body = envelope(rec.ToRemote())
	}
	return g.Do(ctx, http.MethodPost, loc.URL(g.baseURL), body)
}

// Replace patches rec.
func (g *Gateway) Replace(ctx context.Context, loc *resource.Locator, rec resource.Record) (*Response, error) {
	return g.Do(ctx, http.MethodPatch, loc.URL(g.baseURL), envelope(rec.ToRemote()))
}

// Overwrite puts the locator's raw body.
func (g *Gateway) Overwrite(ctx context.Context, loc *resource.Locator) (*Response, error) {
	return g.Do(ctx, http.MethodPut, loc.URL(g.baseURL), loc.Body)
}

// Remove deletes rec, or whatever the locator's raw body describes when rec
// is nil. The request is sent as a POST with a DELETE method override, which
// some backends require.
func (g *Gateway) Remove(ctx context.Context, loc *resource.Locator, rec resource.Record) (*Response, error) {
	var body any = loc.Body
	if rec != nil {
		body = envelope(rec.RecordID())
	}
	return g.Do(ctx, http.MethodPost, loc.URL(g.baseURL), body, WithMethodOverride(http.MethodDelete))
}

// Do sends a request with the authentication headers attached. Non-2xx
// responses are returned together with a *StatusError.
func (g *Gateway) Do(ctx context.Context, method, endpoint string, body any, opts ...RequestOption) (*Response, error) {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if hs := g.headerSource(); hs != nil {
		for k, vs := range hs.Headers() {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if o.methodOverride != "" {
		req.Header.Set(HeaderMethodOverride, o.methodOverride)
	}
	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)

	log := g.logger.With("method", method, "url", endpoint, "request_id", requestID)
	if o.methodOverride != "" {
		log = log.With("method_override", o.methodOverride)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		log.Debug("request failed", "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.Debug("request completed", "status", resp.StatusCode, "elapsed", time.Since(start))

	r := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}

	if !r.OK() {
		return r, newStatusError(method, endpoint, r)
	}

	return r, nil
}

func envelope(items ...any) map[string]any {
	return map[string]any{"resource": items}
}
