package debug

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
)

// HTTPDispatcher calls a dispatch service over HTTP.
//
// Each step is a POST of the JSON-encoded Request; a 2xx answer is decoded
// as a Response, anything else becomes a *DispatchError.
//
// Example usage:
//
//	d := debug.NewHTTPDispatcher("https://dispatch.internal/api/debug",
//	    debug.WithToken(os.Getenv("FLOWCTL_DISPATCH_TOKEN")),
//	)
//	engine, err := debug.New(g, d)
type HTTPDispatcher struct {
	url     string
	token   string
	headers map[string]string
	client  *http.Client
	retry   *RetryPolicy
	optErr  error
}

// HTTPOption configures an HTTPDispatcher.
type HTTPOption func(*HTTPDispatcher)

// WithToken sends token as a bearer Authorization header.
func WithToken(token string) HTTPOption {
	return func(d *HTTPDispatcher) {
		d.token = token
	}
}

// WithHeader adds a static request header.
func WithHeader(key, value string) HTTPOption {
	return func(d *HTTPDispatcher) {
		d.headers[key] = value
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(d *HTTPDispatcher) {
		if c != nil {
			d.client = c
		}
	}
}

// WithRetry retries transient failures of a single dispatch call with
// exponential backoff. An invalid policy makes every Dispatch fail.
func WithRetry(rp RetryPolicy) HTTPOption {
	return func(d *HTTPDispatcher) {
		if err := rp.Validate(); err != nil {
			d.optErr = err
			return
		}
		d.retry = &rp
	}
}

// NewHTTPDispatcher creates a dispatcher posting to url.
func NewHTTPDispatcher(url string, opts ...HTTPOption) *HTTPDispatcher {
	d := &HTTPDispatcher{
		url:     url,
		headers: make(map[string]string),
		client: &http.Client{
			// Timeout handled via context
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch implements Dispatcher.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, r Request) (Response, error) {
	if d.url == "" {
		return Response{}, errors.New("dispatch url not configured")
	}
	if d.optErr != nil {
		return Response{}, d.optErr
	}

	body, err := sonic.ConfigStd.Marshal(r)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode request: %w", err)
	}

	return withRetry(ctx, d.retry, nil, func() (Response, error) {
		return d.post(ctx, body)
	})
}

func (d *HTTPDispatcher) post(ctx context.Context, body []byte) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}
	for k, v := range d.headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Response{}, &transportError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &DispatchError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out Response
	if err := sonic.ConfigStd.Unmarshal(respBody, &out); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}
