// Package fetcher downloads image payloads from their origin URL.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Result is a fully read origin response.
type Result struct {
	Body []byte
	// ContentType is the raw Content-Type header, empty when the origin sent none.
	ContentType string
}

// Fetcher retrieves the bytes behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Result, error)
}

// StatusError reports a non-success HTTP status from the origin.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// DefaultTimeout applies when NewHTTP is given a non-positive timeout.
const DefaultTimeout = 30 * time.Second

// HTTPFetcher is a Fetcher backed by net/http with a bounded overall timeout,
// so a hung origin cannot hold a request forever.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTP returns an HTTPFetcher whose requests (connect, headers and body) are
// limited to timeout, or DefaultTimeout when timeout is not positive. Outgoing
// requests carry trace context.
func NewHTTP(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 10

	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Result{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
