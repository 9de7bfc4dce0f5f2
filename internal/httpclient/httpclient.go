// Package httpclient holds the shared HTTP client used for feed fetches and
// proxy probes, plus retry and response-body helpers.
package httpclient

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultTimeout         = 45 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 8

	// UserAgent is sent on every feed request.
	UserAgent = "epg-merge/1.0"
)

var defaultClient *http.Client

func init() {
	defaultClient = &http.Client{
		Timeout:   DefaultTimeout,
		Transport: newTransport(),
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		// Bodies are decoded by Body so br can be offered alongside gzip.
		DisableCompression: true,
	}
}

// Default returns the shared tuned HTTP client.
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client with the given timeout and a copy of the
// Default transport.
func WithTimeout(timeout time.Duration) *http.Client {
	t, ok := defaultClient.Transport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: timeout}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: t.Clone(),
	}
}

// WithProxy returns a client that sends every request through an HTTP(S)
// proxy. A nil proxyURL behaves like WithTimeout.
func WithProxy(proxyURL *url.URL, timeout time.Duration) *http.Client {
	c := WithTimeout(timeout)
	if proxyURL == nil {
		return c
	}
	if t, ok := c.Transport.(*http.Transport); ok {
		t.Proxy = http.ProxyURL(proxyURL)
		return c
	}
	t := newTransport()
	t.Proxy = http.ProxyURL(proxyURL)
	c.Transport = t
	return c
}

// NewRequest builds a GET with the headers every feed request carries.
func NewRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept-Encoding", AcceptEncoding)
	return req, nil
}
