package httpclient

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy controls when DoWithRetry retries after a response.
type RetryPolicy struct {
	// Retry429: on 429 Too Many Requests, wait Retry-After (capped at Max429Wait) and retry once.
	Retry429   bool
	Max429Wait time.Duration
	// Retry5xx: on 5xx, wait Backoff5xx and retry once.
	Retry5xx   bool
	Backoff5xx time.Duration
}

// DefaultRetryPolicy retries 429 (cap 30s) and 5xx (2s backoff).
var DefaultRetryPolicy = RetryPolicy{
	Retry429:   true,
	Max429Wait: 30 * time.Second,
	Retry5xx:   true,
	Backoff5xx: 2 * time.Second,
}

// NoRetry sends each request exactly once. Proxy probes use it.
var NoRetry = RetryPolicy{}

// DoWithRetry performs req and on 429/5xx (when policy allows) waits and retries once.
// 4xx (except 429) are never retried. Caller must close resp.Body when err == nil.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	if client == nil {
		client = Default()
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	code := resp.StatusCode
	switch {
	case code == http.StatusTooManyRequests && policy.Retry429:
		return retryOnce(ctx, client, req, resp, parseRetryAfter(resp.Header.Get("Retry-After"), policy.Max429Wait))
	case code >= 500 && policy.Retry5xx:
		return retryOnce(ctx, client, req, resp, policy.Backoff5xx)
	}
	return resp, nil
}

// retryOnce drains the failed response, waits, and repeats req without a body.
func retryOnce(ctx context.Context, client *http.Client, req *http.Request, failed *http.Response, wait time.Duration) (*http.Response, error) {
	_, _ = io.Copy(io.Discard, failed.Body)
	failed.Body.Close()
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	req2, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), nil)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Header {
		req2.Header[k] = v
	}
	return client.Do(req2)
}

// parseRetryAfter parses Retry-After (seconds or HTTP-date); returns duration capped at max.
func parseRetryAfter(s string, max time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1 * time.Second
	}
	if sec, err := strconv.Atoi(s); err == nil && sec >= 0 {
		d := time.Duration(sec) * time.Second
		if d > max {
			return max
		}
		return d
	}
	t, err := http.ParseTime(s)
	if err != nil {
		return 1 * time.Second
	}
	until := time.Until(t)
	if until <= 0 {
		return 0
	}
	if until > max {
		return max
	}
	return until
}
