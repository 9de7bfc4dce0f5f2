package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// StatusError is a non-200 response from Get.
type StatusError struct {
	URL    string
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// Get fetches rawURL under the global host semaphore with the given retry
// policy and returns the decoded body of a 200 response. The caller closes it.
func Get(ctx context.Context, client *http.Client, rawURL string, policy RetryPolicy) (io.ReadCloser, error) {
	return GetHeader(ctx, client, rawURL, nil, policy)
}

// GetHeader is Get with extra request headers.
func GetHeader(ctx context.Context, client *http.Client, rawURL string, header http.Header, policy RetryPolicy) (io.ReadCloser, error) {
	req, err := NewRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	release, err := GlobalHostSem.Acquire(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := DoWithRetry(ctx, client, req, policy)
	if err != nil {
		release()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		release()
		return nil, &StatusError{URL: rawURL, Status: resp.Status, Code: resp.StatusCode}
	}
	body, err := Body(resp)
	if err != nil {
		resp.Body.Close()
		release()
		return nil, err
	}
	return &releasingBody{ReadCloser: body, release: release}, nil
}

// releasingBody frees the host slot once the body is closed.
type releasingBody struct {
	io.ReadCloser
	release func()
	once    sync.Once
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
