package httpclient

import (
	"context"
	"net/url"
	"sync"
)

// HostSemaphore is a per-host concurrency limiter shared by every fetch in
// the process, so day-paged guide scrapes do not hammer one upstream.
//
//	release, err := GlobalHostSem.Acquire(ctx, rawURL)
//	if err != nil { ... }
//	defer release()
type HostSemaphore struct {
	mu    sync.Mutex
	sems  map[string]chan struct{}
	limit int
}

// GlobalHostSem is the shared per-host limiter: 4 concurrent requests per host.
var GlobalHostSem = NewHostSemaphore(4)

func NewHostSemaphore(concurrency int) *HostSemaphore {
	if concurrency < 1 {
		concurrency = 1
	}
	return &HostSemaphore{
		sems:  make(map[string]chan struct{}),
		limit: concurrency,
	}
}

// Acquire blocks until a slot for the URL's scheme+host is free or ctx is
// done, and returns the release func.
func (h *HostSemaphore) Acquire(ctx context.Context, rawURL string) (func(), error) {
	sem := h.semFor(rawURL)
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *HostSemaphore) semFor(host string) chan struct{} {
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		host = u.Scheme + "://" + u.Host
	}
	h.mu.Lock()
	s, ok := h.sems[host]
	if !ok {
		s = make(chan struct{}, h.limit)
		h.sems[host] = s
	}
	h.mu.Unlock()
	return s
}
