package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/snapetech/epgmerge/internal/httpclient"
)

// Result is the outcome of fetching the target through one proxy.
type Result struct {
	Proxy      *url.URL `json:"-"`
	Addr       string   `json:"proxy"`
	Status     Status   `json:"status"`
	StatusCode int      `json:"status_code,omitempty"`
	LatencyMs  int64    `json:"latency_ms"`
}

type Status string

const (
	StatusOK         Status = "ok"
	StatusCloudflare Status = "cloudflare"
	StatusBadStatus  Status = "bad_status"
	StatusTimeout    Status = "timeout"
	StatusError      Status = "error"
)

const (
	DefaultTimeout     = 8 * time.Second
	DefaultConcurrency = 16
	DefaultRate        = 20
)

// ProbeOne fetches target through p and classifies the response.
func ProbeOne(ctx context.Context, p *url.URL, target string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	res := Result{Proxy: p, Addr: Redact(p)}
	client, err := Client(p, timeout)
	if err != nil {
		res.Status = StatusError
		return res
	}
	start := time.Now()
	req, err := httpclient.NewRequest(ctx, target)
	if err != nil {
		res.Status = StatusError
		return res
	}
	resp, err := client.Do(req)
	res.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		res.Status = StatusError
		if isTimeout(err) {
			res.Status = StatusTimeout
		}
		return res
	}
	defer resp.Body.Close()
	preview := make([]byte, 512)
	n, _ := resp.Body.Read(preview)
	res.StatusCode = resp.StatusCode
	res.Status = classify(resp, strings.ToLower(string(preview[:n])))
	return res
}

// classify treats a response as Cloudflare only when the Server header or a
// challenge page says so; a plain 403/503 from the origin is a bad status.
func classify(resp *http.Response, preview string) Status {
	code := resp.StatusCode
	isCFServer := strings.EqualFold(strings.TrimSpace(resp.Header.Get("Server")), "cloudflare")
	challenge := strings.Contains(preview, "checking your browser") ||
		strings.Contains(preview, "cf-bypass") ||
		strings.Contains(preview, "ray id")
	switch {
	case code == http.StatusOK:
		return StatusOK
	case (code == 403 || code == 503 || code == 520 || code == 521 || code == 524) && (challenge || isCFServer):
		return StatusCloudflare
	case isCFServer:
		return StatusCloudflare
	}
	return StatusBadStatus
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "timeout") || strings.Contains(s, "deadline")
}

// Options bound a probe run.
type Options struct {
	Concurrency int
	Timeout     time.Duration
	// Rate is probe launches per second; <= 0 is unlimited.
	Rate   float64
	Logger zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

func (o Options) limiter() *rate.Limiter {
	if o.Rate <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(o.Rate), 1)
}

// FirstWorking probes candidates concurrently and returns the first one that
// fetched target with a 200. Outstanding probes are cancelled as soon as one
// succeeds. Order of success, not of candidates, decides the winner.
func FirstWorking(ctx context.Context, candidates []*url.URL, target string, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if len(candidates) == 0 {
		return Result{}, ErrNoWorkingProxy
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lim := opts.limiter()
	sem := make(chan struct{}, opts.Concurrency)
	won := make(chan Result, 1)
	var wg sync.WaitGroup
launch:
	for _, p := range candidates {
		if err := lim.Wait(ctx); err != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break launch
		}
		wg.Add(1)
		go func(p *url.URL) {
			defer wg.Done()
			defer func() { <-sem }()
			r := ProbeOne(ctx, p, target, opts.Timeout)
			opts.Logger.Debug().Str("proxy", r.Addr).Str("status", string(r.Status)).
				Int64("latency_ms", r.LatencyMs).Msg("proxy: probed")
			if r.Status != StatusOK {
				return
			}
			select {
			case won <- r:
				cancel()
			default:
			}
		}(p)
	}
	wg.Wait()

	select {
	case r := <-won:
		return r, nil
	default:
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return Result{}, err
	}
	return Result{}, ErrNoWorkingProxy
}

// ProbeAll probes every candidate and returns results sorted OK first (by
// latency), then the rest by address.
func ProbeAll(ctx context.Context, candidates []*url.URL, target string, opts Options) []Result {
	opts = opts.withDefaults()
	lim := opts.limiter()
	sem := make(chan struct{}, opts.Concurrency)
	out := make([]Result, len(candidates))
	var wg sync.WaitGroup
	for i, p := range candidates {
		if err := lim.Wait(ctx); err != nil {
			out[i] = Result{Proxy: p, Addr: Redact(p), Status: StatusError}
			continue
		}
		wg.Add(1)
		go func(i int, p *url.URL) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				out[i] = Result{Proxy: p, Addr: Redact(p), Status: StatusError}
				return
			}
			defer func() { <-sem }()
			out[i] = ProbeOne(ctx, p, target, opts.Timeout)
		}(i, p)
	}
	wg.Wait()
	sort.SliceStable(out, func(i, j int) bool {
		okI := out[i].Status == StatusOK
		okJ := out[j].Status == StatusOK
		if okI != okJ {
			return okI
		}
		if okI {
			return out[i].LatencyMs < out[j].LatencyMs
		}
		return out[i].Addr < out[j].Addr
	})
	return out
}
