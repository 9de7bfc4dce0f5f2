package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/snapetech/epgmerge/internal/config"
	"github.com/snapetech/epgmerge/internal/feed"
	"github.com/snapetech/epgmerge/internal/httpclient"
	"github.com/snapetech/epgmerge/internal/proxy"
)

// client returns the feed client: through a working proxy when candidates
// are configured, direct otherwise or when none works.
func (p *pipeline) client(ctx context.Context, loc *time.Location) (*http.Client, string) {
	direct := httpclient.WithTimeout(p.cfg.FetchTimeout)
	if !p.cfg.HasProxies() {
		return direct, ""
	}
	r, err := p.selectProxy(ctx, loc)
	if err != nil {
		p.log.Warn().Err(err).Msg("proxy: none usable; fetching direct")
		return direct, ""
	}
	c, err := proxy.Client(r.Proxy, p.cfg.FetchTimeout)
	if err != nil {
		p.log.Warn().Err(err).Msg("proxy: client; fetching direct")
		return direct, ""
	}
	p.log.Info().Str("proxy", r.Addr).Int64("latency_ms", r.LatencyMs).Msg("proxy: using")
	return c, r.Addr
}

// selectProxy tries the last good proxy from the store first, then races the
// configured candidates.
func (p *pipeline) selectProxy(ctx context.Context, loc *time.Location) (proxy.Result, error) {
	target := p.proxyTarget(loc)
	now := p.clock()
	if p.store != nil {
		if addr, err := p.store.LastGoodProxy(ctx, p.cfg.ProxyCacheTTL, now); err != nil {
			p.log.Warn().Err(err).Msg("proxy: cache lookup")
		} else if addr != "" {
			if u, err := proxy.Parse(addr); err == nil {
				r := proxy.ProbeOne(ctx, u, target, p.cfg.ProxyTimeout)
				p.observeProbe(ctx, r)
				if r.Status == proxy.StatusOK {
					return r, nil
				}
				p.log.Info().Str("proxy", r.Addr).Str("status", string(r.Status)).Msg("proxy: cached proxy failed")
			}
		}
	}

	candidates, err := p.proxyCandidates(ctx)
	if err != nil {
		return proxy.Result{}, err
	}
	p.log.Info().Int("candidates", len(candidates)).Str("target", target).Msg("proxy: probing")
	r, err := proxy.FirstWorking(ctx, candidates, target, p.probeOptions())
	if err != nil {
		return proxy.Result{}, err
	}
	p.observeProbe(ctx, r)
	return r, nil
}

func (p *pipeline) probeOptions() proxy.Options {
	return proxy.Options{
		Concurrency: p.cfg.ProxyConcurrency,
		Timeout:     p.cfg.ProxyTimeout,
		Rate:        p.cfg.ProxyRate,
		Logger:      p.log,
	}
}

func (p *pipeline) observeProbe(ctx context.Context, r proxy.Result) {
	if p.metrics != nil {
		p.metrics.ObserveProbe(string(r.Status))
	}
	if p.store == nil || r.Proxy == nil {
		return
	}
	latency := time.Duration(r.LatencyMs) * time.Millisecond
	if err := p.store.RecordProxy(ctx, r.Proxy.String(), string(r.Status), latency, p.clock()); err != nil {
		p.log.Warn().Err(err).Msg("proxy: record")
	}
}

// proxyTarget is EPGMERGE_PROXY_TARGET, else today's primary page.
func (p *pipeline) proxyTarget(loc *time.Location) string {
	if p.cfg.ProxyTarget != "" {
		return p.cfg.ProxyTarget
	}
	if p.cfg.PrimaryKind == config.KindHTML {
		return feed.DayURL(p.cfg.PrimaryURL, p.clock().In(loc))
	}
	return p.cfg.PrimaryURL
}

// proxyCandidates merges EPGMERGE_PROXIES with the list at
// EPGMERGE_PROXY_LIST_URL (fetched direct), dropping duplicates.
func (p *pipeline) proxyCandidates(ctx context.Context) ([]*url.URL, error) {
	var lists []string
	if s := strings.TrimSpace(p.cfg.Proxies); s != "" {
		lists = append(lists, s)
	}
	if p.cfg.ProxyListURL != "" {
		body, err := fetchProxyList(ctx, p.cfg.ProxyListURL, p.cfg.FetchTimeout, p.retryPolicy())
		if err != nil {
			p.log.Warn().Err(err).Msg("proxy: list fetch failed")
		} else {
			lists = append(lists, body)
		}
	}
	out := proxy.ParseList(strings.NewReader(strings.Join(lists, "\n")))
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no candidates", proxy.ErrNoWorkingProxy)
	}
	return out, nil
}

func fetchProxyList(ctx context.Context, loc string, timeout time.Duration, retry httpclient.RetryPolicy) (string, error) {
	if !feed.IsRemote(loc) {
		return "", errors.New("proxy list must be an http(s) URL")
	}
	rc, err := httpclient.Get(ctx, httpclient.WithTimeout(timeout), loc, retry)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read proxy list: %w", err)
	}
	return string(data), nil
}
