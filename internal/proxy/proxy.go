// Package proxy parses proxy candidate lists and finds one that can reach the
// guide site.
package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	xproxy "golang.org/x/net/proxy"

	"github.com/snapetech/epgmerge/internal/httpclient"
)

// ErrNoWorkingProxy is returned by FirstWorking when every candidate failed.
var ErrNoWorkingProxy = errors.New("no working proxy")

// Parse reads one candidate. A bare "host:port" is an HTTP proxy.
func Parse(s string) (*url.URL, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty proxy")
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("proxy %q: %w", s, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("proxy %q: unsupported scheme %q", s, u.Scheme)
	}
	if u.Hostname() == "" || u.Port() == "" {
		return nil, fmt.Errorf("proxy %q: want host:port", s)
	}
	return &url.URL{Scheme: u.Scheme, User: u.User, Host: u.Host}, nil
}

// ParseList reads candidates separated by newlines, commas or spaces. Blank
// entries, "#" comments and unparsable entries are skipped; duplicates are
// kept once in first-seen order.
func ParseList(r io.Reader) []*url.URL {
	var out []*url.URL
	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, field := range strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			u, err := Parse(field)
			if err != nil || seen[u.String()] {
				continue
			}
			seen[u.String()] = true
			out = append(out, u)
		}
	}
	return out
}

// Client returns an HTTP client that routes through p: HTTP(S) proxies via the
// transport's Proxy hook, SOCKS5 via a dialer.
func Client(p *url.URL, timeout time.Duration) (*http.Client, error) {
	switch p.Scheme {
	case "http", "https":
		return httpclient.WithProxy(p, timeout), nil
	}
	d, err := xproxy.FromURL(p, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("proxy %s: %w", Redact(p), err)
	}
	c := httpclient.WithTimeout(timeout)
	t, ok := c.Transport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("proxy %s: unexpected transport %T", Redact(p), c.Transport)
	}
	t.Proxy = nil
	if cd, ok := d.(xproxy.ContextDialer); ok {
		t.DialContext = cd.DialContext
	} else {
		t.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return d.Dial(network, addr)
		}
	}
	return c, nil
}

// Redact hides credentials for logs.
func Redact(p *url.URL) string {
	if p == nil {
		return ""
	}
	if p.User == nil {
		return p.String()
	}
	c := *p
	c.User = url.User("xxx")
	return c.String()
}
