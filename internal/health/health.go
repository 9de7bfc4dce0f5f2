// Package health checks that the configured feeds and a running server answer.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/snapetech/epgmerge/internal/feed"
	"github.com/snapetech/epgmerge/internal/httpclient"
)

// Endpoints are the paths a healthy server answers with 200.
var Endpoints = []string{"/healthz", "/guide.xml", "/report.json"}

// CheckSource checks a feed location: GET for http(s) URLs, stat for paths.
// Returns nil if OK, error with message if not.
func CheckSource(ctx context.Context, client *http.Client, loc string) error {
	if strings.TrimSpace(loc) == "" {
		return fmt.Errorf("no source configured")
	}
	if !feed.IsRemote(loc) {
		fi, err := os.Stat(loc)
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return fmt.Errorf("%s is a directory", loc)
		}
		return nil
	}
	if client == nil {
		client = httpclient.WithTimeout(15 * time.Second)
	}
	// Some guide hosts reject HEAD; use GET and close body immediately.
	req, err := httpclient.NewRequest(ctx, loc)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("source unreachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("source returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// CheckEndpoints hits Endpoints at baseURL and returns the first error or nil.
func CheckEndpoints(ctx context.Context, baseURL string) error {
	client := httpclient.WithTimeout(5 * time.Second)
	base := strings.TrimSuffix(baseURL, "/")
	for _, path := range Endpoints {
		req, err := httpclient.NewRequest(ctx, base+path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
		}
	}
	return nil
}
