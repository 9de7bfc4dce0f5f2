package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/snapetech/epgmerge/internal/guide"
	"github.com/snapetech/epgmerge/internal/httpclient"
	"github.com/snapetech/epgmerge/internal/xmltv"
)

// XMLTVSource reads an XMLTV document from an http(s) URL or a local path.
// Gzip and brotli bodies are decoded transparently.
type XMLTVSource struct {
	// Label names the feed in reports; defaults to Location.
	Label    string
	Location string
	// Zone reads timestamps that carry no offset. UTC when nil.
	Zone   *time.Location
	Client *http.Client
	Retry  httpclient.RetryPolicy
}

func (s *XMLTVSource) Fetch(ctx context.Context) (guide.Feed, error) {
	label := s.Label
	if label == "" {
		label = s.Location
	}
	rc, err := s.open(ctx)
	if err != nil {
		return guide.Feed{Source: label}, fmt.Errorf("xmltv feed %s: %w", label, err)
	}
	defer rc.Close()
	return xmltv.Decode(rc, label, s.Zone)
}

func (s *XMLTVSource) open(ctx context.Context) (io.ReadCloser, error) {
	if s.Location == "" {
		return nil, fmt.Errorf("no location configured")
	}
	if IsRemote(s.Location) {
		return httpclient.Get(ctx, s.Client, s.Location, s.Retry)
	}
	f, err := os.Open(s.Location)
	if err != nil {
		return nil, err
	}
	rc, err := httpclient.Decode(f, "")
	if err != nil {
		f.Close()
		return nil, err
	}
	return rc, nil
}
