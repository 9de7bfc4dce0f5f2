// Package feed fetches guide feeds: XMLTV documents over HTTP or from disk,
// and day-paged HTML guides scraped into the same shape.
package feed

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/snapetech/epgmerge/internal/guide"
)

// Source produces one feed per call.
type Source interface {
	Fetch(ctx context.Context) (guide.Feed, error)
}

// FetchOrEmpty fetches src and turns any failure into an empty feed labelled
// name. Used for the secondary feed, which is optional.
func FetchOrEmpty(ctx context.Context, src Source, name string, log zerolog.Logger) guide.Feed {
	f, err := src.Fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Str("source", name).Msg("feed: fetch failed; continuing with an empty feed")
		return guide.Feed{Source: name}
	}
	if len(f.Rejected) > 0 {
		log.Info().Str("source", name).Int("rejected", len(f.Rejected)).Msg("feed: malformed entries skipped")
	}
	return f
}

// IsRemote reports whether loc is an http(s) URL rather than a file path.
func IsRemote(loc string) bool {
	l := strings.ToLower(strings.TrimSpace(loc))
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
