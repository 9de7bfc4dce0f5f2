// Package playlist rewrites the stream URLs of an M3U playlist onto another
// base URL, keeping every other line as it was.
package playlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Options controls Rewrite.
type Options struct {
	// BaseURL replaces everything before the stream file name.
	BaseURL string
	// GuideURL, when set, is added as url-tvg on an #EXTM3U header that has none.
	GuideURL string
}

// Stats counts what Rewrite did.
type Stats struct {
	Lines     int `json:"lines"`
	Rewritten int `json:"rewritten"`
}

// StreamName is the last path segment of a stream URL without its query.
func StreamName(line string) string {
	s := strings.TrimSpace(line)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// Rewrite copies src to dst, replacing each line that starts with "http" by
// BaseURL + StreamName(line). Line endings are preserved. A URL with no file
// name (trailing slash) is left untouched.
func Rewrite(dst io.Writer, src io.Reader, opts Options) (Stats, error) {
	var st Stats
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		return st, errors.New("playlist: base URL is required")
	}
	if u, err := url.Parse(base); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return st, fmt.Errorf("playlist: base URL %q is not http(s)", base)
	}
	base = strings.TrimSuffix(base, "/") + "/"

	r := bufio.NewReader(src)
	w := bufio.NewWriter(dst)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			st.Lines++
			out := line
			trimmed := strings.TrimSpace(line)
			eol := line[len(strings.TrimRight(line, "\r\n")):]
			switch {
			case strings.HasPrefix(trimmed, "http"):
				if name := StreamName(trimmed); name != "" {
					out = base + name + eol
					st.Rewritten++
				}
			case st.Lines == 1 && opts.GuideURL != "" && strings.HasPrefix(trimmed, "#EXTM3U") && !strings.Contains(trimmed, "url-tvg="):
				out = trimmed + ` url-tvg="` + opts.GuideURL + `"` + eol
			}
			if _, werr := w.WriteString(out); werr != nil {
				return st, werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return st, err
		}
	}
	return st, w.Flush()
}
