package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// AcceptEncoding is the Accept-Encoding value matching what Body can decode.
const AcceptEncoding = "br, gzip, deflate"

// Body returns resp.Body decoded per Content-Encoding. Closing the result
// closes resp.Body.
func Body(resp *http.Response) (io.ReadCloser, error) {
	return Decode(resp.Body, resp.Header.Get("Content-Encoding"))
}

// Decode wraps rc in a decoder for the given content encoding. With no
// encoding a gzip payload (common for .xml.gz feeds and files) is detected by
// its magic bytes.
func Decode(rc io.ReadCloser, encoding string) (io.ReadCloser, error) {
	enc := strings.ToLower(strings.TrimSpace(encoding))
	switch enc {
	case "", "identity":
		return sniffGzip(rc)
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return readCloser{zr, rc}, nil
	case "br":
		return readCloser{brotli.NewReader(rc), rc}, nil
	case "deflate":
		return readCloser{flate.NewReader(rc), rc}, nil
	}
	return nil, fmt.Errorf("unsupported content encoding %q", enc)
}

// sniffGzip wraps rc in a gzip reader when it starts with the gzip magic.
func sniffGzip(rc io.ReadCloser) (io.ReadCloser, error) {
	var magic [2]byte
	n, err := io.ReadFull(rc, magic[:])
	head := io.MultiReader(strings.NewReader(string(magic[:n])), rc)
	if err != nil {
		// Shorter than the magic: hand back whatever there was.
		return readCloser{head, rc}, nil
	}
	if magic[0] != 0x1f || magic[1] != 0x8b {
		return readCloser{head, rc}, nil
	}
	zr, err := gzip.NewReader(head)
	if err != nil {
		return nil, fmt.Errorf("gzip body: %w", err)
	}
	return readCloser{zr, rc}, nil
}

type readCloser struct {
	io.Reader
	c io.Closer
}

func (r readCloser) Close() error { return r.c.Close() }
