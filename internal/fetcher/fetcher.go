// Package fetcher opens CSV inputs from local paths or http(s) URLs.
package fetcher

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher downloads remote input files.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// IsRemote reports whether src names an http(s) URL rather than a path.
func IsRemote(src string) bool {
	s := strings.ToLower(strings.TrimSpace(src))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Open returns a reader for src. URLs go through f; anything else is
// opened as a local file. The caller closes the reader.
func Open(ctx context.Context, f Fetcher, src string) (io.ReadCloser, error) {
	if IsRemote(src) {
		if f == nil {
			return nil, eris.Errorf("fetcher: no downloader for %s", src)
		}
		return f.Download(ctx, strings.TrimSpace(src))
	}
	file, err := os.Open(src)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", src)
	}
	return file, nil
}
