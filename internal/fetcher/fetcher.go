// Package fetcher downloads lead files named by URL so they can be
// re-enriched like local files.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/sink"
)

// Fetcher copies the resource at a URL into w.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, w io.Writer) (int64, error)
}

// Options configures the default fetchers.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Retry     resilience.RetryConfig
}

// IsRemote reports whether src is an http, https or ftp URL.
func IsRemote(src string) bool {
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return u.Host != ""
	}
	return false
}

// Localize returns a local path for src. Local paths are returned as is;
// URLs are downloaded into dir under the file name of the URL path.
func Localize(ctx context.Context, src, dir string, opts Options) (string, error) {
	if !IsRemote(src) {
		return src, nil
	}
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return "", eris.Wrap(err, "fetcher: parse url")
	}

	var f Fetcher
	switch strings.ToLower(u.Scheme) {
	case "ftp":
		f = NewFTPFetcher(FTPOptions{Timeout: opts.Timeout})
	default:
		f = NewHTTPFetcher(opts)
	}

	dest := filepath.Join(dir, LocalName(u))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create dir")
	}
	file, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create file")
	}

	n, err := f.Fetch(ctx, u.String(), file)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = eris.Wrap(cerr, "fetcher: close file")
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", err
	}

	zap.L().Info("fetcher: downloaded lead file", zap.String("url", u.Redacted()), zap.String("path", dest), zap.Int64("bytes", n))
	return dest, nil
}

// LocalName derives a safe file name from a URL path. The extension is
// kept so the reader can tell CSV from XLSX.
func LocalName(u *url.URL) string {
	base := path.Base(u.Path)
	ext := strings.ToLower(path.Ext(base))
	if ext != ".csv" && ext != ".xlsx" {
		ext = ".csv"
	}
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = u.Hostname()
	}
	return sink.SafeName(stem) + ext
}
