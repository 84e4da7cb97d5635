// Package source opens dataset locations for the loader. A location is a
// local path, a file:// URL, or an s3://bucket/key URL.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
)

// Opener dispatches on the location scheme. The S3 client is built on first
// use so that deployments reading local files never touch AWS config.
type Opener struct {
	s3cfg  S3Config
	logger *slog.Logger

	once  sync.Once
	s3    ObjectGetter
	s3err error
}

func New(cfg S3Config, logger *slog.Logger) *Opener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Opener{s3cfg: cfg, logger: logger.With(slog.String("component", "source"))}
}

// WithObjectGetter returns an Opener that serves s3:// locations from g.
func WithObjectGetter(g ObjectGetter, logger *slog.Logger) *Opener {
	o := New(S3Config{}, logger)
	o.once.Do(func() { o.s3 = g })
	return o
}

func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	scheme, rest := splitScheme(location)
	switch scheme {
	case "":
		return os.Open(location)
	case "file":
		u, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("parse location: %w", err)
		}
		return os.Open(u.Path)
	case "s3":
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("s3 location %q must be s3://bucket/key", location)
		}
		o.once.Do(func() { o.s3, o.s3err = newS3Getter(ctx, o.s3cfg) })
		if o.s3err != nil {
			return nil, fmt.Errorf("s3 client: %w", o.s3err)
		}
		o.logger.Debug("fetching object", slog.String("bucket", bucket), slog.String("key", key))
		return getObject(ctx, o.s3, bucket, key)
	default:
		return nil, fmt.Errorf("unsupported location scheme %q", scheme)
	}
}

func splitScheme(location string) (scheme, rest string) {
	i := strings.Index(location, "://")
	if i <= 0 {
		return "", location
	}
	return strings.ToLower(location[:i]), location[i+3:]
}
