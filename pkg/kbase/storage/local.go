package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultLocalBase is the route local files are served from.
const DefaultLocalBase = "/files"

// LocalBucket keeps objects on disk under Dir.
type LocalBucket struct {
	Dir        string
	PublicBase string
}

// NewLocalBucket creates dir if needed.
func NewLocalBucket(dir, publicBase string) (*LocalBucket, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	base := trimPublicBase(publicBase)
	if base == "" {
		base = DefaultLocalBase
	}
	return &LocalBucket{Dir: dir, PublicBase: base}, nil
}

func (b *LocalBucket) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(b.Dir, filepath.FromSlash(clean)), nil
}

func (b *LocalBucket) Put(ctx context.Context, key string, r io.Reader, _ string) error {
	dst, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, readerWithContext(ctx, r)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (b *LocalBucket) Delete(_ context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (b *LocalBucket) PublicURL(key string) string {
	return b.PublicBase + "/" + key
}

func (b *LocalBucket) KeyFromURL(publicURL string) (string, error) {
	prefix := b.PublicBase + "/"
	if !strings.HasPrefix(publicURL, prefix) {
		return "", ErrNotOwned
	}
	return strings.TrimPrefix(publicURL, prefix), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
