// Package storage puts uploaded files into a bucket and hands back the public
// URL that becomes a resource's url.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mikepea/kbase/pkg/kbase/config"
)

// KeyPrefix is the folder every upload lands in.
const KeyPrefix = "uploads/"

var (
	ErrTooLarge  = errors.New("file exceeds the upload limit")
	ErrEmptyFile = errors.New("file is empty")
	ErrNotOwned  = errors.New("url does not belong to this bucket")
)

// Bucket stores objects by key.
type Bucket interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	// PublicURL returns the URL clients fetch key from.
	PublicURL(key string) string
	// KeyFromURL reverses PublicURL for URLs this bucket produced.
	KeyFromURL(publicURL string) (string, error)
}

// Open builds the bucket selected by cfg.Driver.
func Open(cfg config.StorageConfig) (Bucket, error) {
	switch cfg.Driver {
	case "local":
		return NewLocalBucket(cfg.LocalDir, cfg.PublicBase)
	case "oss":
		return NewOSSBucket(cfg.OSS, cfg.PublicBase)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// SanitizeFilename drops every character outside [A-Za-z0-9_.-].
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '.', r == '-':
			return r
		}
		return -1
	}, name)
}

// ObjectKey builds uploads/<id>_<sanitized-filename>.
func ObjectKey(id, filename string) string {
	return KeyPrefix + id + "_" + SanitizeFilename(filename)
}

func trimPublicBase(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}
