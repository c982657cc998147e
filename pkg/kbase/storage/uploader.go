package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mikepea/kbase/pkg/kbase/catalog"
)

// Uploader writes files to a bucket under generated keys.
type Uploader struct {
	bucket   Bucket
	maxBytes int64
	newID    func() string
}

// NewUploader limits uploads to maxBytes; zero or less means no limit.
func NewUploader(bucket Bucket, maxBytes int64) *Uploader {
	return &Uploader{
		bucket:   bucket,
		maxBytes: maxBytes,
		newID:    func() string { return uuid.NewString() },
	}
}

// Bucket returns the underlying bucket.
func (u *Uploader) Bucket() Bucket {
	return u.bucket
}

// Upload stores r under uploads/<uuid>_<name> and returns its public URL.
// An empty contentType is detected from the extension and the first bytes.
func (u *Uploader) Upload(ctx context.Context, name, contentType string, r io.Reader) (catalog.Upload, error) {
	if u.maxBytes > 0 {
		r = &limitReader{r: r, remaining: u.maxBytes}
	}
	ct, body, err := detectContentType(r, name, contentType)
	if err != nil {
		return catalog.Upload{}, err
	}

	key := ObjectKey(u.newID(), name)
	if err := u.bucket.Put(ctx, key, body, ct); err != nil {
		return catalog.Upload{}, fmt.Errorf("put %s: %w", key, err)
	}
	return catalog.Upload{
		URL:              u.bucket.PublicURL(key),
		Key:              key,
		OriginalFilename: name,
	}, nil
}

// Remove deletes the object behind publicURL. URLs the bucket did not
// produce are ignored.
func (u *Uploader) Remove(ctx context.Context, publicURL string) error {
	key, err := u.bucket.KeyFromURL(publicURL)
	if err != nil || !strings.HasPrefix(key, KeyPrefix) {
		return nil
	}
	return u.bucket.Delete(ctx, key)
}

func detectContentType(r io.Reader, filename, given string) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nil, err
	}
	if n == 0 {
		return "", nil, ErrEmptyFile
	}
	head = head[:n]
	body := io.MultiReader(bytes.NewReader(head), r)

	if ct := strings.TrimSpace(given); ct != "" && ct != "application/octet-stream" {
		return ct, body, nil
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct, body, nil
	}
	return http.DetectContentType(head), body, nil
}

type limitReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
