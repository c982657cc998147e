package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/mikepea/kbase/pkg/kbase/config"
)

// OSSBucket stores objects in an Aliyun OSS bucket.
type OSSBucket struct {
	bucket     *oss.Bucket
	endpoint   string
	name       string
	publicBase string
}

// NewOSSBucket connects to the configured bucket.
func NewOSSBucket(cfg config.OSSConfig, publicBase string) (*OSSBucket, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}
	bkt, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("client.Bucket: %w", err)
	}
	return &OSSBucket{
		bucket:     bkt,
		endpoint:   cfg.Endpoint,
		name:       cfg.Bucket,
		publicBase: trimPublicBase(publicBase),
	}, nil
}

func (b *OSSBucket) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
		oss.CacheControl("public, max-age=31536000, immutable"),
	}
	return b.bucket.PutObject(key, r, opts...)
}

func (b *OSSBucket) Delete(ctx context.Context, key string) error {
	return b.bucket.DeleteObject(key, oss.WithContext(ctx))
}

func (b *OSSBucket) PublicURL(key string) string {
	return ossPublicURL(b.publicBase, b.name, b.endpoint, key)
}

func (b *OSSBucket) KeyFromURL(publicURL string) (string, error) {
	return ossKeyFromURL(b.publicBase, b.name, b.endpoint, publicURL)
}

func ossHost(bucket, endpoint string) string {
	end := strings.TrimPrefix(endpoint, "https://")
	end = strings.TrimPrefix(end, "http://")
	return bucket + "." + strings.TrimRight(end, "/")
}

func ossPublicURL(publicBase, bucket, endpoint, key string) string {
	if key == "" {
		return ""
	}
	if publicBase != "" {
		return publicBase + "/" + key
	}
	return "https://" + ossHost(bucket, endpoint) + "/" + key
}

func ossKeyFromURL(publicBase, bucket, endpoint, publicURL string) (string, error) {
	if publicBase != "" && strings.HasPrefix(publicURL, publicBase+"/") {
		return strings.TrimPrefix(publicURL, publicBase+"/"), nil
	}
	prefix := "https://" + ossHost(bucket, endpoint) + "/"
	if strings.HasPrefix(publicURL, prefix) {
		return strings.TrimPrefix(publicURL, prefix), nil
	}
	return "", ErrNotOwned
}
