// Package storage keeps receipt images in object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/blnkfinance/payrec/config"
)

// ErrDisabled is returned by the no-op uploader.
var ErrDisabled = errors.New("object storage is not configured")

// Uploader stores bytes under path and returns a URL for them.
type Uploader interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// New picks the backend named by cfg.Provider.
func New(ctx context.Context, cfg config.StorageConfig) (Uploader, error) {
	switch cfg.Provider {
	case "s3":
		return NewS3Uploader(S3Config{
			Bucket:          cfg.Bucket,
			Prefix:          cfg.Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AwsAccessKeyId,
			SecretAccessKey: cfg.AwsSecretAccessKey,
		})
	case "gcs":
		return NewGCSUploader(ctx, cfg.Bucket, cfg.Prefix, cfg.GCSCredentialsJSON)
	case "":
		return NoopUploader{}, nil
	}
	return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
}

// ReceiptPath is the object key used for a receipt image.
func ReceiptPath(orderNumber, receiptID, fileName string, at time.Time) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		ext = ".jpg"
	}
	return path.Join("receipts", at.UTC().Format("2006/01"), orderNumber, receiptID+ext)
}

func objectKey(prefix, p string) string {
	if prefix == "" {
		return p
	}
	return path.Join(prefix, p)
}

type NoopUploader struct{}

func (NoopUploader) Upload(context.Context, string, []byte, string) (string, error) {
	return "", ErrDisabled
}
