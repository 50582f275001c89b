// Package storage keeps generated documents in durable blob storage.
package storage

import (
	"context"
	"errors"
	"strings"
)

var ErrBlobNotFound = errors.New("blob not found")

// BlobStorage is the durable store for generated documents. Keys are slash-separated
// relative paths such as "statement-of-account/Harbour_View/12A/statement-of-account-12A.pdf".
type BlobStorage interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("storage key is required")
	}
	if strings.HasPrefix(key, "/") {
		return errors.New("storage key must be relative")
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return errors.New("storage key must not traverse parent directories")
		}
	}
	return nil
}
