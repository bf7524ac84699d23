// Package storage provides the object storage gateway for posture images.
// It issues time-limited signed URLs for stored objects, derives public URLs
// as a fallback when signing fails, and performs physical deletes.
//
// The concrete implementation targets any S3-compatible endpoint (MinIO in
// development, S3 in production). All other packages depend only on the
// ObjectStorage interface.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNoPublicURL is returned by PublicURL when no public base URL is
// configured, i.e. the bucket is fully private and signing is the only way in.
var ErrNoPublicURL = errors.New("storage: no public base URL configured")

// ObjectStorage is the gateway contract for the posture image object store.
type ObjectStorage interface {
	// Put writes an object under the given key.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

	// SignedURL returns a time-limited credential-bearing URL granting read
	// access to the object. Calling it twice for the same key may return
	// different URLs; callers must treat the result as opaque.
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	// PublicURL derives the unsigned public URL for the key. Returns
	// ErrNoPublicURL when the deployment has no public bucket access.
	PublicURL(key string) (string, error)

	// Remove deletes the given objects. Missing keys are not an error.
	Remove(ctx context.Context, keys ...string) error
}
