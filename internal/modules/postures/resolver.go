package postures

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/formtrack/formtrack/internal/storage"
)

// URLResolver turns storage keys into time-bounded access URLs. Presigning
// is the happy path; a public URL is the degraded fallback; an image whose
// key can be resolved by neither is omitted rather than rendered broken.
//
// Resolved URLs are opaque and unstable: resolving the same key twice may
// return different signatures. Callers re-resolve after expiry instead of
// retrying a stale URL.
type URLResolver struct {
	storage       storage.ObjectStorage
	defaultExpiry time.Duration
	maxExpiry     time.Duration
}

// NewURLResolver creates a resolver with the given expiry bounds.
func NewURLResolver(st storage.ObjectStorage, defaultExpiry, maxExpiry time.Duration) *URLResolver {
	return &URLResolver{storage: st, defaultExpiry: defaultExpiry, maxExpiry: maxExpiry}
}

// ClampExpiry normalizes a caller-supplied expiry: zero or negative becomes
// the default, anything above the cap is clamped down. Expiry is always the
// caller's choice within these bounds -- transient previews ask for an hour,
// gallery views for days.
func (r *URLResolver) ClampExpiry(expiry time.Duration) time.Duration {
	if expiry <= 0 {
		return r.defaultExpiry
	}
	if expiry > r.maxExpiry {
		return r.maxExpiry
	}
	return expiry
}

// ResolveOne resolves a single storage key, preferring a signed URL and
// falling back to the public URL. Returns ok=false when neither works or
// the key is empty; the caller excludes such images from its result set.
func (r *URLResolver) ResolveOne(ctx context.Context, key string, expiry time.Duration) (string, bool) {
	if key == "" {
		return "", false
	}
	expiry = r.ClampExpiry(expiry)

	url, err := r.storage.SignedURL(ctx, key, expiry)
	if err == nil {
		return url, true
	}
	slog.Warn("presigning failed, falling back to public URL",
		slog.String("storage_key", key),
		slog.Any("error", err),
	)

	url, pubErr := r.storage.PublicURL(key)
	if pubErr != nil {
		if !errors.Is(pubErr, storage.ErrNoPublicURL) {
			slog.Warn("public URL fallback failed",
				slog.String("storage_key", key),
				slog.Any("error", pubErr),
			)
		}
		return "", false
	}
	return url, true
}

// ResolveBatch resolves URLs for a list of images in one pass, returning a
// map from image id to URL. Images that cannot be resolved are absent from
// the map -- never present with an empty URL -- so one bad key degrades to
// a single placeholder instead of failing the whole view.
func (r *URLResolver) ResolveBatch(ctx context.Context, images []PostureImage, expiry time.Duration) map[string]string {
	expiry = r.ClampExpiry(expiry)

	urls := make(map[string]string, len(images))
	for _, img := range images {
		if url, ok := r.ResolveOne(ctx, img.StorageKey, expiry); ok {
			urls[img.ID] = url
		}
	}
	return urls
}
