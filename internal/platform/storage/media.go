package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/memorial-heritage/api/internal/platform/config"
)

const (
	defaultPublicHost = "https://storage.googleapis.com"
	maxSignedURLTTL   = 7 * 24 * time.Hour
)

var errNoSigner = errors.New("storage: signed urls require a signer")

// MediaResolver turns media references from archive documents (absolute URLs, gs:// URIs or
// object paths in the media bucket) into URLs a browser can load.
type MediaResolver struct {
	bucket     string
	publicBase string
	signed     bool
	ttl        time.Duration
	signer     Signer
	now        func() time.Time

	mu    sync.Mutex
	cache map[Object]signedEntry
}

type signedEntry struct {
	url       string
	expiresAt time.Time
}

// MediaOption customises a MediaResolver.
type MediaOption func(*MediaResolver)

// WithSigner enables V4 signed URLs produced by signer.
func WithSigner(signer Signer) MediaOption {
	return func(r *MediaResolver) {
		r.signer = signer
	}
}

// WithClock injects the time source used for expiry.
func WithClock(now func() time.Time) MediaOption {
	return func(r *MediaResolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewMediaResolver builds a resolver from the storage configuration. Signed mode requires a signer.
func NewMediaResolver(cfg config.StorageConfig, opts ...MediaOption) (*MediaResolver, error) {
	r := &MediaResolver{
		bucket:     strings.TrimSpace(cfg.MediaBucket),
		publicBase: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		signed:     cfg.SignedURLs,
		ttl:        cfg.SignedURLTTL,
		now:        time.Now,
		cache:      make(map[Object]signedEntry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.signed {
		if r.signer == nil || strings.TrimSpace(r.signer.Email()) == "" {
			return nil, errNoSigner
		}
		if r.ttl <= 0 || r.ttl > maxSignedURLTTL {
			return nil, fmt.Errorf("storage: signed url ttl must be within (0, %s]", maxSignedURLTTL)
		}
	}
	return r, nil
}

// ResolveURL returns a loadable URL for ref. Empty references resolve to "" and absolute http(s)
// URLs are returned unchanged.
func (r *MediaResolver) ResolveURL(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	if isHTTPURL(ref) {
		return ref, nil
	}
	obj, err := ParseObjectRef(ref, r.bucket)
	if err != nil {
		return "", err
	}
	if !r.signed {
		return r.publicURL(obj), nil
	}
	return r.signedURL(ctx, obj)
}

func (r *MediaResolver) publicURL(obj Object) string {
	base := r.publicBase
	if base == "" || obj.Bucket != r.bucket {
		base = defaultPublicHost + "/" + obj.Bucket
	}
	return base + "/" + escapeObjectName(obj.Name)
}

// signedURL reuses a cached URL while more than half of its lifetime remains.
func (r *MediaResolver) signedURL(ctx context.Context, obj Object) (string, error) {
	now := r.now()

	r.mu.Lock()
	entry, ok := r.cache[obj]
	r.mu.Unlock()
	if ok && entry.expiresAt.Sub(now) > r.ttl/2 {
		return entry.url, nil
	}

	expires := now.Add(r.ttl)
	signed, err := gcs.SignedURL(obj.Bucket, obj.Name, getURLOptions(ctx, r.signer, expires))
	if err != nil {
		return "", fmt.Errorf("storage: sign media url: %w", err)
	}

	r.mu.Lock()
	r.cache[obj] = signedEntry{url: signed, expiresAt: expires}
	r.mu.Unlock()
	return signed, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func escapeObjectName(name string) string {
	segments := strings.Split(name, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
