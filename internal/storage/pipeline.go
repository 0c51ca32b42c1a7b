package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"recipe-share-backend/internal/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Namespaces for uploaded images
const (
	NamespaceRecipeImages   = "recipe_images"
	NamespaceProfileImages  = "profile_images"
	NamespaceCategoryImages = "category_images"
)

// DefaultMaxImageBytes bounds the in-memory payload of one upload
const DefaultMaxImageBytes = 10 << 20

// BlobStore is a path-addressed binary object store
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL returns the durable fetch URL of key.
	URL(key string) string
	// Key maps a URL produced by URL back to its key.
	Key(url string) (string, bool)
}

// Pipeline reads local images into memory and stores them under namespaced paths
type Pipeline struct {
	store        BlobStore
	maxBytes     int64
	randomSuffix bool
	now          func() time.Time
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithMaxBytes overrides DefaultMaxImageBytes
func WithMaxBytes(n int64) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// WithRandomSuffix appends a short random suffix after the timestamp
func WithRandomSuffix(enabled bool) PipelineOption {
	return func(p *Pipeline) { p.randomSuffix = enabled }
}

// WithClock replaces the clock used for path timestamps
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a new upload pipeline
func NewPipeline(store BlobStore, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:    store,
		maxBytes: DefaultMaxImageBytes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// UploadBlob stores the image at namespace/ownerScopedPath/<unix millis> and returns its URL.
// There is no retry: callers re-invoke on failure.
func (p *Pipeline) UploadBlob(ctx context.Context, namespace, ownerScopedPath string, image ImageRef) (string, error) {
	if image == nil {
		return "", apperror.Validation("image", "image is required")
	}
	namespace = strings.Trim(namespace, "/")
	ownerScopedPath = strings.Trim(ownerScopedPath, "/")
	if namespace == "" || ownerScopedPath == "" {
		return "", apperror.Validation("path", "namespace and owner path are required")
	}

	data, contentType, err := p.read(ctx, image)
	if err != nil {
		return "", err
	}

	key := p.Path(namespace, ownerScopedPath)
	if err := p.store.Put(ctx, key, data, contentType); err != nil {
		return "", apperror.Upload("failed to upload image", err)
	}

	url := p.store.URL(key)
	log.Debug().
		Str("key", key).
		Str("source", image.Name()).
		Int("bytes", len(data)).
		Msg("Blob uploaded")
	return url, nil
}

// DeleteBlob removes the blob behind url. It never touches documents that reference it.
func (p *Pipeline) DeleteBlob(ctx context.Context, url string) error {
	key, ok := p.store.Key(url)
	if !ok {
		return apperror.Upload("failed to delete image", fmt.Errorf("url %q is not managed by this store", url))
	}
	if err := p.store.Delete(ctx, key); err != nil {
		return apperror.Upload("failed to delete image", err)
	}
	log.Debug().Str("key", key).Msg("Blob deleted")
	return nil
}

// Path composes the storage key for a new upload
func (p *Pipeline) Path(namespace, ownerScopedPath string) string {
	key := fmt.Sprintf("%s/%s/%d", namespace, ownerScopedPath, p.now().UnixMilli())
	if p.randomSuffix {
		key += "-" + uuid.New().String()[:8]
	}
	return key
}

func (p *Pipeline) read(ctx context.Context, image ImageRef) ([]byte, string, error) {
	rc, contentType, err := image.Open(ctx)
	if err != nil {
		return nil, "", apperror.Upload("failed to read image", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, p.maxBytes+1))
	if err != nil {
		return nil, "", apperror.Upload("failed to read image", err)
	}
	if len(data) == 0 {
		return nil, "", apperror.Validation("image", "image is empty")
	}
	if int64(len(data)) > p.maxBytes {
		return nil, "", apperror.Validation("image", fmt.Sprintf("image exceeds %d bytes", p.maxBytes))
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
