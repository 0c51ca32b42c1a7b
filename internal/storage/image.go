package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// ImageRef points at an image that has not been uploaded yet
type ImageRef interface {
	// Open returns the image bytes and, when known, their content type.
	Open(ctx context.Context) (io.ReadCloser, string, error)
	// Name describes the reference in logs.
	Name() string
}

// FileImage is an image on the local filesystem
type FileImage struct {
	Path string
}

func (f FileImage) Open(_ context.Context) (io.ReadCloser, string, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image file: %w", err)
	}
	return file, mime.TypeByExtension(filepath.Ext(f.Path)), nil
}

func (f FileImage) Name() string { return f.Path }

// BytesImage is an image already held in memory, e.g. a multipart upload
type BytesImage struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (b BytesImage) Open(_ context.Context) (io.ReadCloser, string, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), b.ContentType, nil
}

func (b BytesImage) Name() string { return b.Filename }

// RemoteImage is fetched over HTTP before upload
type RemoteImage struct {
	URL    string
	Client *http.Client
}

func (r RemoteImage) Open(ctx context.Context) (io.ReadCloser, string, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, "", fmt.Errorf("failed to download image, status: %d", resp.StatusCode)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (r RemoteImage) Name() string { return r.URL }
