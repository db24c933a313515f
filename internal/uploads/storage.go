package uploads

import (
	"context"
	"io"
	"time"
)

// StorageDriver defines how we interact with the binary storage
type StorageDriver interface {
	// Save writes the content under key
	Save(ctx context.Context, key string, body io.Reader, contentType string) error

	// Get returns a ReadCloser to stream the file back and its content type.
	// A missing key yields drivers.ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)

	// Delete removes the file. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// GenerateURL returns a URL the portal front end can load the file from
	GenerateURL(ctx context.Context, key string, expires time.Duration) (string, error)
}
