package uploads

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/OpenBPLS/bpls/internal/uploads/drivers"
)

var (
	ErrTooLarge         = errors.New("file is too large")
	ErrUnsupportedType  = errors.New("file type is not accepted")
	ErrEmptyFile        = errors.New("file is empty")
	ErrFileNotFound     = drivers.ErrNotFound
	defaultMaxFileBytes = int64(10 << 20)
)

// UploadService validates incoming files, stores them through the driver and
// returns their metadata.
type UploadService struct {
	Driver   StorageDriver
	MaxBytes int64
}

func NewUploadService(driver StorageDriver, maxBytes int64) *UploadService {
	if maxBytes <= 0 {
		maxBytes = defaultMaxFileBytes
	}
	return &UploadService{Driver: driver, MaxBytes: maxBytes}
}

// Upload sniffs the content type, checks it against kind, saves the file and
// returns its metadata. The declared mime is only used when sniffing is inconclusive.
func (s *UploadService) Upload(ctx context.Context, kind Kind, filename string, reader io.Reader, size int64, declared string) (*FileMetadata, error) {
	accepted, ok := allowedTypes[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown upload kind %q", ErrUnsupportedType, kind)
	}
	if size > s.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, size, s.MaxBytes)
	}

	buffered := bufio.NewReaderSize(reader, 512)
	head, err := buffered.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmptyFile
	}

	contentType := detectContentType(head, declared)
	if !accepted[contentType] {
		return nil, fmt.Errorf("%w: %s for %s", ErrUnsupportedType, contentType, kind)
	}

	id := uuid.New()
	key := id.String() + extensionFor(filename, contentType)

	limited := &countingReader{r: io.LimitReader(buffered, s.MaxBytes+1)}
	if err := s.Driver.Save(ctx, key, limited, contentType); err != nil {
		return nil, fmt.Errorf("storage driver failed: %w", err)
	}
	if limited.n > s.MaxBytes {
		s.cleanup(ctx, key)
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, s.MaxBytes)
	}

	url, err := s.Driver.GenerateURL(ctx, key, 0)
	if err != nil {
		s.cleanup(ctx, key)
		return nil, fmt.Errorf("failed to generate URL: %w", err)
	}

	metadata := &FileMetadata{
		ID:       id,
		Kind:     kind,
		Name:     filepath.Base(filename),
		Key:      key,
		URL:      url,
		Size:     limited.n,
		MimeType: contentType,
	}

	slog.InfoContext(ctx, "file uploaded", "id", id, "key", key, "kind", kind, "size", limited.n)
	return metadata, nil
}

// Download retrieves the file content and its MIME type
func (s *UploadService) Download(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return s.Driver.Get(ctx, key)
}

// Remove deletes a stored file.
func (s *UploadService) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.Driver.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *UploadService) cleanup(ctx context.Context, key string) {
	if err := s.Driver.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "failed to cleanup orphaned file", "key", key, "error", err)
	}
}

func detectContentType(head []byte, declared string) string {
	sniffed := http.DetectContentType(head)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	if sniffed == "application/octet-stream" && declared != "" {
		if parsed, _, err := mime.ParseMediaType(declared); err == nil {
			return parsed
		}
	}
	return sniffed
}

func extensionFor(filename, contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "application/pdf":
		return ".pdf"
	}
	return strings.ToLower(filepath.Ext(filename))
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
