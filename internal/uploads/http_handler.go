package uploads

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
)

type HTTPHandler struct {
	Service *UploadService
}

func NewHTTPHandler(service *UploadService) *HTTPHandler {
	return &HTTPHandler{Service: service}
}

// Upload handles POST /api/uploads with a multipart "file" and a "kind" field.
func (h *HTTPHandler) Upload(c *gin.Context) {
	h.limitBody(c)
	kind, ok := ParseKind(c.DefaultPostForm("kind", string(KindDocument)))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown upload kind"})
		return
	}

	metadata, err := h.receive(c, kind)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, metadata)
}

// Receive reads the multipart "file" field of c and stores it as kind.
// Other routers use it for signatures and supporting documents.
func (h *HTTPHandler) Receive(c *gin.Context, kind Kind) (*FileMetadata, error) {
	return h.receive(c, kind)
}

// limitBody caps the request body at the file limit plus multipart overhead.
func (h *HTTPHandler) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Service.MaxBytes+1<<20)
}

func (h *HTTPHandler) receive(c *gin.Context, kind Kind) (*FileMetadata, error) {
	file, header, err := h.OpenFile(c)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return h.Service.Upload(c.Request.Context(), kind, header.Filename, file, header.Size, header.Header.Get("Content-Type"))
}

// OpenFile returns the multipart "file" field of c with the body capped at the
// upload limit. The caller closes the file.
func (h *HTTPHandler) OpenFile(c *gin.Context) (multipart.File, *multipart.FileHeader, error) {
	h.limitBody(c)
	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, ErrTooLarge
		}
		return nil, nil, errMissingFile
	}
	file, err := header.Open()
	if err != nil {
		return nil, nil, errMissingFile
	}
	return file, header, nil
}

// Download handles GET /api/uploads/:key
func (h *HTTPHandler) Download(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	reader, contentType, err := h.Service.Download(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		slog.ErrorContext(c.Request.Context(), "download failed", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "download failed"})
		return
	}
	defer reader.Close()

	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		slog.WarnContext(c.Request.Context(), "download interrupted", "key", key, "error", err)
	}
}

var errMissingFile = errors.New("file is required")

// WriteError maps upload errors to HTTP responses.
func WriteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errMissingFile), errors.Is(err, ErrEmptyFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, ErrUnsupportedType):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	default:
		slog.ErrorContext(c.Request.Context(), "upload failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
	}
}
