package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenBPLS/bpls/internal/uploads/drivers"
)

var (
	pngHeader = []byte("\x89PNG\r\n\x1a\n" + "rest of the image")
	pdfHeader = []byte("%PDF-1.7\n" + "permit document")
)

// MockDriver implements StorageDriver for testing
type MockDriver struct {
	SavedKey       string
	SavedBody      []byte
	SavedType      string
	GenerateURLErr error
	DeleteCalled   bool
	DeleteKey      string
}

func (m *MockDriver) Save(ctx context.Context, key string, body io.Reader, contentType string) error {
	m.SavedKey = key
	m.SavedType = contentType
	content, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.SavedBody = content
	return nil
}

func (m *MockDriver) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if m.SavedBody == nil {
		return nil, "", drivers.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(m.SavedBody)), "application/test", nil
}

func (m *MockDriver) Delete(ctx context.Context, key string) error {
	m.DeleteCalled = true
	m.DeleteKey = key
	return nil
}

func (m *MockDriver) GenerateURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if m.GenerateURLErr != nil {
		return "", m.GenerateURLErr
	}
	return "/test/" + key, nil
}

func TestUploadService_Upload(t *testing.T) {
	mock := &MockDriver{}
	service := NewUploadService(mock, 1<<20)

	metadata, err := service.Upload(context.Background(), KindSignature, "my signature.PNG", bytes.NewReader(pngHeader), int64(len(pngHeader)), "")
	require.NoError(t, err)

	assert.Equal(t, "my signature.PNG", metadata.Name)
	assert.Equal(t, KindSignature, metadata.Kind)
	assert.Equal(t, "image/png", metadata.MimeType)
	assert.Equal(t, "image/png", mock.SavedType)
	assert.Equal(t, pngHeader, mock.SavedBody)
	assert.Equal(t, int64(len(pngHeader)), metadata.Size)
	assert.Equal(t, metadata.ID.String()+".png", metadata.Key)
	assert.Equal(t, "/test/"+mock.SavedKey, metadata.URL)
}

func TestUploadService_RejectsByKind(t *testing.T) {
	service := NewUploadService(&MockDriver{}, 1<<20)
	ctx := context.Background()

	_, err := service.Upload(ctx, KindSignature, "permit.pdf", bytes.NewReader(pdfHeader), int64(len(pdfHeader)), "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	metadata, err := service.Upload(ctx, KindDocument, "permit.pdf", bytes.NewReader(pdfHeader), int64(len(pdfHeader)), "")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", metadata.MimeType)

	_, err = service.Upload(ctx, KindDocument, "notes.txt", bytes.NewReader([]byte("plain text")), 10, "text/plain")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = service.Upload(ctx, Kind("avatar"), "x.png", bytes.NewReader(pngHeader), 10, "")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestUploadService_SizeLimits(t *testing.T) {
	mock := &MockDriver{}
	service := NewUploadService(mock, 16)
	ctx := context.Background()

	_, err := service.Upload(ctx, KindSignature, "big.png", bytes.NewReader(pngHeader), 100, "")
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.False(t, mock.DeleteCalled)

	// declared size lies; the stream is still capped and the partial file removed
	_, err = service.Upload(ctx, KindSignature, "big.png", bytes.NewReader(pngHeader), 4, "")
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.True(t, mock.DeleteCalled)

	_, err = service.Upload(ctx, KindSignature, "empty.png", bytes.NewReader(nil), 0, "")
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestUploadService_GenerateURLFailure(t *testing.T) {
	mock := &MockDriver{GenerateURLErr: io.ErrUnexpectedEOF}
	service := NewUploadService(mock, 0)

	_, err := service.Upload(context.Background(), KindSignature, "sig.png", bytes.NewReader(pngHeader), int64(len(pngHeader)), "")
	require.Error(t, err)
	assert.True(t, mock.DeleteCalled, "orphaned file should be cleaned up")
	assert.Equal(t, mock.SavedKey, mock.DeleteKey)
}

func TestUploadService_DownloadAndRemove(t *testing.T) {
	mock := &MockDriver{SavedBody: []byte("test content")}
	service := NewUploadService(mock, 0)
	ctx := context.Background()

	reader, contentType, err := service.Download(ctx, "test-key")
	require.NoError(t, err)
	defer reader.Close()
	content, _ := io.ReadAll(reader)
	assert.Equal(t, "application/test", contentType)
	assert.Equal(t, mock.SavedBody, content)

	require.NoError(t, service.Remove(ctx, "test-key"))
	assert.Equal(t, "test-key", mock.DeleteKey)

	mock.DeleteCalled = false
	require.NoError(t, service.Remove(ctx, ""))
	assert.False(t, mock.DeleteCalled)
}

func multipartBody(t *testing.T, kind, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if kind != "" {
		require.NoError(t, writer.WriteField("kind", kind))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHTTPHandler_UploadAndDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	driver, err := drivers.NewLocalFSDriver(t.TempDir(), "/api/uploads")
	require.NoError(t, err)
	handler := NewHTTPHandler(NewUploadService(driver, 1<<20))

	r := gin.New()
	r.POST("/api/uploads", handler.Upload)
	r.GET("/api/uploads/:key", handler.Download)

	body, contentType := multipartBody(t, "signature", "sig.png", pngHeader)
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"mimeType":"image/png"`)

	var metadata FileMetadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metadata))
	// the URL returned by the local driver is the download route
	url := metadata.URL
	assert.Equal(t, "/api/uploads/"+metadata.Key, url)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngHeader, w.Body.Bytes())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/uploads/0000missing.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTPHandler_UploadErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHTTPHandler(NewUploadService(&MockDriver{}, 1<<20))
	r := gin.New()
	r.POST("/api/uploads", handler.Upload)

	cases := []struct {
		name     string
		kind     string
		filename string
		content  []byte
		want     int
	}{
		{"unknown kind", "avatar", "x.png", pngHeader, http.StatusBadRequest},
		{"missing file", "document", "", nil, http.StatusBadRequest},
		{"wrong type", "signature", "x.pdf", pdfHeader, http.StatusUnsupportedMediaType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tc.kind, tc.filename, tc.content)
			req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
