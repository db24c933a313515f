package drivers

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFSDriver_DirectoryHashing(t *testing.T) {
	tempDir := t.TempDir()
	driver, err := NewLocalFSDriver(tempDir, "/api/uploads")
	require.NoError(t, err)

	ctx := context.Background()
	key := "abcdef123456.pdf"
	content := []byte("%PDF-1.4 permit")

	require.NoError(t, driver.Save(ctx, key, bytes.NewReader(content), "application/pdf"))

	// key "abcdef123456.pdf" lives at ab/cd/abcdef123456.pdf
	fullPath := filepath.Join(tempDir, "ab", "cd", key)
	_, err = os.Stat(fullPath)
	require.NoError(t, err)

	reader, contentType, err := driver.Get(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, content, got)
	assert.Equal(t, "application/pdf", contentType)

	url, err := driver.GenerateURL(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, "/api/uploads/"+key, url)

	require.NoError(t, driver.Delete(ctx, key))
	_, err = os.Stat(fullPath)
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, driver.Delete(ctx, key))
}

func TestLocalFSDriver_MissingFile(t *testing.T) {
	driver, err := NewLocalFSDriver(t.TempDir(), "")
	require.NoError(t, err)

	_, _, err = driver.Get(context.Background(), "0000missing.png")
	assert.ErrorIs(t, err, ErrNotFound)

	url, err := driver.GenerateURL(context.Background(), "0000missing.png", 0)
	require.NoError(t, err)
	assert.Equal(t, "0000missing.png", url)
}

func TestLocalFSDriver_RejectsEscapingKeys(t *testing.T) {
	driver, err := NewLocalFSDriver(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"../etc/passwd", "a/b.png", `a\b.png`, ""} {
		err := driver.Save(ctx, key, bytes.NewReader([]byte("x")), "image/png")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
		_, _, err = driver.Get(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}
