package storage

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalHost_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "media")

	host, err := NewLocalHost(dir, "http://localhost:5000/media/")
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, dir, host.Dir())
	assert.Equal(t, "local", host.Name())
	assert.NoError(t, host.Ping(context.Background()))
}

func TestLocalHost_Upload(t *testing.T) {
	dir := t.TempDir()
	host, err := NewLocalHost(dir, "http://localhost:5000/media/")
	require.NoError(t, err)

	url, err := host.Upload(context.Background(), "job-ads/2025/03/a.png", "image/png", bytes.NewReader([]byte("png-bytes")))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000/media/job-ads/2025/03/a.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "job-ads", "2025", "03", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "job-ads", "2025", "03"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}

func TestLocalHost_UploadRejectsEscapingKeys(t *testing.T) {
	host, err := NewLocalHost(t.TempDir(), "")
	require.NoError(t, err)

	for _, key := range []string{"../evil.png", "a/../../evil.png", "", "/abs.png"} {
		_, err := host.Upload(context.Background(), key, "image/png", bytes.NewReader(nil))
		assert.Error(t, err, key)
	}
}

func TestLocalHost_UploadCancelled(t *testing.T) {
	host, err := NewLocalHost(t.TempDir(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = host.Upload(ctx, "a.png", "image/png", bytes.NewReader(nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalHost_PingMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	host, err := NewLocalHost(dir, "")
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	assert.Error(t, host.Ping(context.Background()))
}

func TestNewObjectKey(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	key := NewObjectKey("/job-ads/", "image/png", now)
	assert.True(t, strings.HasPrefix(key, "job-ads/2025/03/"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)

	key = NewObjectKey("job-ads", "image/avif", now)
	assert.True(t, strings.HasSuffix(key, ".avif"), key)

	assert.NotEqual(t, NewObjectKey("f", "image/png", now), NewObjectKey("f", "image/png", now))
}

func TestNewObjectKey_UnknownTypeHasNoExtension(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	for _, contentType := range []string{"image/tiff", "text/html; charset=utf-8", ""} {
		key := NewObjectKey("job-ads", contentType, now)
		assert.Empty(t, path.Ext(key), key)
	}
}
