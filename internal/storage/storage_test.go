package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagecollector/internal/config"
)

func TestNewLocal(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "storage")

	s, err := NewLocal(root)
	require.NoError(t, err)
	assert.NotNil(t, s)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = NewLocal("")
	assert.Error(t, err)
}

func TestLocalStorage_Put(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocal(root)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("writes payload", func(t *testing.T) {
		info, err := s.Put(ctx, "a.jpg", strings.NewReader("hello world"), PutObjectOptions{Size: 11, ContentType: "image/jpeg"})
		require.NoError(t, err)

		assert.Equal(t, "a.jpg", info.Key)
		assert.Equal(t, int64(11), info.Size)
		assert.Equal(t, "image/jpeg", info.ContentType)
		assert.Equal(t, filepath.Join(root, "a.jpg"), info.Location)

		b, err := os.ReadFile(info.Location)
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(b))
	})

	t.Run("overwrites existing key", func(t *testing.T) {
		_, err := s.Put(ctx, "b.jpg", strings.NewReader("first"), PutObjectOptions{Size: -1})
		require.NoError(t, err)
		info, err := s.Put(ctx, "b.jpg", strings.NewReader("second"), PutObjectOptions{Size: -1})
		require.NoError(t, err)

		b, err := os.ReadFile(info.Location)
		require.NoError(t, err)
		assert.Equal(t, "second", string(b))
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		entries, err := os.ReadDir(root)
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
		}
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		for _, key := range []string{"", ".", "..", "../escape.jpg", "dir/file.jpg"} {
			_, err := s.Put(ctx, key, strings.NewReader("x"), PutObjectOptions{})
			assert.ErrorIs(t, err, ErrInvalidKey, key)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Put(cctx, "c.jpg", strings.NewReader("x"), PutObjectOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("name at the filesystem limit", func(t *testing.T) {
		key := strings.Repeat("a", 251) + ".jpg"
		info, err := s.Put(ctx, key, strings.NewReader("x"), PutObjectOptions{Size: 1})
		require.NoError(t, err)
		assert.FileExists(t, info.Location)
	})

	t.Run("reader error removes temp file", func(t *testing.T) {
		_, err := s.Put(ctx, "d.jpg", failingReader{}, PutObjectOptions{})
		assert.Error(t, err)
		_, statErr := os.Stat(filepath.Join(root, "d.jpg"))
		assert.True(t, os.IsNotExist(statErr))
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestNewMinIO_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MinIOConfig
		msg  string
	}{
		{name: "missing endpoint", cfg: config.MinIOConfig{}, msg: "endpoint"},
		{name: "missing credentials", cfg: config.MinIOConfig{Endpoint: "localhost:9000"}, msg: "credentials"},
		{name: "missing bucket", cfg: config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}, msg: "bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewMinIO(tt.cfg, "storage")
			assert.Nil(t, s)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestObjectPrefix(t *testing.T) {
	assert.Equal(t, "storage", objectPrefix("./storage"))
	assert.Equal(t, "data/images", objectPrefix("/data/images/"))
	assert.Equal(t, "", objectPrefix(""))
	assert.Equal(t, "", objectPrefix("."))
}
