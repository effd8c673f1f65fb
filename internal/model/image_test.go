package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{name: "absolute https", url: "https://example.test/a.jpg"},
		{name: "absolute http with port", url: "http://127.0.0.1:8080/img"},
		{name: "empty", url: "", wantErr: ErrSourceURLRequired},
		{name: "relative path", url: "/a.jpg", wantErr: ErrInvalidSourceURL},
		{name: "missing host", url: "https:///a.jpg", wantErr: ErrInvalidSourceURL},
		{name: "garbage", url: "://nope", wantErr: ErrInvalidSourceURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ImageRequest{SourceURL: tt.url}.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestImageRequest_ValidateFileName(t *testing.T) {
	base := ImageRequest{SourceURL: "https://example.test/a.jpg"}

	for _, name := range []string{"", "cat.png", "no-extension", ".hidden"} {
		req := base
		req.FileName = name
		assert.NoError(t, req.Validate(), name)
	}
	for _, name := range []string{"../etc/passwd", "a/b.jpg", `a\b.jpg`, ".", ".."} {
		req := base
		req.FileName = name
		assert.ErrorIs(t, req.Validate(), ErrInvalidFileName, name)
	}
}

func TestImageRequest_WithID(t *testing.T) {
	req := ImageRequest{SourceURL: "https://example.test/a.jpg"}.WithID()
	_, err := uuid.Parse(req.ID)
	assert.NoError(t, err)

	kept := ImageRequest{ID: "caller-id"}.WithID()
	assert.Equal(t, "caller-id", kept.ID)
}

func TestImageRequest_ResolveFileName(t *testing.T) {
	assert.Equal(t, "cat.png", ImageRequest{FileName: "cat.png"}.ResolveFileName())

	generated := ImageRequest{}.ResolveFileName()
	assert.True(t, strings.HasSuffix(generated, DefaultExtension))
	_, err := uuid.Parse(strings.TrimSuffix(generated, DefaultExtension))
	assert.NoError(t, err)
	assert.NotEqual(t, generated, ImageRequest{}.ResolveFileName())
}

func TestNewTimestamp(t *testing.T) {
	ts := NewTimestamp()
	assert.Equal(t, time.UTC, ts.Location())
	assert.Zero(t, ts.Nanosecond()%int(time.Microsecond))
}

func TestNewImageCreatedEvent(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	img := Image{
		ID:          "img-1",
		SourceURL:   "https://example.test/a.jpg",
		FileName:    "a.jpg",
		ContentType: "image/jpeg",
		SizeBytes:   1024,
		CreatedAt:   created,
	}

	b, err := json.Marshal(NewImageCreatedEvent(img))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "image_created", got["event_type"])

	inner := got["image"].(map[string]any)
	assert.Equal(t, "img-1", inner["id"])
	assert.Equal(t, "https://example.test/a.jpg", inner["source_url"])
	assert.Equal(t, "a.jpg", inner["file_name"])
	assert.Equal(t, "image/jpeg", inner["content_type"])
	assert.Equal(t, float64(1024), inner["size_bytes"])
	assert.Equal(t, "2024-05-01T10:30:00Z", inner["created_at"])
}

func TestNewImageCreatedEvent_NullCreatedAt(t *testing.T) {
	b, err := json.Marshal(NewImageCreatedEvent(Image{ID: "img-2"}))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"created_at":null`)
}
