package model

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultContentType is recorded when the origin response carries no Content-Type.
	DefaultContentType = "image/jpeg"
	// DefaultExtension is appended to generated file names.
	DefaultExtension = ".jpg"
)

var (
	ErrSourceURLRequired = errors.New("source url is required")
	ErrInvalidSourceURL  = errors.New("source url must be an absolute url")
	ErrInvalidFileName   = errors.New("file name must be a plain name without path separators")
)

// Image represents a stored image.
// This is a pure domain model with no database-specific dependencies or tags.
// Values returned by a repository are never mutated after the fact; a new save
// produces a new value.
type Image struct {
	ID          string    `json:"id"`
	SourceURL   string    `json:"source_url"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// ImageRequest is the request stage of an Image: only what the caller knows
// before the payload has been fetched.
type ImageRequest struct {
	ID        string
	SourceURL string
	FileName  string
}

// Validate checks that SourceURL is a syntactically valid absolute URL and
// that FileName, when given, names a single file.
func (r ImageRequest) Validate() error {
	if r.SourceURL == "" {
		return ErrSourceURLRequired
	}
	u, err := url.Parse(r.SourceURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ErrInvalidSourceURL
	}
	if r.FileName != "" && (r.FileName == "." || r.FileName == ".." || strings.ContainsAny(r.FileName, `/\`)) {
		return ErrInvalidFileName
	}
	return nil
}

// WithID returns a copy of the request carrying an id, generating one if absent.
func (r ImageRequest) WithID() ImageRequest {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return r
}

// ResolveFileName returns the caller supplied file name or a fresh unique one.
func (r ImageRequest) ResolveFileName() string {
	if r.FileName != "" {
		return r.FileName
	}
	return uuid.NewString() + DefaultExtension
}

// NewTimestamp returns the creation time assigned at the moment of a successful save.
// Microsecond precision keeps the value identical after a round trip through any backend.
func NewTimestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
