package repository

import (
	"bytes"
	"context"
	"errors"

	"imagecollector/internal/fetcher"
	"imagecollector/internal/model"
	"imagecollector/internal/storage"
)

// Stored is a freshly persisted payload: the image value that will be returned
// to the caller plus the location its bytes were written to.
type Stored struct {
	Image    model.Image
	FilePath string
}

// Ingestor is the download-and-write half of Save that every backend shares.
// Backends call Ingest and then upsert their metadata row.
type Ingestor struct {
	fetcher fetcher.Fetcher
	store   storage.Storage
}

func NewIngestor(f fetcher.Fetcher, s storage.Storage) *Ingestor {
	return &Ingestor{fetcher: f, store: s}
}

// Ingest fetches req.SourceURL and writes the payload under its file name.
// The origin's Content-Type is recorded verbatim, defaulting to
// model.DefaultContentType.
func (i *Ingestor) Ingest(ctx context.Context, req model.ImageRequest) (*Stored, error) {
	if req.SourceURL == "" {
		return nil, model.ErrSourceURLRequired
	}
	req = req.WithID()
	fileName := req.ResolveFileName()

	res, err := i.fetcher.Fetch(ctx, req.SourceURL)
	if err != nil {
		fe := &FetchError{URL: req.SourceURL, Err: err}
		var se *fetcher.StatusError
		if errors.As(err, &se) {
			fe.StatusCode = se.StatusCode
		}
		return nil, fe
	}

	contentType := res.ContentType
	if contentType == "" {
		contentType = model.DefaultContentType
	}
	size := int64(len(res.Body))

	info, err := i.store.Put(ctx, fileName, bytes.NewReader(res.Body), storage.PutObjectOptions{
		Size:        size,
		ContentType: contentType,
	})
	if err != nil {
		return nil, &StorageWriteError{Op: "write payload", Err: err}
	}

	return &Stored{
		Image: model.Image{
			ID:          req.ID,
			SourceURL:   req.SourceURL,
			FileName:    fileName,
			ContentType: contentType,
			SizeBytes:   size,
			CreatedAt:   model.NewTimestamp(),
		},
		FilePath: info.Location,
	}, nil
}
