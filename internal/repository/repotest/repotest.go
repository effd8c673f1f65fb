// Package repotest holds the behaviour every repository.ImageRepository must
// share, runnable against any backend from that backend's own tests.
package repotest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagecollector/internal/fetcher"
	"imagecollector/internal/model"
	"imagecollector/internal/repository"
	"imagecollector/internal/storage"
)

// Factory builds the repository under test on top of the given ingestor.
type Factory func(t *testing.T, ingestor *repository.Ingestor) repository.ImageRepository

// Payload served by the origin at /a.jpg.
var Payload = bytes.Repeat([]byte{0xAB}, 1024)

// NewOrigin starts an HTTP server standing in for remote image hosts.
//
//	/a.jpg        200 image/jpeg, 1024 bytes
//	/b.png        200 image/png, 10 bytes
//	/untyped      200 without Content-Type
//	/missing.jpg  404
//	/broken.jpg   500
func NewOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/a.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(Payload)
	})
	mux.HandleFunc("/b.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("0123456789"))
	})
	mux.HandleFunc("/untyped", func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte("raw"))
	})
	mux.HandleFunc("/missing.jpg", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/broken.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// NewIngestor returns an ingestor writing to a fresh local storage root.
func NewIngestor(t *testing.T) (*repository.Ingestor, string) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewLocal(root)
	require.NoError(t, err)
	return repository.NewIngestor(fetcher.NewHTTP(5*time.Second), store), root
}

// RunContract exercises the ImageRepository contract.
func RunContract(t *testing.T, newRepo Factory) {
	origin := NewOrigin(t)
	ctx := context.Background()

	setup := func(t *testing.T) (repository.ImageRepository, string) {
		ing, root := NewIngestor(t)
		return newRepo(t, ing), root
	}

	t.Run("save then get returns the saved record", func(t *testing.T) {
		repo, root := setup(t)

		saved, err := repo.Save(ctx, model.ImageRequest{ID: "img-1", SourceURL: origin.URL + "/a.jpg"})
		require.NoError(t, err)

		assert.Equal(t, "img-1", saved.ID)
		assert.Equal(t, origin.URL+"/a.jpg", saved.SourceURL)
		assert.Equal(t, int64(1024), saved.SizeBytes)
		assert.Equal(t, "image/jpeg", saved.ContentType)
		assert.True(t, strings.HasSuffix(saved.FileName, ".jpg"))
		assert.False(t, saved.CreatedAt.IsZero())

		b, err := os.ReadFile(filepath.Join(root, saved.FileName))
		require.NoError(t, err)
		assert.Equal(t, Payload, b)

		got, err := repo.GetByID(ctx, "img-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, *saved, *got)
	})

	t.Run("missing id is absent, not an error", func(t *testing.T) {
		repo, _ := setup(t)

		got, err := repo.GetByID(ctx, "nope")
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("saving an existing id overwrites it", func(t *testing.T) {
		repo, _ := setup(t)

		_, err := repo.Save(ctx, model.ImageRequest{ID: "same", SourceURL: origin.URL + "/a.jpg", FileName: "first.jpg"})
		require.NoError(t, err)
		second, err := repo.Save(ctx, model.ImageRequest{ID: "same", SourceURL: origin.URL + "/b.png", FileName: "second.png"})
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, "same")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, *second, *got)
		assert.Equal(t, origin.URL+"/b.png", got.SourceURL)
		assert.Equal(t, "image/png", got.ContentType)
		assert.Equal(t, int64(10), got.SizeBytes)

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("get all returns every saved record", func(t *testing.T) {
		repo, _ := setup(t)

		var saved []model.Image
		for i := 0; i < 3; i++ {
			img, err := repo.Save(ctx, model.ImageRequest{SourceURL: origin.URL + "/a.jpg"})
			require.NoError(t, err)
			saved = append(saved, *img)
		}

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, saved, all)
	})

	t.Run("fetch error stores nothing", func(t *testing.T) {
		repo, root := setup(t)

		for _, path := range []string{"/missing.jpg", "/broken.jpg"} {
			img, err := repo.Save(ctx, model.ImageRequest{ID: "bad", SourceURL: origin.URL + path, FileName: "bad.jpg"})
			assert.Nil(t, img)
			assert.True(t, repository.IsFetchError(err), "%v", err)
		}

		got, err := repo.GetByID(ctx, "bad")
		assert.NoError(t, err)
		assert.Nil(t, got)

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		_, statErr := os.Stat(filepath.Join(root, "bad.jpg"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("missing content type falls back to default", func(t *testing.T) {
		repo, _ := setup(t)

		img, err := repo.Save(ctx, model.ImageRequest{SourceURL: origin.URL + "/untyped"})
		require.NoError(t, err)
		assert.Equal(t, model.DefaultContentType, img.ContentType)
		assert.Equal(t, int64(3), img.SizeBytes)
	})

	t.Run("caller file name is kept", func(t *testing.T) {
		repo, root := setup(t)

		img, err := repo.Save(ctx, model.ImageRequest{SourceURL: origin.URL + "/b.png", FileName: "logo.png"})
		require.NoError(t, err)
		assert.Equal(t, "logo.png", img.FileName)
		assert.FileExists(t, filepath.Join(root, "logo.png"))
	})
}
