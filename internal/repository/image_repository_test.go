package repository

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/anime-shed/receipt-inspector-go/internal/errors"
	"github.com/anime-shed/receipt-inspector-go/internal/storage"
)

type recordingFetcher struct {
	name  string
	calls []string
}

func (f *recordingFetcher) FetchImage(ctx context.Context, imageURL string) (*storage.Image, error) {
	f.calls = append(f.calls, imageURL)
	return &storage.Image{Data: []byte(f.name), Source: imageURL}, nil
}

func TestSourceRepository_DispatchByScheme(t *testing.T) {
	httpFetcher := &recordingFetcher{name: "http"}
	blobFetcher := &recordingFetcher{name: "blob"}
	repo := NewSourceRepository(httpFetcher, blobFetcher, nil)

	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/r.jpg", "http"},
		{"http://example.com/r.jpg", "http"},
		{"azblob://receipts/r.jpg", "blob"},
	}

	for _, tt := range tests {
		img, err := repo.FetchImage(context.Background(), tt.url)
		if err != nil {
			t.Fatalf("Expected no error for %s, got %v", tt.url, err)
		}
		if string(img.Data) != tt.want {
			t.Errorf("Expected %s fetcher for %s, got %s", tt.want, tt.url, img.Data)
		}
	}
	if len(httpFetcher.calls) != 2 || len(blobFetcher.calls) != 1 {
		t.Errorf("Expected 2 http and 1 blob calls, got %d and %d", len(httpFetcher.calls), len(blobFetcher.calls))
	}
}

func TestSourceRepository_InvalidURL(t *testing.T) {
	fetcher := &recordingFetcher{name: "http"}
	repo := NewSourceRepository(fetcher, nil, nil)

	_, err := repo.FetchImage(context.Background(), "ftp://example.com/r.jpg")
	if !errors.Is(err, ErrInvalidImageURL) {
		t.Errorf("Expected ErrInvalidImageURL, got %v", err)
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected the validation AppError to stay reachable, got %v", err)
	}
	if len(fetcher.calls) != 0 {
		t.Error("Expected no fetch for an invalid URL")
	}
}

func TestSourceRepository_BlobNotConfigured(t *testing.T) {
	repo := NewSourceRepository(&recordingFetcher{name: "http"}, nil, nil)

	_, err := repo.FetchImage(context.Background(), "azblob://receipts/r.jpg")
	if !errors.Is(err, ErrRepositoryUnavailable) {
		t.Errorf("Expected ErrRepositoryUnavailable, got %v", err)
	}
}
