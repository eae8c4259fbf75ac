package repository

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/anime-shed/receipt-inspector-go/internal/storage"
	"github.com/anime-shed/receipt-inspector-go/pkg/validation"
)

// SourceRepository picks a fetcher by URL scheme: http(s) or azblob
type SourceRepository struct {
	http      storage.ImageFetcher
	blob      storage.ImageFetcher
	validator *validation.URLValidator
}

// NewSourceRepository creates a repository. blobFetcher may be nil when no storage
// account is configured; azblob URLs then fail with ErrRepositoryUnavailable.
func NewSourceRepository(httpFetcher, blobFetcher storage.ImageFetcher, validator *validation.URLValidator) ImageRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &SourceRepository{http: httpFetcher, blob: blobFetcher, validator: validator}
}

// FetchImage retrieves an image from a URL
func (r *SourceRepository) FetchImage(ctx context.Context, imageURL string) (*storage.Image, error) {
	if err := r.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}

	fetcher := r.http
	if strings.HasPrefix(strings.ToLower(imageURL), storage.BlobScheme+"://") {
		fetcher = r.blob
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: no fetcher for %s", ErrRepositoryUnavailable, schemeOf(imageURL))
	}
	return fetcher.FetchImage(ctx, imageURL)
}

// ValidateImageURL validates if the provided URL is acceptable
func (r *SourceRepository) ValidateImageURL(imageURL string) error {
	if err := r.validator.ValidateImageURL(imageURL); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidImageURL, err)
	}
	return nil
}

func schemeOf(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		return u.Scheme
	}
	return "unknown"
}
