package repository

import (
	"context"

	"github.com/anime-shed/receipt-inspector-go/internal/storage"
)

// ImageRepository loads receipt images from the locations a client may name
type ImageRepository interface {
	// FetchImage validates imageURL and retrieves the image bytes
	FetchImage(ctx context.Context, imageURL string) (*storage.Image, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}
