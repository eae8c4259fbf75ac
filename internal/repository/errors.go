package repository

import "errors"

var (
	// ErrInvalidImageURL indicates an invalid image URL
	ErrInvalidImageURL = errors.New("invalid image URL")

	// ErrRepositoryUnavailable indicates no backend is configured for the URL's scheme
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
