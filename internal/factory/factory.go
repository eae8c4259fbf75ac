package factory

import (
	"context"
	"fmt"

	"github.com/anime-shed/receipt-inspector-go/internal/config"
	"github.com/anime-shed/receipt-inspector-go/internal/ocr"
	"github.com/anime-shed/receipt-inspector-go/internal/storage"
)

// ProviderType names an OCR backend
type ProviderType string

const (
	// TesseractProvider runs the local Tesseract engine
	TesseractProvider ProviderType = "tesseract"
	// DocumentAIProvider calls a Google Document AI processor
	DocumentAIProvider ProviderType = "documentai"
	// AzureProvider calls Azure Computer Vision
	AzureProvider ProviderType = "azure"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based image fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
)

// RecognizerFactory creates OCR recognizers
type RecognizerFactory interface {
	CreateRecognizer(ctx context.Context, provider ProviderType) (ocr.Recognizer, error)
}

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageFetcher, error)
}

type recognizerFactory struct {
	cfg *config.Config
}

// NewRecognizerFactory creates a recognizer factory reading provider settings from cfg
func NewRecognizerFactory(cfg *config.Config) RecognizerFactory {
	return &recognizerFactory{cfg: cfg}
}

// CreateRecognizer creates a recognizer for the given provider. Remote providers may
// hold connections; callers should close results that implement io.Closer.
func (f *recognizerFactory) CreateRecognizer(ctx context.Context, provider ProviderType) (ocr.Recognizer, error) {
	switch provider {
	case TesseractProvider:
		return ocr.NewTesseractRecognizer(f.cfg.TesseractLanguage), nil
	case DocumentAIProvider:
		r, err := ocr.NewDocumentAIRecognizer(ctx, ocr.DocumentAIConfig{
			ProjectID:       f.cfg.DocumentAIProjectID,
			Location:        f.cfg.DocumentAILocation,
			ProcessorID:     f.cfg.DocumentAIProcessorID,
			CredentialsFile: f.cfg.DocumentAICredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	case AzureProvider:
		r, err := ocr.NewAzureVisionRecognizer(f.cfg.AzureVisionEndpoint, f.cfg.AzureVisionKey)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported OCR provider: %s", provider)
	}
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPImageFetcher(
			storage.WithTimeout(f.cfg.ImageFetchTimeout),
			storage.WithMaxBytes(f.cfg.MaxRequestBodySize),
		), nil
	case AzureStorage:
		if !f.cfg.BlobStorageEnabled() {
			return nil, fmt.Errorf("azure storage requires AZURE_STORAGE_ACCOUNT")
		}
		return storage.NewAzureStorage(f.cfg.AzureStorageAccount, f.cfg.AzureStorageKey)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	RecognizerFactory RecognizerFactory
	StorageFactory    StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		RecognizerFactory: NewRecognizerFactory(cfg),
		StorageFactory:    NewStorageFactory(cfg),
	}
}
