package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobScheme prefixes blob references: azblob://container/path/to/blob
const BlobScheme = "azblob"

type azureStorage struct {
	client   *azblob.Client
	maxBytes int64
}

// NewAzureStorage creates a fetcher for azblob:// references in one storage account
func NewAzureStorage(accountName string, accountKey string) (ImageFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid storage credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net/", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}

	return &azureStorage{client: client, maxBytes: defaultMaxBytes}, nil
}

// FetchImage downloads the referenced blob
func (s *azureStorage) FetchImage(ctx context.Context, blobURL string) (*Image, error) {
	containerName, blobName, err := parseBlobReference(blobURL)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := readLimited(resp.Body, s.maxBytes)
	if err != nil {
		return nil, err
	}

	declared := ""
	if resp.ContentType != nil {
		declared = *resp.ContentType
	}
	return &Image{Data: data, ContentType: contentType(declared, data), Source: blobURL}, nil
}

// parseBlobReference splits azblob://container/blob into its parts
func parseBlobReference(ref string) (string, string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}
	if u.Scheme != BlobScheme {
		return "", "", fmt.Errorf("invalid blob URL: scheme %q", u.Scheme)
	}
	blob := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || blob == "" {
		return "", "", fmt.Errorf("invalid blob URL: expected %s://container/blob", BlobScheme)
	}
	return u.Host, blob, nil
}
