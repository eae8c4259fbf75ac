package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultMaxBytes     = 20 << 20
	fetchAttempts       = 3
)

// Image is a fetched receipt image before decoding
type Image struct {
	Data        []byte
	ContentType string
	Source      string
}

// ImageFetcher loads receipt image bytes from a location
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (*Image, error)
}

// HTTPImageFetcher implements ImageFetcher over HTTP(S) with retries on transient errors
type HTTPImageFetcher struct {
	client   *http.Client
	maxBytes int64
	backoff  time.Duration
}

// FetcherOption configures an HTTPImageFetcher
type FetcherOption func(*HTTPImageFetcher)

// WithTimeout sets the per-attempt client timeout
func WithTimeout(d time.Duration) FetcherOption {
	return func(h *HTTPImageFetcher) {
		if d > 0 {
			h.client.Timeout = d
		}
	}
}

// WithMaxBytes caps the accepted body size
func WithMaxBytes(n int64) FetcherOption {
	return func(h *HTTPImageFetcher) {
		if n > 0 {
			h.maxBytes = n
		}
	}
}

// WithBackoff sets the base delay between attempts; attempt n waits n*d
func WithBackoff(d time.Duration) FetcherOption {
	return func(h *HTTPImageFetcher) { h.backoff = d }
}

// NewHTTPImageFetcher creates an HTTP image fetcher
func NewHTTPImageFetcher(opts ...FetcherOption) *HTTPImageFetcher {
	// Transport tuned for single image downloads
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	h := &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   defaultFetchTimeout,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes: defaultMaxBytes,
		backoff:  time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FetchImage downloads imageURL. 5xx responses and transport errors are retried
// up to three attempts; 4xx responses are not.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "Receipt-Inspector/1.0")

	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("failed to fetch image: %w", ctx.Err())
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		img, retry, err := h.attempt(req)
		if err == nil {
			img.Source = imageURL
			return img, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", fetchAttempts, lastErr)
}

func (h *HTTPImageFetcher) attempt(req *http.Request) (*Image, bool, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, req.Context().Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body, h.maxBytes)
	if err != nil {
		return nil, false, err
	}

	return &Image{Data: data, ContentType: contentType(resp.Header.Get("Content-Type"), data)}, false, nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxBytes)
	}
	return data, nil
}

// contentType trusts the declared type unless it is missing or generic
func contentType(declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	return mimetype.Detect(data).String()
}
