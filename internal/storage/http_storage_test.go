package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// Valid minimal PNG data for a 1x1 transparent pixel
var pngData = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, // 1x1 dimensions
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4, // bit depth, color type, etc.
	0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41, // IDAT chunk start
	0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00, // compressed data
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00, // compressed data end
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE, // IEND chunk
	0x42, 0x60, 0x82,
}

func TestHTTPImageFetcher_RetryLogic(t *testing.T) {
	tests := []struct {
		name          string
		responses     []int // Status codes to return in sequence
		expectRetries int   // Expected number of requests
		expectError   bool
		errorContains string
	}{
		{
			name:          "Success on first attempt",
			responses:     []int{200},
			expectRetries: 1,
		},
		{
			name:          "Success on second attempt after 5xx",
			responses:     []int{500, 200},
			expectRetries: 2,
		},
		{
			name:          "4xx client error - no retry",
			responses:     []int{404},
			expectRetries: 1,
			expectError:   true,
			errorContains: "client error: status code 404",
		},
		{
			name:          "4xx after 5xx - should retry until 4xx then stop",
			responses:     []int{500, 404},
			expectRetries: 2,
			expectError:   true,
			errorContains: "client error: status code 404",
		},
		{
			name:          "All 5xx errors - retry all attempts",
			responses:     []int{500, 502, 503},
			expectRetries: 3,
			expectError:   true,
			errorContains: "server error: status code 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requestCount := 0

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if requestCount >= len(tt.responses) {
					w.WriteHeader(500)
					w.Write([]byte("Unexpected request"))
					return
				}
				statusCode := tt.responses[requestCount]
				requestCount++

				if statusCode == 200 {
					w.Header().Set("Content-Type", "image/png")
					w.Write(pngData)
					return
				}
				w.WriteHeader(statusCode)
				w.Write([]byte(fmt.Sprintf("Error %d", statusCode)))
			}))
			defer server.Close()

			fetcher := NewHTTPImageFetcher(WithBackoff(time.Millisecond))
			img, err := fetcher.FetchImage(context.Background(), server.URL)

			if requestCount != tt.expectRetries {
				t.Errorf("Expected %d requests, got %d", tt.expectRetries, requestCount)
			}

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error, but got none")
				} else if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain '%s', got: %s", tt.errorContains, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("Expected no error, got: %s", err.Error())
			}
			if img.ContentType != "image/png" {
				t.Errorf("Expected content type image/png, got %s", img.ContentType)
			}
			if len(img.Data) != len(pngData) {
				t.Errorf("Expected %d bytes, got %d", len(pngData), len(img.Data))
			}
			if img.Source != server.URL {
				t.Errorf("Expected source %s, got %s", server.URL, img.Source)
			}
		})
	}
}

func TestHTTPImageFetcher_NetworkError_Retry(t *testing.T) {
	requestCount := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		if requestCount < 3 {
			// Simulate network error by closing connection
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
			}
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	}))
	defer server.Close()

	fetcher := NewHTTPImageFetcher(WithBackoff(50 * time.Millisecond))

	start := time.Now()
	_, err := fetcher.FetchImage(context.Background(), server.URL)
	duration := time.Since(start)

	if err != nil {
		t.Errorf("Expected success after retries, got error: %s", err.Error())
	}
	if requestCount != 3 {
		t.Errorf("Expected 3 requests, got %d", requestCount)
	}
	// 50ms + 100ms of backoff
	if duration < 150*time.Millisecond {
		t.Errorf("Expected at least 150ms due to backoff, took %v", duration)
	}
}

func TestHTTPImageFetcher_SniffsGenericContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(pngData)
	}))
	defer server.Close()

	img, err := NewHTTPImageFetcher().FetchImage(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if img.ContentType != "image/png" {
		t.Errorf("Expected sniffed image/png, got %s", img.ContentType)
	}
}

func TestHTTPImageFetcher_MaxBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	}))
	defer server.Close()

	_, err := NewHTTPImageFetcher(WithMaxBytes(16)).FetchImage(context.Background(), server.URL)
	if err == nil || !strings.Contains(err.Error(), "exceeds 16 bytes") {
		t.Errorf("Expected size limit error, got: %v", err)
	}
}

func TestHTTPImageFetcher_ContextCancelledStopsRetrying(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.WriteHeader(503)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := NewHTTPImageFetcher(WithBackoff(time.Second)).FetchImage(ctx, server.URL)
	if err == nil {
		t.Fatal("Expected error")
	}
	if requestCount != 1 {
		t.Errorf("Expected 1 request before the deadline, got %d", requestCount)
	}
}

func TestParseBlobReference(t *testing.T) {
	container, blob, err := parseBlobReference("azblob://receipts/2024/06/lunch.jpg")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if container != "receipts" || blob != "2024/06/lunch.jpg" {
		t.Errorf("Expected receipts and 2024/06/lunch.jpg, got %s and %s", container, blob)
	}

	for _, ref := range []string{"https://host/c/b", "azblob://receipts", "azblob:///blob.jpg", "azblob://receipts/"} {
		if _, _, err := parseBlobReference(ref); err == nil {
			t.Errorf("Expected %q to be rejected", ref)
		}
	}
}

func TestNewAzureStorage_InvalidKey(t *testing.T) {
	if _, err := NewAzureStorage("account", "not base64!"); err == nil {
		t.Error("Expected an error for a key that is not base64")
	}
}
