package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/receipt-inspector-go/internal/logger"
	"github.com/anime-shed/receipt-inspector-go/internal/ocr"
)

// Adapter performs one recognition call bounded by a timeout and classifies failures.
// It never retries.
type Adapter struct {
	recognizer ocr.Recognizer
	timeout    time.Duration
}

// NewAdapter wraps r; a non-positive timeout means 30s
func NewAdapter(r ocr.Recognizer, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Adapter{recognizer: r, timeout: timeout}
}

// Provider names the underlying recognizer
func (a *Adapter) Provider() string {
	return a.recognizer.Name()
}

// RecognitionError is a classified recognizer failure
type RecognitionError struct {
	Class ocr.ErrorClass
	Err   error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

type recognizeResult struct {
	rec *ocr.Recognition
	err error
}

// Recognize runs the recognizer in its own goroutine so a provider that ignores ctx
// still cannot hold the caller past the timeout. A late result is discarded.
func (a *Adapter) Recognize(ctx context.Context, data []byte, mimeType string) (*ocr.Recognition, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan recognizeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- recognizeResult{err: fmt.Errorf("recognizer panicked: %v", r)}
			}
		}()
		rec, err := a.recognizer.Recognize(ctx, data, mimeType)
		done <- recognizeResult{rec: rec, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, a.fail(ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, a.fail(res.err)
		}
		if res.rec == nil || (res.rec.Text == "" && len(res.rec.Tokens) == 0) {
			return nil, a.fail(ocr.ErrNoText)
		}
		if res.rec.Provider == "" {
			res.rec.Provider = a.recognizer.Name()
		}
		return res.rec, nil
	}
}

func (a *Adapter) fail(err error) *RecognitionError {
	re := &RecognitionError{Class: ocr.ClassifyError(err), Err: err}
	logger.WithFields(logrus.Fields{
		"provider":    a.recognizer.Name(),
		"error_class": re.Class,
		"error":       err.Error(),
	}).Warn("Text recognition failed")
	return re
}

// Extract recognizes data and applies the positional rules of profile
func (a *Adapter) Extract(ctx context.Context, data []byte, mimeType string, profile Profile) (*ocr.Recognition, Fields, error) {
	rec, err := a.Recognize(ctx, data, mimeType)
	if err != nil {
		return nil, Fields{LineItems: []LineItem{}}, err
	}
	return rec, ExtractFields(rec, profile), nil
}
