package container

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/receipt-inspector-go/internal/analyzer"
	"github.com/anime-shed/receipt-inspector-go/internal/config"
	"github.com/anime-shed/receipt-inspector-go/internal/extraction"
	"github.com/anime-shed/receipt-inspector-go/internal/factory"
	"github.com/anime-shed/receipt-inspector-go/internal/logger"
	"github.com/anime-shed/receipt-inspector-go/internal/monitor"
	"github.com/anime-shed/receipt-inspector-go/internal/observer"
	"github.com/anime-shed/receipt-inspector-go/internal/ocr"
	"github.com/anime-shed/receipt-inspector-go/internal/repository"
	"github.com/anime-shed/receipt-inspector-go/internal/service"
	"github.com/anime-shed/receipt-inspector-go/internal/storage"
	"github.com/anime-shed/receipt-inspector-go/internal/strategy"
	"github.com/anime-shed/receipt-inspector-go/internal/transport"
	"github.com/anime-shed/receipt-inspector-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config     *config.Config
	recognizer ocr.Recognizer
	stats      *monitor.GlobalStats
	service    service.ReceiptProcessingService
	handler    http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger.SetLevel(cfg.LogLevel)

	components := factory.NewComponentFactory(cfg)

	recognizer, err := components.RecognizerFactory.CreateRecognizer(ctx, factory.ProviderType(cfg.OCRProvider))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s recognizer: %w", cfg.OCRProvider, err)
	}

	httpFetcher, err := components.StorageFactory.CreateStorage(factory.HTTPStorage)
	if err != nil {
		closeRecognizer(recognizer)
		return nil, err
	}
	var blobFetcher storage.ImageFetcher
	if cfg.BlobStorageEnabled() {
		blobFetcher, err = components.StorageFactory.CreateStorage(factory.AzureStorage)
		if err != nil {
			closeRecognizer(recognizer)
			return nil, fmt.Errorf("failed to create blob storage: %w", err)
		}
	}
	imageRepository := repository.NewSourceRepository(httpFetcher, blobFetcher, validation.NewURLValidator())

	analysisOpts := analyzer.DefaultOptions()
	if cfg.DetectBlur {
		analysisOpts = analysisOpts.WithBlurDetection(cfg.BlurThreshold)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	stats := monitor.NewGlobalStats()
	if err := stats.Register(registry); err != nil {
		closeRecognizer(recognizer)
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	eventCounts := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(eventCounts)

	fieldValidator := validation.NewFieldValidator()
	svc := service.NewReceiptProcessingService(service.Dependencies{
		ImageRepository: imageRepository,
		Analyzer:        analyzer.NewQualityAnalyzerWithOptions(analysisOpts),
		Adapter:         extraction.NewAdapter(recognizer, cfg.OCRTimeout),
		Validator:       fieldValidator,
		Strategies:      strategy.NewRegistry(),
		Stats:           stats,
		Events:          events,
	}, service.Options{
		QualityGateMinScore: cfg.QualityGateMinScore,
		BatchWorkers:        cfg.BatchWorkers,
	})

	handler := transport.NewHandler(transport.HandlerDeps{
		Service:     svc,
		Validator:   fieldValidator,
		Stats:       stats,
		EventCounts: eventCounts,
		Gatherer:    registry,
	}, cfg)

	logger.WithFields(logrus.Fields{
		"ocr_provider": recognizer.Name(),
		"blob_storage": cfg.BlobStorageEnabled(),
		"detect_blur":  cfg.DetectBlur,
	}).Info("Container initialized")

	return &Container{
		config:     cfg,
		recognizer: recognizer,
		stats:      stats,
		service:    svc,
		handler:    handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the receipt pipeline
func (c *Container) Service() service.ReceiptProcessingService {
	return c.service
}

// Stats returns the process-wide session aggregate
func (c *Container) Stats() *monitor.GlobalStats {
	return c.stats
}

// Close releases the recognizer's connections
func (c *Container) Close() error {
	if closer, ok := c.recognizer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func closeRecognizer(r ocr.Recognizer) {
	if closer, ok := r.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close recognizer")
		}
	}
}
