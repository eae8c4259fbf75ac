package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/anime-shed/receipt-inspector-go/internal/analyzer"
	"github.com/anime-shed/receipt-inspector-go/internal/confidence"
	apperrors "github.com/anime-shed/receipt-inspector-go/internal/errors"
	"github.com/anime-shed/receipt-inspector-go/internal/extraction"
	"github.com/anime-shed/receipt-inspector-go/internal/logger"
	"github.com/anime-shed/receipt-inspector-go/internal/monitor"
	"github.com/anime-shed/receipt-inspector-go/internal/observer"
	"github.com/anime-shed/receipt-inspector-go/internal/ocr"
	"github.com/anime-shed/receipt-inspector-go/internal/repository"
	"github.com/anime-shed/receipt-inspector-go/internal/strategy"
	"github.com/anime-shed/receipt-inspector-go/pkg/models"
	"github.com/anime-shed/receipt-inspector-go/pkg/validation"
)

// ProcessRequest is one receipt image submitted for processing
type ProcessRequest struct {
	Data     []byte
	MimeType string
	// Source is a filename or URL, used for logging and batch results
	Source       string
	DocumentType string
	ExpectedText string
	// ForceOCR runs recognition even when the image fails the quality gate
	ForceOCR bool
}

// ReceiptProcessingService runs the receipt pipeline
type ReceiptProcessingService interface {
	ProcessReceipt(ctx context.Context, req ProcessRequest) (*models.ProcessingResult, error)
	ProcessFromURL(ctx context.Context, req models.URLProcessingRequest) (*models.ProcessingResult, error)
	ProcessBatch(ctx context.Context, reqs []ProcessRequest) models.BatchResponse

	ValidateImageURL(imageURL string) error
}

// FieldScorer turns engine confidence and rule certainty into a field confidence
type FieldScorer interface {
	Score(field confidence.Field, ocrConfidence, extractionCertainty float64) float64
}

// Dependencies are the collaborators of the pipeline. Events may be nil.
type Dependencies struct {
	ImageRepository repository.ImageRepository
	Analyzer        analyzer.QualityAnalyzer
	Adapter         *extraction.Adapter
	Scorer          FieldScorer
	Validator       *validation.FieldValidator
	Strategies      *strategy.Registry
	Stats           *monitor.GlobalStats
	Events          observer.Subject
}

// Options tune the pipeline
type Options struct {
	// QualityGateMinScore is the lowest analyzer score that still goes to OCR
	QualityGateMinScore int
	// BatchWorkers bounds concurrent receipts in ProcessBatch
	BatchWorkers int
	// MonitorOptions are passed to every PerformanceMonitor
	MonitorOptions []monitor.Option
}

type receiptProcessingService struct {
	deps Dependencies
	opts Options
}

// NewReceiptProcessingService creates the pipeline service
func NewReceiptProcessingService(deps Dependencies, opts Options) ReceiptProcessingService {
	if deps.Scorer == nil {
		deps.Scorer = confidence.NewScorer()
	}
	if deps.Validator == nil {
		deps.Validator = validation.NewFieldValidator()
	}
	if deps.Strategies == nil {
		deps.Strategies = strategy.NewRegistry()
	}
	if deps.Stats == nil {
		deps.Stats = monitor.NewGlobalStats()
	}
	return &receiptProcessingService{deps: deps, opts: opts}
}

// ProcessReceipt runs quality analysis, OCR, extraction, scoring and validation.
// Stage failures are recorded in the session and yield a partial result; only an
// empty request is returned as an error.
func (s *receiptProcessingService) ProcessReceipt(ctx context.Context, req ProcessRequest) (*models.ProcessingResult, error) {
	if len(req.Data) == 0 {
		return nil, apperrors.NewValidationError("image is empty", nil)
	}

	strat, known := s.deps.Strategies.Resolve(req.DocumentType)
	docType := strat.GetStrategyName()

	mon := monitor.NewPerformanceMonitor(0, docType, s.opts.MonitorOptions...)
	run := &pipelineRun{
		svc: s,
		ctx: ctx,
		req: req,
		mon: mon,
		log: logger.WithSession(mon.SessionID()).WithField("document_type", docType),
		result: &models.ProcessingResult{
			Source:          req.Source,
			DocumentType:    docType,
			ExtractedFields: models.ExtractedFields{LineItems: []models.LineItemReport{}},
			Validation:      make(map[string]validation.ValidationResult),
		},
	}
	if !known {
		run.warn(fmt.Sprintf("Unknown document type %q; processed as %s (known: %s)",
			req.DocumentType, docType, strings.Join(s.deps.Strategies.Names(), ", ")))
	}

	s.notify(ctx, observer.PipelineEvent{
		EventType:    observer.ProcessingStarted,
		SessionID:    mon.SessionID(),
		Source:       req.Source,
		DocumentType: docType,
		Success:      true,
	})

	run.preprocess()
	rec := run.recognize()
	fields := run.extract(rec, strat.Profile())
	run.validate(fields)
	run.measureAccuracy(rec)

	session := mon.FinishSession(run.overallConfidence())
	s.deps.Stats.Update(session)
	run.result.Session = session

	s.notify(ctx, observer.PipelineEvent{
		EventType:      observer.ProcessingCompleted,
		SessionID:      session.SessionID,
		Source:         req.Source,
		DocumentType:   docType,
		ProcessingTime: time.Duration(session.Metrics.ProcessingTime) * time.Millisecond,
		Success:        !session.Failed(),
		Metadata: logrus.Fields{
			"quality_score":  run.result.QualityResult.Score,
			"recommendation": run.result.QualityResult.Recommendation,
		},
	})

	return run.result, nil
}

// ProcessFromURL fetches the image and processes it
func (s *receiptProcessingService) ProcessFromURL(ctx context.Context, req models.URLProcessingRequest) (*models.ProcessingResult, error) {
	img, err := s.deps.ImageRepository.FetchImage(ctx, req.URL)
	if err != nil {
		s.notify(ctx, observer.PipelineEvent{
			EventType:    observer.ImageFetchFailed,
			Source:       req.URL,
			ErrorMessage: err.Error(),
		})
		return nil, fetchError(err)
	}

	s.notify(ctx, observer.PipelineEvent{
		EventType: observer.ImageFetched,
		Source:    req.URL,
		Success:   true,
		Metadata:  logrus.Fields{"bytes": len(img.Data), "content_type": img.ContentType},
	})

	return s.ProcessReceipt(ctx, ProcessRequest{
		Data:         img.Data,
		MimeType:     img.ContentType,
		Source:       req.URL,
		DocumentType: req.DocumentType,
		ExpectedText: req.ExpectedText,
		ForceOCR:     req.ForceOCR,
	})
}

// ProcessBatch processes receipts concurrently and reports them in input order
func (s *receiptProcessingService) ProcessBatch(ctx context.Context, reqs []ProcessRequest) models.BatchResponse {
	resp := models.BatchResponse{Results: make([]models.BatchItemResult, len(reqs))}
	if len(reqs) == 0 {
		return resp
	}

	pool := analyzer.NewWorkerPool(min(s.opts.BatchWorkers, len(reqs)))
	pool.Start()
	defer pool.Close()

	for i, req := range reqs {
		pool.Submit(func() {
			item := models.BatchItemResult{Filename: req.Source}
			defer func() {
				if r := recover(); r != nil {
					item.Result = nil
					item.Error = fmt.Sprintf("processing panicked: %v", r)
				}
				resp.Results[i] = item
			}()

			result, err := s.ProcessReceipt(ctx, req)
			if err != nil {
				item.Error = err.Error()
				return
			}
			item.Result = result
		})
	}
	pool.Wait()

	for _, item := range resp.Results {
		if item.Error != "" {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	return resp
}

// ValidateImageURL validates the image URL
func (s *receiptProcessingService) ValidateImageURL(imageURL string) error {
	return s.deps.ImageRepository.ValidateImageURL(imageURL)
}

func (s *receiptProcessingService) notify(ctx context.Context, event observer.PipelineEvent) {
	if s.deps.Events != nil {
		s.deps.Events.NotifyObservers(ctx, event)
	}
}

func fetchError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, repository.ErrInvalidImageURL):
		return apperrors.NewValidationError("invalid image URL", err)
	case errors.Is(err, repository.ErrRepositoryUnavailable):
		return apperrors.NewValidationError("image source not supported by this deployment", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("Image fetch timeout", err)
	default:
		return apperrors.NewNetworkError("Failed to fetch image", err)
	}
}

// pipelineRun carries the state of one ProcessReceipt call
type pipelineRun struct {
	svc    *receiptProcessingService
	ctx    context.Context
	req    ProcessRequest
	mon    *monitor.PerformanceMonitor
	log    *logrus.Entry
	result *models.ProcessingResult

	fieldConfidences []float64
}

func (r *pipelineRun) warn(msg string) {
	r.result.Warnings = append(r.result.Warnings, msg)
}

// stageFailed ends the open step as failed and reports it
func (r *pipelineRun) stageFailed(step, msg string) {
	r.mon.EndStep(false, monitor.WithError(msg))
	r.log.WithFields(logrus.Fields{"step": step, "error": msg}).Warn("Pipeline stage failed")
	r.svc.notify(r.ctx, observer.PipelineEvent{
		EventType:    observer.StageFailed,
		SessionID:    r.mon.SessionID(),
		Source:       r.req.Source,
		ErrorMessage: msg,
		Metadata:     logrus.Fields{"step": step},
	})
}

func (r *pipelineRun) preprocess() {
	r.mon.StartStep(monitor.StepPreprocessing)
	outcome := r.svc.deps.Analyzer.Analyze(r.req.Data, r.req.MimeType)
	r.result.QualityResult = outcome.Result

	quality := float64(outcome.Result.Score) / 100
	r.mon.SetImageQuality(quality)
	if !outcome.OK() {
		r.stageFailed(monitor.StepPreprocessing, outcome.Failure.Error())
		return
	}
	r.mon.EndStep(true, monitor.WithConfidence(quality))
}

func (r *pipelineRun) recognize() *ocr.Recognition {
	adapter := r.svc.deps.Adapter
	if adapter == nil {
		r.warn("Text recognition is not configured")
		return nil
	}

	gate := r.svc.opts.QualityGateMinScore
	if !r.result.QualityResult.Acceptable(gate) && !r.req.ForceOCR {
		r.result.OCR = &models.OCRSummary{Provider: adapter.Provider(), Skipped: true}
		r.warn("Image quality is too low for text recognition; please retake the photo")
		r.svc.notify(r.ctx, observer.PipelineEvent{
			EventType: observer.QualityGateRejected,
			SessionID: r.mon.SessionID(),
			Source:    r.req.Source,
			Metadata:  logrus.Fields{"quality_score": r.result.QualityResult.Score, "min_score": gate},
		})
		return nil
	}

	r.mon.StartStep(monitor.StepVisionAPI)
	rec, err := adapter.Recognize(r.ctx, r.req.Data, r.req.MimeType)
	if err != nil {
		class := ocr.ClassifyError(err)
		var re *extraction.RecognitionError
		if errors.As(err, &re) {
			class = re.Class
		}
		r.result.OCR = &models.OCRSummary{
			Provider:   adapter.Provider(),
			Error:      err.Error(),
			ErrorClass: string(class),
		}
		r.stageFailed(monitor.StepVisionAPI, string(class))
		return nil
	}

	r.result.OCR = &models.OCRSummary{
		Provider:       rec.Provider,
		Text:           rec.Text,
		TokenCount:     len(rec.Tokens),
		MeanConfidence: rec.MeanConfidence(),
		Geometry:       rec.HasGeometry(),
	}
	r.mon.EndStep(true, monitor.WithConfidence(rec.MeanConfidence()))
	if !rec.HasGeometry() {
		r.warn("No word positions were returned; field confidence is reduced")
	}
	return rec
}

func (r *pipelineRun) extract(rec *ocr.Recognition, profile extraction.Profile) (fields extraction.Fields) {
	fields = extraction.Fields{LineItems: []extraction.LineItem{}}
	if rec == nil {
		return fields
	}

	r.mon.StartStep(monitor.StepSpatialExtraction)
	defer func() {
		if p := recover(); p != nil {
			fields = extraction.Fields{LineItems: []extraction.LineItem{}}
			r.result.ExtractedFields = models.ExtractedFields{LineItems: []models.LineItemReport{}}
			r.fieldConfidences = nil
			r.stageFailed(monitor.StepSpatialExtraction, fmt.Sprintf("extraction panicked: %v", p))
		}
	}()

	fields = extraction.ExtractFields(rec, profile)
	r.score(fields)
	// Confidences reach the session only once every field is scored
	for _, c := range r.fieldConfidences {
		r.mon.RecordConfidence(c)
	}
	r.mon.EndStep(true, monitor.WithConfidence(mean(r.fieldConfidences)))
	return fields
}

// score attaches confidences to every extracted field
func (r *pipelineRun) score(fields extraction.Fields) {
	out := &r.result.ExtractedFields
	out.Vendor = r.report(confidence.FieldVendor, fields.Vendor)
	out.Date = r.report(confidence.FieldDate, fields.Date)
	out.Subtotal = r.report(confidence.FieldSubtotal, fields.Subtotal)
	out.Tax = r.report(confidence.FieldTax, fields.Tax)
	out.Total = r.report(confidence.FieldTotal, fields.Total)

	for _, item := range fields.LineItems {
		c := r.svc.deps.Scorer.Score(confidence.FieldLineItem, item.OCRConfidence, item.Certainty)
		r.record(c)
		out.LineItems = append(out.LineItems, models.LineItemReport{
			Description: item.Description,
			Quantity:    item.Quantity,
			Amount:      item.Amount.StringFixed(2),
			Confidence:  c,
			Tier:        confidence.Classify(c),
		})
	}

	if cons := fields.Consistency; cons != nil && out.Total != nil {
		if cons.Matches {
			out.Total.Notes = append(out.Total.Notes, "Subtotal plus tax matches the total")
		} else {
			out.Total.Notes = append(out.Total.Notes, fmt.Sprintf(
				"Subtotal plus tax is %s but the total reads %s",
				cons.Expected.StringFixed(2), cons.Actual.StringFixed(2),
			))
		}
	}
}

func (r *pipelineRun) report(field confidence.Field, f *extraction.Field) *models.FieldReport {
	if f == nil {
		return nil
	}
	c := r.svc.deps.Scorer.Score(field, f.OCRConfidence, f.Certainty)
	r.record(c)
	return &models.FieldReport{Value: f.Value, Confidence: c, Tier: confidence.Classify(c)}
}

func (r *pipelineRun) record(c float64) {
	r.fieldConfidences = append(r.fieldConfidences, c)
}

// validate annotates every reported field. Vendor, date and total are always
// validated so missing values surface as required-field errors.
func (r *pipelineRun) validate(fields extraction.Fields) {
	r.mon.StartStep(monitor.StepValidation)
	defer func() {
		if p := recover(); p != nil {
			r.stageFailed(monitor.StepValidation, fmt.Sprintf("validation panicked: %v", p))
		}
	}()

	v := r.svc.deps.Validator
	out := &r.result.ExtractedFields
	set := func(name string, rep *models.FieldReport, res validation.ValidationResult) {
		r.result.Validation[name] = res
		if rep != nil {
			rep.Validation = res
		}
	}

	set("vendor", out.Vendor, v.ValidateVendor(valueOf(out.Vendor), confidenceOf(out.Vendor)))
	set("date", out.Date, v.ValidateDate(valueOf(out.Date), confidenceOf(out.Date)))
	set("total", out.Total, v.ValidateAmount(valueOf(out.Total), confidenceOf(out.Total)))
	if out.Subtotal != nil {
		set("subtotal", out.Subtotal, v.ValidateAmount(out.Subtotal.Value, confidenceOf(out.Subtotal)))
	}
	if out.Tax != nil {
		set("tax", out.Tax, v.ValidateAmount(out.Tax.Value, confidenceOf(out.Tax)))
	}
	for i := range out.LineItems {
		out.LineItems[i].Validation = v.ValidateDescription(out.LineItems[i].Description)
	}

	r.mon.EndStep(true)
}

func (r *pipelineRun) measureAccuracy(rec *ocr.Recognition) {
	if rec == nil || r.req.ExpectedText == "" {
		return
	}
	if acc, ok := ocr.MeasureAccuracy(r.req.ExpectedText, rec.Text); ok {
		r.result.OCR.Accuracy = &acc
	}
}

// overallConfidence is the mean field confidence, zero when nothing was extracted
func (r *pipelineRun) overallConfidence() float64 {
	return mean(r.fieldConfidences)
}

func valueOf(f *models.FieldReport) string {
	if f == nil {
		return ""
	}
	return f.Value
}

func confidenceOf(f *models.FieldReport) *float64 {
	if f == nil {
		return nil
	}
	c := f.Confidence
	return &c
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
