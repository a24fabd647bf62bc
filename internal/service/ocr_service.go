package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/essay-evaluator-api/internal/dto"
	"github.com/noah-isme/essay-evaluator-api/internal/observability"
	"github.com/noah-isme/essay-evaluator-api/pkg/ocr"
)

var (
	// ErrOCRNoImages indicates the request carried no pages.
	ErrOCRNoImages = errors.New("at least one image is required")
	// ErrOCRTooManyPages indicates more pages than the configured limit.
	ErrOCRTooManyPages = errors.New("too many pages")
	// ErrOCRUploadTooLarge indicates a page exceeded the configured limit.
	ErrOCRUploadTooLarge = errors.New("image exceeds maximum allowed size")
	// ErrOCRTypeNotAllowed indicates a page is not an image.
	ErrOCRTypeNotAllowed = errors.New("only image uploads are supported")
	// ErrOCRUnavailable indicates no engine can run on this host.
	ErrOCRUnavailable = errors.New("no ocr engine available")
)

const (
	noTextDetected = "[No text detected]"
	pageSeparator  = "\n\n"
)

// OCRConfig bounds what a single extraction request may carry.
type OCRConfig struct {
	MaxUploadMB int
	MaxPages    int
}

// OCRService turns photographed essay pages into text.
type OCRService interface {
	Status(ctx context.Context) dto.OCRStatusResponse
	ExtractText(ctx context.Context, image []byte) (string, error)
	ExtractPages(ctx context.Context, images [][]byte) dto.OCRExtractResponse
	ExtractUploads(ctx context.Context, files []*multipart.FileHeader) (dto.OCRExtractResponse, error)
}

type ocrService struct {
	engines  []ocr.Engine
	maxSize  int64
	maxPages int
	policy   *bluemonday.Policy
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewOCRService tries engines in the given order for every page.
func NewOCRService(engines []ocr.Engine, cfg OCRConfig, logger zerolog.Logger) OCRService {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 10
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	active := make([]ocr.Engine, 0, len(engines))
	for _, engine := range engines {
		if engine != nil {
			active = append(active, engine)
		}
	}
	return &ocrService{
		engines:  active,
		maxSize:  int64(cfg.MaxUploadMB) * 1024 * 1024,
		maxPages: cfg.MaxPages,
		policy:   bluemonday.StrictPolicy(),
		logger:   logger.With().Str("component", "ocr_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/essay-evaluator-api/internal/service/ocr"),
	}
}

func (s *ocrService) Status(ctx context.Context) dto.OCRStatusResponse {
	var status dto.OCRStatusResponse
	for _, engine := range s.engines {
		available := engine.Available(ctx)
		switch engine.Name() {
		case "tesseract":
			status.TesseractAvailable = available
		case "tesseract_docker":
			status.DockerTesseractAvailable = available
		}
		status.Available = status.Available || available
	}
	return status
}

func (s *ocrService) ExtractText(ctx context.Context, image []byte) (string, error) {
	text, _, err := s.extract(ctx, image)
	return text, err
}

func (s *ocrService) extract(ctx context.Context, image []byte) (string, string, error) {
	ctx, span := s.tracer.Start(ctx, "ocr.extract", trace.WithAttributes(attribute.Int("ocr.image_bytes", len(image))))
	defer span.End()

	var (
		lastErr   error
		attempted bool
	)
	for _, engine := range s.engines {
		if !engine.Available(ctx) {
			continue
		}
		attempted = true

		start := time.Now()
		text, err := engine.Extract(ctx, image)
		observability.OCRLatency().WithLabelValues(engine.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			lastErr = err
			s.logger.Warn().Err(err).Str("engine", engine.Name()).Msg("ocr engine failed, trying next")
			continue
		}

		text = s.sanitize(ocr.CleanText(text))
		if text == "" {
			continue
		}
		observability.OCRPages().WithLabelValues(engine.Name()).Inc()
		span.SetAttributes(attribute.String("ocr.engine", engine.Name()))
		span.SetStatus(codes.Ok, "extracted")
		return text, engine.Name(), nil
	}

	switch {
	case !attempted:
		span.SetStatus(codes.Error, "unavailable")
		return "", "", ErrOCRUnavailable
	case lastErr != nil:
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, "extraction failed")
		return "", "", lastErr
	default:
		return "", "", nil
	}
}

// ExtractPages processes pages in order. Failures are reported inline so one
// unreadable page does not lose the others.
func (s *ocrService) ExtractPages(ctx context.Context, images [][]byte) dto.OCRExtractResponse {
	resp := dto.OCRExtractResponse{Pages: make([]dto.OCRPageResult, 0, len(images))}
	sections := make([]string, 0, len(images))

	for i, image := range images {
		page := dto.OCRPageResult{Page: i + 1}
		text, engine, err := s.extract(ctx, image)
		switch {
		case err != nil:
			page.Error = err.Error()
			sections = append(sections, fmt.Sprintf("--- Page %d (Error) ---\nFailed to process: %s", page.Page, err))
		case text == "":
			page.NoTextSeen = true
			sections = append(sections, fmt.Sprintf("--- Page %d ---\n%s", page.Page, noTextDetected))
		default:
			page.Engine = engine
			page.Text = text
			page.WordCount = len(strings.Fields(text))
			page.CharCount = utf8.RuneCountInString(text)
			sections = append(sections, fmt.Sprintf("--- Page %d ---\n%s", page.Page, text))
		}
		resp.TotalWords += page.WordCount
		resp.TotalChars += page.CharCount
		resp.Pages = append(resp.Pages, page)
	}

	resp.Text = strings.Join(sections, pageSeparator)
	return resp
}

func (s *ocrService) ExtractUploads(ctx context.Context, files []*multipart.FileHeader) (dto.OCRExtractResponse, error) {
	if len(files) == 0 {
		return dto.OCRExtractResponse{}, ErrOCRNoImages
	}
	if len(files) > s.maxPages {
		observability.OCRRejected().WithLabelValues("pages").Inc()
		return dto.OCRExtractResponse{}, fmt.Errorf("%w: %d > %d", ErrOCRTooManyPages, len(files), s.maxPages)
	}

	images := make([][]byte, 0, len(files))
	for _, file := range files {
		payload, err := s.readImage(file)
		if err != nil {
			return dto.OCRExtractResponse{}, err
		}
		images = append(images, payload)
	}

	if !s.Status(ctx).Available {
		return dto.OCRExtractResponse{}, ErrOCRUnavailable
	}

	resp := s.ExtractPages(ctx, images)
	s.logger.Info().
		Int("pages", len(resp.Pages)).
		Int("total_words", resp.TotalWords).
		Msg("ocr extraction finished")
	return resp, nil
}

func (s *ocrService) readImage(file *multipart.FileHeader) ([]byte, error) {
	if file == nil {
		return nil, ErrOCRNoImages
	}
	if file.Size > s.maxSize {
		observability.OCRRejected().WithLabelValues("size").Inc()
		return nil, ErrOCRUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(buf.Len()) > s.maxSize {
		observability.OCRRejected().WithLabelValues("size").Inc()
		return nil, ErrOCRUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	if !strings.HasPrefix(detected.String(), "image/") {
		observability.OCRRejected().WithLabelValues("type").Inc()
		return nil, fmt.Errorf("%w: %s", ErrOCRTypeNotAllowed, detected.String())
	}
	return buf.Bytes(), nil
}

// sanitize strips markup from recognised text but keeps literal punctuation.
func (s *ocrService) sanitize(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}
