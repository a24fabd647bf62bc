package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/essay-evaluator-api/internal/service"
	"github.com/noah-isme/essay-evaluator-api/internal/utils"
)

// OCRHandler turns uploaded essay photos into editable text.
type OCRHandler struct {
	service service.OCRService
	logger  zerolog.Logger
}

// NewOCRHandler constructs an OCR handler.
func NewOCRHandler(service service.OCRService, logger zerolog.Logger) *OCRHandler {
	return &OCRHandler{
		service: service,
		logger:  logger.With().Str("component", "ocr_handler").Logger(),
	}
}

// Register wires OCR routes.
func (h *OCRHandler) Register(router fiber.Router) {
	router.Get("/status", h.status)
	router.Post("/extract", h.extract)
}

func (h *OCRHandler) status(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "ocr status", h.service.Status(c.UserContext()))
}

func (h *OCRHandler) extract(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "images_required", "multipart form with images is required")
	}

	result, err := h.service.ExtractUploads(c.UserContext(), form.File["images"])
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOCRNoImages):
			return utils.SendErrorCode(c, fiber.StatusBadRequest, "images_required", err.Error())
		case errors.Is(err, service.ErrOCRTooManyPages):
			return utils.SendErrorCode(c, fiber.StatusBadRequest, "too_many_pages", err.Error())
		case errors.Is(err, service.ErrOCRUploadTooLarge):
			return utils.SendErrorCode(c, fiber.StatusRequestEntityTooLarge, "image_too_large", err.Error())
		case errors.Is(err, service.ErrOCRTypeNotAllowed):
			return utils.SendErrorCode(c, fiber.StatusUnsupportedMediaType, "unsupported_image", err.Error())
		case errors.Is(err, service.ErrOCRUnavailable):
			return utils.SendErrorCode(c, fiber.StatusServiceUnavailable, "ocr_unavailable", "no OCR engine is available, install tesseract or enable docker")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("ocr extraction failed")
			return utils.SendErrorCode(c, fiber.StatusInternalServerError, "internal_error", "ocr extraction failed")
		}
	}

	return utils.OK(c, result, "text extracted, please review before evaluating", map[string]int{
		"pages":       len(result.Pages),
		"total_words": result.TotalWords,
		"total_chars": result.TotalChars,
	})
}
