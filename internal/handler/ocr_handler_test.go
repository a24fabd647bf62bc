package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/essay-evaluator-api/internal/config"
	"github.com/noah-isme/essay-evaluator-api/internal/dto"
	"github.com/noah-isme/essay-evaluator-api/internal/handler"
	"github.com/noah-isme/essay-evaluator-api/internal/router"
	"github.com/noah-isme/essay-evaluator-api/internal/service"
)

type stubOCRService struct {
	status    dto.OCRStatusResponse
	result    dto.OCRExtractResponse
	err       error
	fileCount int
}

func (s *stubOCRService) Status(context.Context) dto.OCRStatusResponse {
	return s.status
}

func (s *stubOCRService) ExtractText(context.Context, []byte) (string, error) {
	return s.result.Text, s.err
}

func (s *stubOCRService) ExtractPages(context.Context, [][]byte) dto.OCRExtractResponse {
	return s.result
}

func (s *stubOCRService) ExtractUploads(_ context.Context, files []*multipart.FileHeader) (dto.OCRExtractResponse, error) {
	s.fileCount = len(files)
	if s.err != nil {
		return dto.OCRExtractResponse{}, s.err
	}
	return s.result, nil
}

func setupOCRApp(svc service.OCRService) *fiber.App {
	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		OCRHandler: handler.NewOCRHandler(svc, zerolog.New(io.Discard)),
	})
	return app
}

func multipartImages(t *testing.T, count int) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for i := 0; i < count; i++ {
		part, err := writer.CreateFormFile("images", "page.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG\r\n\x1a\n"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestOCRHandlerStatus(t *testing.T) {
	app := setupOCRApp(&stubOCRService{status: dto.OCRStatusResponse{TesseractAvailable: true, Available: true}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/ocr/status", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Data dto.OCRStatusResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.True(t, payload.Data.Available)
	require.False(t, payload.Data.DockerTesseractAvailable)
}

func TestOCRHandlerExtract(t *testing.T) {
	svc := &stubOCRService{result: dto.OCRExtractResponse{
		Text: "--- Page 1 ---\nHello world\n\n--- Page 2 ---\n[No text detected]",
		Pages: []dto.OCRPageResult{
			{Page: 1, Engine: "tesseract", Text: "Hello world", WordCount: 2, CharCount: 11},
			{Page: 2, Engine: "tesseract", NoTextSeen: true},
		},
		TotalWords: 2,
		TotalChars: 11,
	}}
	app := setupOCRApp(svc)

	body, contentType := multipartImages(t, 2)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ocr/extract", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 2, svc.fileCount)

	var payload struct {
		Data dto.OCRExtractResponse `json:"data"`
		Meta map[string]int         `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Contains(t, payload.Data.Text, "[No text detected]")
	require.Equal(t, 2, payload.Meta["pages"])
	require.Equal(t, 2, payload.Meta["total_words"])
	require.Equal(t, 11, payload.Meta["total_chars"])
}

func TestOCRHandlerMapsErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{err: service.ErrOCRNoImages, status: fiber.StatusBadRequest, code: "images_required"},
		{err: service.ErrOCRTooManyPages, status: fiber.StatusBadRequest, code: "too_many_pages"},
		{err: service.ErrOCRUploadTooLarge, status: fiber.StatusRequestEntityTooLarge, code: "image_too_large"},
		{err: service.ErrOCRTypeNotAllowed, status: fiber.StatusUnsupportedMediaType, code: "unsupported_image"},
		{err: service.ErrOCRUnavailable, status: fiber.StatusServiceUnavailable, code: "ocr_unavailable"},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			app := setupOCRApp(&stubOCRService{err: tc.err})

			body, contentType := multipartImages(t, 1)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ocr/extract", body)
			req.Header.Set("Content-Type", contentType)

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			var payload struct {
				Code string `json:"code"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
			require.Equal(t, tc.code, payload.Code)
		})
	}
}

func TestOCRHandlerRejectsNonMultipart(t *testing.T) {
	app := setupOCRApp(&stubOCRService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ocr/extract", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
