package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/essay-evaluator-api/internal/config"
	"github.com/noah-isme/essay-evaluator-api/internal/service"
	dockerexec "github.com/noah-isme/essay-evaluator-api/pkg/docker"
	"github.com/noah-isme/essay-evaluator-api/pkg/ocr"
)

var ocrFlags struct {
	docker bool
	stats  bool
}

var ocrCmd = &cobra.Command{
	Use:   "ocr <image>...",
	Short: "Extract essay text from photographed pages, in page order",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runOCR,
}

func init() {
	f := ocrCmd.Flags()
	f.BoolVar(&ocrFlags.docker, "docker", false, "fall back to tesseract in a container when no local binary exists")
	f.BoolVar(&ocrFlags.stats, "stats", false, "print per page word and character counts to stderr")
}

func runOCR(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	engines := []ocr.Engine{ocr.NewTesseractEngine(ocr.TesseractConfig{
		Path:    cfg.OCR.TesseractPath,
		Timeout: cfg.OCR.Timeout,
		Logger:  zerolog.Nop(),
	})}
	if ocrFlags.docker || cfg.OCR.DockerEnabled {
		executor, err := dockerexec.NewDockerExecutor(dockerexec.Config{Host: cfg.DockerHost, Timeout: cfg.OCR.Timeout})
		if err != nil {
			return fmt.Errorf("docker client: %w", err)
		}
		defer executor.Close()
		engines = append(engines, ocr.NewDockerEngine(executor, ocr.DockerConfig{
			Image:      cfg.OCR.DockerImage,
			WorkingDir: executor.WorkingDir(),
			Timeout:    cfg.OCR.Timeout,
		}))
	}

	svc := service.NewOCRService(engines, service.OCRConfig{MaxUploadMB: cfg.OCR.MaxUploadMB, MaxPages: len(args)}, zerolog.Nop())
	if !svc.Status(cmd.Context()).Available {
		return service.ErrOCRUnavailable
	}

	images := make([][]byte, 0, len(args))
	for _, path := range args {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		images = append(images, raw)
	}

	result := svc.ExtractPages(cmd.Context(), images)
	fmt.Fprintln(cmd.OutOrStdout(), result.Text)

	if ocrFlags.stats {
		stderr := cmd.ErrOrStderr()
		for _, page := range result.Pages {
			switch {
			case page.Error != "":
				fmt.Fprintf(stderr, "page %d: failed: %s\n", page.Page, page.Error)
			case page.NoTextSeen:
				fmt.Fprintf(stderr, "page %d: no text detected\n", page.Page)
			default:
				fmt.Fprintf(stderr, "page %d: %d words, %d characters (%s)\n", page.Page, page.WordCount, page.CharCount, page.Engine)
			}
		}
		fmt.Fprintf(stderr, "total: %d words, %d characters\n", result.TotalWords, result.TotalChars)
	}
	return nil
}
