package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TesseractConfig configures the local tesseract binary engine.
type TesseractConfig struct {
	// Path is the tesseract binary; empty means look it up on PATH.
	Path          string
	PageSegModes  []string
	MinConfidence float64
	Timeout       time.Duration
	Logger        zerolog.Logger
}

// TesseractEngine runs a locally installed tesseract binary.
type TesseractEngine struct {
	cfg      TesseractConfig
	logger   zerolog.Logger
	lookPath func(file string) (string, error)
	run      func(ctx context.Context, binary string, args ...string) ([]byte, error)
}

// NewTesseractEngine builds the local engine.
func NewTesseractEngine(cfg TesseractConfig) *TesseractEngine {
	if cfg.Path == "" {
		cfg.Path = "tesseract"
	}
	if len(cfg.PageSegModes) == 0 {
		cfg.PageSegModes = DefaultPageSegModes
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	return &TesseractEngine{
		cfg:      cfg,
		logger:   cfg.Logger.With().Str("component", "ocr_tesseract").Logger(),
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

func (e *TesseractEngine) Name() string {
	return "tesseract"
}

// Available reports whether the binary exists and answers --version.
func (e *TesseractEngine) Available(ctx context.Context) bool {
	binary, err := e.lookPath(e.cfg.Path)
	if err != nil {
		return false
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = e.run(checkCtx, binary, "--version")
	return err == nil
}

// Extract tries every page segmentation mode and keeps the longest result.
func (e *TesseractEngine) Extract(ctx context.Context, image []byte) (string, error) {
	binary, err := e.lookPath(e.cfg.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	workspace, err := os.MkdirTemp("", "essay-ocr-")
	if err != nil {
		return "", fmt.Errorf("create ocr workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	imagePath := filepath.Join(workspace, "page")
	if err := os.WriteFile(imagePath, image, 0o600); err != nil {
		return "", fmt.Errorf("write ocr image: %w", err)
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	candidates := make([]Candidate, 0, len(e.cfg.PageSegModes))
	var lastErr error
	for _, psm := range e.cfg.PageSegModes {
		out, err := e.run(ctx, binary, imagePath, "stdout", "--psm", psm, "tsv")
		if err != nil {
			lastErr = err
			e.logger.Debug().Err(err).Str("psm", psm).Msg("tesseract run failed")
			continue
		}
		text, err := ParseTSV(string(out), e.cfg.MinConfidence)
		if err != nil {
			lastErr = err
			continue
		}
		candidates = append(candidates, Candidate{Source: "psm " + psm, Text: text})
	}

	best, _ := RankCandidates(candidates)
	if len(candidates) == 0 && lastErr != nil {
		return "", fmt.Errorf("tesseract: %w", lastErr)
	}
	return best.Text, nil
}

func runCommand(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(binary), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
