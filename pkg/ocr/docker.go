package ocr

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	dockerexec "github.com/noah-isme/essay-evaluator-api/pkg/docker"
)

// DefaultTesseractImage ships tesseract with the English language pack.
const DefaultTesseractImage = "jitesoft/tesseract-ocr:latest"

// DockerConfig configures the containerised tesseract engine.
type DockerConfig struct {
	Image         string
	WorkingDir    string
	PageSegModes  []string
	MinConfidence float64
	Timeout       time.Duration
	MemoryLimitMB int64
	// WorkspaceRoot must be visible to the docker daemon; defaults to os.TempDir().
	WorkspaceRoot string
	Logger        zerolog.Logger
}

// DockerEngine runs tesseract in a throwaway container so the API host needs no OCR install.
type DockerEngine struct {
	executor dockerexec.Executor
	cfg      DockerConfig
	logger   zerolog.Logger
}

// NewDockerEngine builds the containerised engine on top of an executor.
func NewDockerEngine(executor dockerexec.Executor, cfg DockerConfig) *DockerEngine {
	if cfg.Image == "" {
		cfg.Image = DefaultTesseractImage
	}
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = "/workspace"
	}
	if len(cfg.PageSegModes) == 0 {
		cfg.PageSegModes = DefaultPageSegModes
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	if cfg.MemoryLimitMB == 0 {
		cfg.MemoryLimitMB = 512
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}
	return &DockerEngine{
		executor: executor,
		cfg:      cfg,
		logger:   cfg.Logger.With().Str("component", "ocr_docker").Logger(),
	}
}

func (e *DockerEngine) Name() string {
	return "tesseract_docker"
}

// Available reports whether the docker daemon answers.
func (e *DockerEngine) Available(ctx context.Context) bool {
	if e.executor == nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return e.executor.Ping(pingCtx) == nil
}

// Extract runs one container per page segmentation mode and keeps the longest result.
func (e *DockerEngine) Extract(ctx context.Context, image []byte) (string, error) {
	if e.executor == nil {
		return "", ErrEngineUnavailable
	}

	workspace, err := os.MkdirTemp(e.cfg.WorkspaceRoot, "essay-ocr-")
	if err != nil {
		return "", fmt.Errorf("create ocr workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	if err := os.WriteFile(filepath.Join(workspace, "page"), image, 0o644); err != nil {
		return "", fmt.Errorf("write ocr image: %w", err)
	}
	containerPath := path.Join(e.cfg.WorkingDir, "page")

	candidates := make([]Candidate, 0, len(e.cfg.PageSegModes))
	var lastErr error
	for _, psm := range e.cfg.PageSegModes {
		result, err := e.executor.Run(ctx, dockerexec.RunRequest{
			Image:         e.cfg.Image,
			Entrypoint:    []string{"tesseract"},
			Cmd:           []string{containerPath, "stdout", "--psm", psm, "tsv"},
			Timeout:       e.cfg.Timeout,
			Workspace:     workspace,
			MemoryLimitMB: e.cfg.MemoryLimitMB,
		})
		if err == nil && result.ExitCode != 0 {
			err = fmt.Errorf("tesseract exited with code %d: %s", result.ExitCode, result.Stderr)
		}
		if err != nil {
			lastErr = err
			e.logger.Debug().Err(err).Str("psm", psm).Msg("containerised tesseract run failed")
			continue
		}

		text, err := ParseTSV(result.Stdout, e.cfg.MinConfidence)
		if err != nil {
			lastErr = err
			continue
		}
		candidates = append(candidates, Candidate{Source: "psm " + psm, Text: text})
	}

	best, _ := RankCandidates(candidates)
	if len(candidates) == 0 && lastErr != nil {
		return "", fmt.Errorf("tesseract docker: %w", lastErr)
	}
	return best.Text, nil
}
