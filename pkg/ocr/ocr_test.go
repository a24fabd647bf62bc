package ocr

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	dockerexec "github.com/noah-isme/essay-evaluator-api/pkg/docker"
)

const tsvHeader = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"

func tsvRow(level, line, word int, conf string, text string) string {
	return strings.Join([]string{
		strconv.Itoa(level), "1", "1", "1", strconv.Itoa(line), strconv.Itoa(word), "0", "0", "10", "10", conf, text,
	}, "\t")
}

func sampleTSV() string {
	return strings.Join([]string{
		tsvHeader,
		tsvRow(4, 1, 0, "-1", ""),
		tsvRow(5, 1, 1, "91.5", "Democracy"),
		tsvRow(5, 1, 2, "12.0", "~~"),
		tsvRow(5, 1, 3, "77", "\"thrives\""),
		tsvRow(5, 2, 1, "65", "on"),
		tsvRow(5, 2, 2, "20", "noise"),
		tsvRow(5, 2, 3, "88", "dissent."),
		"",
	}, "\n")
}

func TestParseTSVFiltersLowConfidenceWords(t *testing.T) {
	text, err := ParseTSV(sampleTSV(), DefaultMinConfidence)

	require.NoError(t, err)
	require.Equal(t, "Democracy \"thrives\"\non dissent.", text)
}

func TestParseTSVRejectsUnknownLayout(t *testing.T) {
	_, err := ParseTSV("a\tb\n1\t2", DefaultMinConfidence)
	require.Error(t, err)

	text, err := ParseTSV("", DefaultMinConfidence)
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestRankCandidatesPrefersLongestCleanedText(t *testing.T) {
	best, ok := RankCandidates([]Candidate{
		{Source: "a", Text: "short"},
		{Source: "b", Text: "  a   much   longer\n\n line  "},
		{Source: "c", Text: "a much longer\nline"},
	})

	require.True(t, ok)
	require.Equal(t, "b", best.Source)
	require.Equal(t, "a much longer\nline", best.Text)

	_, ok = RankCandidates([]Candidate{{Source: "a", Text: "  \n "}})
	require.False(t, ok)
}

func TestCleanTextCollapsesWhitespace(t *testing.T) {
	require.Equal(t, "one two\nthree", CleanText(" one\t two \n\n   \nthree  "))
	require.Equal(t, "", CleanText(""))
}

func TestTesseractEngineKeepsBestPageSegmentation(t *testing.T) {
	engine := NewTesseractEngine(TesseractConfig{Logger: zerolog.Nop()})
	engine.lookPath = func(string) (string, error) { return "/usr/bin/tesseract", nil }

	var modes []string
	engine.run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		require.Equal(t, "/usr/bin/tesseract", binary)
		psm := args[3]
		modes = append(modes, psm)
		switch psm {
		case "6":
			return []byte(tsvHeader + "\n" + tsvRow(5, 1, 1, "90", "short")), nil
		case "4":
			return nil, errors.New("segfault")
		default:
			return []byte(sampleTSV()), nil
		}
	}

	text, err := engine.Extract(context.Background(), []byte("png"))

	require.NoError(t, err)
	require.Equal(t, []string{"6", "4", "3"}, modes)
	require.Equal(t, "Democracy \"thrives\"\non dissent.", text)
}

func TestTesseractEngineUnavailableWithoutBinary(t *testing.T) {
	engine := NewTesseractEngine(TesseractConfig{Logger: zerolog.Nop()})
	engine.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	require.False(t, engine.Available(context.Background()))
	_, err := engine.Extract(context.Background(), []byte("png"))
	require.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestTesseractEngineReportsFailureWhenEveryRunFails(t *testing.T) {
	engine := NewTesseractEngine(TesseractConfig{Logger: zerolog.Nop(), PageSegModes: []string{"6"}})
	engine.lookPath = func(string) (string, error) { return "tesseract", nil }
	engine.run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		return nil, errors.New("cannot read image")
	}

	_, err := engine.Extract(context.Background(), []byte("png"))

	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot read image")
}

type stubExecutor struct {
	requests []dockerexec.RunRequest
	result   dockerexec.RunResult
	err      error
	pingErr  error
}

func (s *stubExecutor) Run(ctx context.Context, req dockerexec.RunRequest) (dockerexec.RunResult, error) {
	s.requests = append(s.requests, req)
	return s.result, s.err
}

func (s *stubExecutor) Ping(ctx context.Context) error {
	return s.pingErr
}

func TestDockerEngineRunsTesseractInContainer(t *testing.T) {
	executor := &stubExecutor{result: dockerexec.RunResult{Stdout: sampleTSV()}}
	engine := NewDockerEngine(executor, DockerConfig{PageSegModes: []string{"6"}, Logger: zerolog.Nop()})

	text, err := engine.Extract(context.Background(), []byte("png"))

	require.NoError(t, err)
	require.Equal(t, "Democracy \"thrives\"\non dissent.", text)
	require.Len(t, executor.requests, 1)
	req := executor.requests[0]
	require.Equal(t, DefaultTesseractImage, req.Image)
	require.Equal(t, []string{"tesseract"}, req.Entrypoint)
	require.Equal(t, []string{"/workspace/page", "stdout", "--psm", "6", "tsv"}, req.Cmd)
	require.NotEmpty(t, req.Workspace)
	require.NoDirExists(t, req.Workspace)
}

func TestDockerEngineSurfacesNonZeroExit(t *testing.T) {
	executor := &stubExecutor{result: dockerexec.RunResult{ExitCode: 1, Stderr: "Error in pixReadStream"}}
	engine := NewDockerEngine(executor, DockerConfig{PageSegModes: []string{"6"}, Logger: zerolog.Nop()})

	_, err := engine.Extract(context.Background(), []byte("png"))

	require.Error(t, err)
	require.Contains(t, err.Error(), "pixReadStream")
}

func TestDockerEngineAvailabilityFollowsPing(t *testing.T) {
	require.True(t, NewDockerEngine(&stubExecutor{}, DockerConfig{}).Available(context.Background()))
	require.False(t, NewDockerEngine(&stubExecutor{pingErr: errors.New("no daemon")}, DockerConfig{}).Available(context.Background()))
	require.False(t, NewDockerEngine(nil, DockerConfig{}).Available(context.Background()))
}
