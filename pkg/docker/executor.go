package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	execDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "essay",
		Subsystem: "executor",
		Name:      "run_duration_seconds",
		Help:      "Duration of one-shot container runs",
		Buckets:   prometheus.DefBuckets,
	}, []string{"image"})

	execTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "essay",
		Subsystem: "executor",
		Name:      "run_timeouts_total",
		Help:      "Number of container runs that hit the timeout",
	}, []string{"image"})

	execFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "essay",
		Subsystem: "executor",
		Name:      "run_failures_total",
		Help:      "Number of container runs that resulted in an error",
	}, []string{"image"})
)

// Executor runs a one-shot command inside an isolated container.
type Executor interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
	Ping(ctx context.Context) error
}

// RunRequest describes a single container invocation over a mounted workspace.
type RunRequest struct {
	Image      string
	Entrypoint []string
	Cmd        []string
	Timeout    time.Duration
	// Workspace is a host directory bind-mounted read-only at Config.WorkingDir.
	Workspace     string
	MemoryLimitMB int64
}

// RunResult captures the output of a container run.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// Config groups executor configuration values.
type Config struct {
	Host          string
	Timeout       time.Duration
	MemoryLimitMB int64
	WorkingDir    string
	Logger        zerolog.Logger
}

// DockerExecutor implements Executor with the Docker Engine API.
type DockerExecutor struct {
	client *client.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewDockerExecutor constructs a Docker backed executor. It does not contact the daemon.
func NewDockerExecutor(cfg Config) (*DockerExecutor, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	} else {
		opts = append(opts, client.FromEnv)
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.WorkingDir == "" {
		cfg.WorkingDir = "/workspace"
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &DockerExecutor{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/essay-evaluator-api/pkg/docker"),
		logger: logger.With().Str("component", "docker_executor").Logger(),
	}, nil
}

// WorkingDir is where the workspace is mounted inside the container.
func (e *DockerExecutor) WorkingDir() string {
	return e.cfg.WorkingDir
}

// Ping checks that the daemon is reachable.
func (e *DockerExecutor) Ping(ctx context.Context) error {
	if _, err := e.client.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping: %w", err)
	}
	return nil
}

// Run creates, starts and waits for a network-less container, then removes it.
func (e *DockerExecutor) Run(parent context.Context, req RunRequest) (RunResult, error) {
	image := req.Image
	if image == "" {
		return RunResult{}, errors.New("image is required")
	}

	ctx, span := e.tracer.Start(parent, "docker.executor.run", trace.WithAttributes(
		attribute.String("docker.image", image),
	))
	defer span.End()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	memoryMB := req.MemoryLimitMB
	if memoryMB == 0 {
		memoryMB = e.cfg.MemoryLimitMB
	}

	hostCfg := &container.HostConfig{
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		Resources: container.Resources{
			Memory: memoryMB * 1024 * 1024,
		},
	}
	if req.Workspace != "" {
		hostCfg.Mounts = append(hostCfg.Mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   req.Workspace,
			Target:   e.cfg.WorkingDir,
			ReadOnly: true,
		})
	}

	config := &container.Config{
		Image:           image,
		Entrypoint:      req.Entrypoint,
		Cmd:             req.Cmd,
		WorkingDir:      e.cfg.WorkingDir,
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: true,
	}

	start := time.Now()
	result := RunResult{}

	resp, err := e.client.ContainerCreate(ctx, config, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		e.recordFailure(span, image, err)
		return result, fmt.Errorf("container create: %w", err)
	}

	containerID := resp.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
		}
	}()

	if err := e.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		e.recordFailure(span, image, err)
		return result, fmt.Errorf("container start: %w", err)
	}

	statusCh, errCh := e.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)

	var waitErr error
	select {
	case err := <-errCh:
		waitErr = err
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	result.Duration = time.Since(start)
	execDuration.WithLabelValues(image).Observe(result.Duration.Seconds())

	if waitErr != nil {
		if errors.Is(waitErr, context.DeadlineExceeded) {
			result.TimedOut = true
			execTimeouts.WithLabelValues(image).Inc()
			span.RecordError(waitErr)
			span.SetStatus(codes.Error, "run timed out")
			return result, fmt.Errorf("container run timed out after %s", timeout)
		}
		e.recordFailure(span, image, waitErr)
		return result, fmt.Errorf("container wait: %w", waitErr)
	}

	logReader, err := e.client.ContainerLogs(parent, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		e.recordFailure(span, image, err)
		return result, fmt.Errorf("container logs: %w", err)
	}
	defer logReader.Close()

	stdout, stderr, err := splitDockerLogs(logReader)
	if err != nil {
		e.recordFailure(span, image, err)
		return result, fmt.Errorf("read container logs: %w", err)
	}
	result.Stdout = stdout
	result.Stderr = stderr

	return result, nil
}

func (e *DockerExecutor) recordFailure(span trace.Span, image string, err error) {
	execFailures.WithLabelValues(image).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func splitDockerLogs(reader io.Reader) (string, string, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, reader); err != nil {
		return "", "", err
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

// Close shuts down the executor's underlying client.
func (e *DockerExecutor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}
