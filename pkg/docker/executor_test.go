package docker

import (
	"bytes"
	"testing"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/require"
)

func TestSplitDockerLogsSeparatesStreams(t *testing.T) {
	var muxed bytes.Buffer
	_, err := stdcopy.NewStdWriter(&muxed, stdcopy.Stdout).Write([]byte("level\tpage_num\n"))
	require.NoError(t, err)
	_, err = stdcopy.NewStdWriter(&muxed, stdcopy.Stderr).Write([]byte("Estimating resolution as 300\n"))
	require.NoError(t, err)

	stdout, stderr, err := splitDockerLogs(&muxed)
	require.NoError(t, err)
	require.Equal(t, "level\tpage_num\n", stdout)
	require.Equal(t, "Estimating resolution as 300\n", stderr)
}

func TestNewDockerExecutorDefaults(t *testing.T) {
	executor, err := NewDockerExecutor(Config{Host: "unix:///var/run/docker.sock"})
	require.NoError(t, err)
	defer executor.Close()

	require.Equal(t, "/workspace", executor.WorkingDir())
}
