package sandbox

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// processGone reports whether pid has exited. Zombies waiting for a reaper count as gone.
func processGone(pid int) bool {
	stat, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return os.IsNotExist(err)
	}
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	return len(fields) > 0 && (fields[0] == "Z" || fields[0] == "X")
}

func backgroundPID(t *testing.T, res ExecuteResult) int {
	t.Helper()
	pid, err := strconv.Atoi(strings.TrimSpace(string(res.Stdout)))
	require.NoError(t, err, "stdout: %q", res.Stdout)
	return pid
}

func TestHostSandbox_TimeoutKillsBackgroundChildren(t *testing.T) {
	sb, err := NewHostSandbox(enabledConfig())
	require.NoError(t, err)

	res, err := sb.Execute(context.Background(), ExecuteRequest{
		Command: "sh",
		Args:    []string{"-c", "sleep 30 & echo $!; wait"},
		Timeout: 200 * time.Millisecond,
	})
	require.ErrorIs(t, err, ErrExecutionTimeout)

	pid := backgroundPID(t, res)
	assert.Eventually(t, func() bool { return processGone(pid) }, 2*time.Second, 20*time.Millisecond)
}

func TestHostSandbox_ExitKillsLeftoverChildren(t *testing.T) {
	sb, err := NewHostSandbox(enabledConfig())
	require.NoError(t, err)

	res, err := sb.Execute(context.Background(), ExecuteRequest{
		Command: "sh",
		Args:    []string{"-c", "sleep 30 & echo $!"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)

	pid := backgroundPID(t, res)
	assert.Eventually(t, func() bool { return processGone(pid) }, 2*time.Second, 20*time.Millisecond)
}

func TestHostSandbox_AppliesResourceLimits(t *testing.T) {
	if _, err := exec.LookPath("prlimit"); err != nil {
		t.Skip("prlimit not installed")
	}
	cfg := enabledConfig()
	cfg.ResourceLimits = ResourceLimits{MaxMemoryMB: 256, MaxCPUSeconds: 7}
	sb, err := NewHostSandbox(cfg)
	require.NoError(t, err)

	res, err := sb.Execute(context.Background(), ExecuteRequest{
		Command: "sh",
		Args:    []string{"-c", "cat /proc/self/limits"},
	})
	require.NoError(t, err)
	out := string(res.Stdout)
	assert.Regexp(t, `Max cpu time\s+7\s+7\s+seconds`, out)
	assert.Regexp(t, `Max address space\s+268435456\s+268435456\s+bytes`, out)
}

func TestNewHostSandbox_LimitsNeedPrlimit(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	cfg := enabledConfig()
	cfg.ResourceLimits = ResourceLimits{MaxCPUSeconds: 1}

	_, err := NewHostSandbox(cfg)
	assert.ErrorIs(t, err, ErrLimitsUnavailable)
}
