package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// HostSandbox implements sandboxed execution using host-based process isolation
type HostSandbox struct {
	config  Config
	allowed map[string]bool
	// prlimit is the resolved prlimit(1) binary, empty when no limit is configured.
	prlimit string
}

var _ Sandbox = (*HostSandbox)(nil)

// NewHostSandbox creates a new host-based sandbox
func NewHostSandbox(config Config) (*HostSandbox, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	allowed := make(map[string]bool, len(config.AllowedCommands))
	for _, c := range config.AllowedCommands {
		allowed[c] = true
	}
	h := &HostSandbox{config: config, allowed: allowed}

	if config.Enabled && !config.ResourceLimits.isZero() {
		path, err := exec.LookPath("prlimit")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLimitsUnavailable, err)
		}
		h.prlimit = path
	}
	if config.Enabled && len(config.Wrapper) == 0 {
		log.Warn().Msg("Sandbox has no isolation wrapper; programs can read the host filesystem.")
	}
	return h, nil
}

// Config returns the sandbox configuration
func (h *HostSandbox) Config() Config {
	return h.config
}

// Execute runs a command in a fresh temporary directory with a minimal environment
func (h *HostSandbox) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	if !h.config.Enabled {
		return ExecuteResult{}, ErrSandboxDisabled
	}
	if !h.allowed[req.Command] {
		return ExecuteResult{}, fmt.Errorf("%w: %s", ErrCommandNotAllowed, req.Command)
	}

	timeout := h.config.Timeout
	if req.Timeout > 0 && req.Timeout < timeout {
		timeout = req.Timeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	workDir, err := os.MkdirTemp("", "tool-sandbox-*")
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("failed to create sandbox directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	program, err := exec.LookPath(req.Command)
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("failed to find %s: %w", req.Command, err)
	}
	name, args := h.commandLine(program, req.Args)

	cmd := exec.CommandContext(execCtx, name, args...)
	cmd.Dir = workDir
	cmd.Env = h.buildEnvironment(workDir)
	// The child leads its own process group so a timeout kills everything it started.
	setProcessGroup(cmd)
	// Children that inherit our pipes must not keep Wait blocked after a kill.
	cmd.WaitDelay = time.Second

	stdout := &limitedBuffer{limit: h.config.MaxOutputBytes}
	stderr := &limitedBuffer{limit: h.config.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if len(req.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(req.Stdin)
	}

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)
	// Background children may outlive a normal exit; they go with the group.
	killProcessGroup(cmd)
	if errors.Is(runErr, exec.ErrWaitDelay) {
		runErr = nil
	}

	result := ExecuteResult{
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Duration:  duration,
		Truncated: stdout.truncated || stderr.truncated,
	}

	// Check for timeout first
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		result.ExitCode = -1
		return result, ErrExecutionTimeout
	}
	if ctx.Err() != nil {
		result.ExitCode = -1
		return result, ctx.Err()
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return result, fmt.Errorf("failed to run %s: %w", req.Command, runErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	log.Debug().
		Str("command", req.Command).
		Int("exit_code", result.ExitCode).
		Dur("duration", duration).
		Bool("truncated", result.Truncated).
		Msg("Command executed in sandbox")

	return result, nil
}

// commandLine builds the final argv: prlimit with the configured limits, then the wrapper,
// then the program.
func (h *HostSandbox) commandLine(program string, args []string) (string, []string) {
	var argv []string
	if h.prlimit != "" {
		argv = append(argv, h.prlimit)
		limits := h.config.ResourceLimits
		if limits.MaxMemoryMB > 0 {
			argv = append(argv, "--as="+strconv.FormatInt(int64(limits.MaxMemoryMB)<<20, 10))
		}
		if limits.MaxCPUSeconds > 0 {
			argv = append(argv, "--cpu="+strconv.Itoa(limits.MaxCPUSeconds))
		}
		if limits.MaxProcesses > 0 {
			argv = append(argv, "--nproc="+strconv.Itoa(limits.MaxProcesses))
		}
		argv = append(argv, "--")
	}
	argv = append(argv, h.config.Wrapper...)
	argv = append(argv, program)
	argv = append(argv, args...)
	return argv[0], argv[1:]
}

// buildEnvironment builds the child environment from configuration only; nothing is inherited
// from the gateway process, so provider credentials never reach model-supplied code.
func (h *HostSandbox) buildEnvironment(workDir string) []string {
	keys := make([]string, 0, len(h.config.Env))
	for k := range h.config.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := []string{"HOME=" + workDir, "TMPDIR=" + workDir}
	for _, k := range keys {
		if k == "HOME" || k == "TMPDIR" {
			continue
		}
		env = append(env, fmt.Sprintf("%s=%s", k, h.config.Env[k]))
	}
	return env
}

// limitedBuffer keeps the first limit bytes written and silently drops the rest.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
