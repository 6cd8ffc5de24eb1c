// Package sandbox runs untrusted, model-supplied programs as separate host processes under
// strict time, output and environment limits. Nothing is ever evaluated inside the gateway
// process itself.
package sandbox

import (
	"context"
	"time"
)

// Config defines sandbox configuration
type Config struct {
	// Enabled must be set explicitly; code execution is off by default.
	Enabled bool `yaml:"enabled"`

	// Timeout limits wall-clock execution time per request
	Timeout time.Duration `yaml:"timeout"`

	// MaxOutputBytes caps each of stdout and stderr
	MaxOutputBytes int `yaml:"max_output_bytes"`

	// AllowedCommands lists the executables that may be started. Empty allows none.
	AllowedCommands []string `yaml:"allowed_commands"`

	// Env is the complete environment given to the child process
	Env map[string]string `yaml:"env"`

	// ResourceLimits are applied to the child through prlimit(1)
	ResourceLimits ResourceLimits `yaml:"resource_limits"`

	// Wrapper is prepended to every command line, for example a namespace runner such as
	// bwrap or nsjail with its arguments. Without one the child sees the host filesystem
	// with the gateway's user id.
	Wrapper []string `yaml:"wrapper"`
}

// ResourceLimits defines per-process rlimits. Zero leaves a limit unset.
type ResourceLimits struct {
	// MaxMemoryMB caps the address space
	MaxMemoryMB int `yaml:"max_memory_mb"`

	// MaxCPUSeconds caps consumed CPU time
	MaxCPUSeconds int `yaml:"max_cpu_seconds"`

	// MaxProcesses caps RLIMIT_NPROC. The kernel counts it per user id, not per sandbox.
	MaxProcesses int `yaml:"max_processes"`
}

func (l ResourceLimits) isZero() bool {
	return l == ResourceLimits{}
}

// ExecuteRequest represents a sandbox execution request
type ExecuteRequest struct {
	Command string
	Args    []string
	Stdin   []byte

	// Timeout overrides Config.Timeout when it is shorter.
	Timeout time.Duration
}

// ExecuteResult represents a sandbox execution result
type ExecuteResult struct {
	Stdout    []byte
	Stderr    []byte
	ExitCode  int
	Duration  time.Duration
	Truncated bool
}

// Sandbox defines the interface for sandboxed execution
type Sandbox interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

// DefaultConfig returns a disabled sandbox with conservative limits
func DefaultConfig() Config {
	return Config{
		Enabled:         false,
		Timeout:         10 * time.Second,
		MaxOutputBytes:  64 * 1024,
		AllowedCommands: []string{"python3", "bash", "sh", "node"},
		Env: map[string]string{
			"PATH": "/usr/local/bin:/usr/bin:/bin",
		},
		ResourceLimits: ResourceLimits{
			MaxMemoryMB:   1024,
			MaxCPUSeconds: 10,
		},
	}
}

// ValidateConfig validates a sandbox configuration
func ValidateConfig(cfg Config) error {
	if cfg.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if cfg.MaxOutputBytes <= 0 {
		return ErrInvalidOutputLimit
	}
	if cfg.ResourceLimits.MaxMemoryMB < 0 {
		return ErrInvalidMemoryLimit
	}
	if cfg.ResourceLimits.MaxCPUSeconds < 0 {
		return ErrInvalidCPULimit
	}
	if cfg.ResourceLimits.MaxProcesses < 0 {
		return ErrInvalidProcessLimit
	}
	return nil
}
