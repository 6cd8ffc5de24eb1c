package sandbox

import "errors"

var (
	// ErrSandboxDisabled is returned when code execution has not been enabled in configuration
	ErrSandboxDisabled = errors.New("sandboxed execution is disabled")

	// ErrInvalidTimeout is returned when the timeout is invalid
	ErrInvalidTimeout = errors.New("invalid timeout (must be > 0)")

	// ErrInvalidOutputLimit is returned when the output limit is invalid
	ErrInvalidOutputLimit = errors.New("invalid output limit (must be > 0)")

	// ErrInvalidMemoryLimit is returned when the memory limit is invalid
	ErrInvalidMemoryLimit = errors.New("invalid memory limit (must be >= 0)")

	// ErrInvalidCPULimit is returned when the CPU time limit is invalid
	ErrInvalidCPULimit = errors.New("invalid CPU limit (must be >= 0)")

	// ErrInvalidProcessLimit is returned when the process limit is invalid
	ErrInvalidProcessLimit = errors.New("invalid process limit (must be >= 0)")

	// ErrLimitsUnavailable is returned when resource limits are configured but prlimit is missing
	ErrLimitsUnavailable = errors.New("resource limits need prlimit(1) on PATH")

	// ErrExecutionTimeout is returned when execution times out
	ErrExecutionTimeout = errors.New("execution timed out")

	// ErrCommandNotAllowed is returned when a command is not on the allowlist
	ErrCommandNotAllowed = errors.New("command not allowed")
)
