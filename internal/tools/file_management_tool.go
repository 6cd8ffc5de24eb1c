// In file: internal/tools/file_management_tool.go
package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileConfig confines file operations to a single directory tree.
type FileConfig struct {
	Root         string `yaml:"root"`
	MaxReadBytes int64  `yaml:"max_read_bytes"`
}

// FileManagementTool performs read, write, move and delete inside its root.
// For "move", content holds the destination path.
type FileManagementTool struct {
	root    string
	maxRead int64
}

var _ Action = (*FileManagementTool)(nil)

// NewFileManagementTool resolves the root to a real absolute path and creates it if needed.
func NewFileManagementTool(cfg FileConfig) (*FileManagementTool, error) {
	if cfg.Root == "" {
		return nil, errors.New("file management root is required")
	}
	root, err := prepareRoot(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare file root: %w", err)
	}
	maxRead := cfg.MaxReadBytes
	if maxRead <= 0 {
		maxRead = 64 * 1024
	}
	return &FileManagementTool{root: root, maxRead: maxRead}, nil
}

func (t *FileManagementTool) Name() string { return FileManagementToolName }

func (t *FileManagementTool) Execute(_ context.Context, args Args) (string, error) {
	rel := args.String("filePath")
	path, err := t.resolve(rel)
	if err != nil {
		return "", err
	}

	switch op := args.String("operation"); op {
	case "read":
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", rel, err)
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, t.maxRead+1))
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", rel, err)
		}
		suffix := ""
		if int64(len(data)) > t.maxRead {
			data = data[:t.maxRead]
			suffix = "\n... [file truncated]"
		}
		return fmt.Sprintf("Contents of %s:\n%s%s", rel, data, suffix), nil

	case "write":
		content := args.String("content")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory for %s: %w", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", rel, err)
		}
		return fmt.Sprintf("Wrote %d byte(s) to %s.", len(content), rel), nil

	case "move":
		destRel := args.String("content")
		if destRel == "" {
			return "", errors.New("move requires the destination path in content")
		}
		dest, err := t.resolve(destRel)
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory for %s: %w", destRel, err)
		}
		if err := os.Rename(path, dest); err != nil {
			return "", fmt.Errorf("failed to move %s to %s: %w", rel, destRel, err)
		}
		return fmt.Sprintf("Moved %s to %s.", rel, destRel), nil

	case "delete":
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("failed to delete %s: %w", rel, err)
		}
		return fmt.Sprintf("Deleted %s.", rel), nil

	default:
		return "", fmt.Errorf("unsupported file operation %q", op)
	}
}

// resolve maps a model-supplied path into the root, rejecting anything that escapes it.
func (t *FileManagementTool) resolve(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.New("filePath is empty")
	}
	return confine(t.root, p)
}
