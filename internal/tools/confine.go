// In file: internal/tools/confine.go
package tools

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// prepareRoot makes root absolute, creates it and resolves any symlinks in it, so later
// containment checks compare resolved paths.
func prepareRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// confine maps a model-supplied path into root and returns the resolved path it refers to.
// Symlinks in the parent directories, and a symlink at the final element, are followed before
// the containment check, so a link inside root cannot redirect the operation outside it.
func confine(root, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.New("path is empty")
	}
	outside := fmt.Errorf("path %q is outside the managed directory", p)

	joined := filepath.Join(root, filepath.Clean("/"+p))
	if !within(root, joined) {
		return "", outside
	}

	parent, err := realDir(filepath.Dir(joined))
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", p, err)
	}
	if parent != root && !within(root, parent) {
		return "", outside
	}
	resolved := filepath.Join(parent, filepath.Base(joined))

	if fi, err := os.Lstat(resolved); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(resolved)
		if err != nil || !within(root, target) {
			return "", outside
		}
	}
	return resolved, nil
}

// realDir resolves symlinks in the longest existing prefix of dir and re-attaches the rest.
func realDir(dir string) (string, error) {
	var missing []string
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		// A dangling link is not a missing directory.
		if fi, lerr := os.Lstat(dir); lerr == nil && fi.Mode()&os.ModeSymlink != 0 {
			return "", err
		}
		next := filepath.Dir(dir)
		if next == dir {
			return "", err
		}
		missing = append(missing, filepath.Base(dir))
		dir = next
	}
}

// within reports whether path lies strictly below root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
