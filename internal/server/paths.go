package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// resolveRoot returns the absolute, symlink free form of the directory
// every request path must stay inside
func resolveRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("server root %s: %w", root, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("server root %s: %w", root, err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return "", fmt.Errorf("server root %s: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("server root %s is not a directory", root)
	}
	return real, nil
}

// resolvePath maps a request path onto the server root. Relative paths are
// taken from the root; absolute paths, ".." and symlinks must not lead out
// of it.
func (s *Server) resolvePath(field, p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%s is required", field)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	p = filepath.Clean(p)

	real, err := evalExisting(p)
	if err != nil {
		return "", fmt.Errorf("%s: %v", field, err)
	}
	if !within(s.root, real) {
		return "", fmt.Errorf("%s must be inside the server root %s", field, s.root)
	}
	return real, nil
}

// evalExisting resolves symlinks in the longest existing prefix of p and
// appends the part that does not exist yet
func evalExisting(p string) (string, error) {
	var rest []string
	for {
		real, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(append([]string{real}, rest...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return filepath.Join(append([]string{p}, rest...)...), nil
		}
		rest = append([]string{filepath.Base(p)}, rest...)
		p = parent
	}
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
