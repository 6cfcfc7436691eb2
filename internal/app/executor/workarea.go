package executor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const workAreaMarker = ".tcrun-workarea"

// WorkAreas hands out one isolated directory per test case below a root.
//
// Directory names are derived from test ids. Ids that sanitise to the same
// name get a numeric suffix, so no two tests of a run share a directory.
type WorkAreas struct {
	root string

	mu   sync.Mutex
	used map[string]bool
}

// NewWorkAreas returns a WorkAreas rooted at root.
func NewWorkAreas(root string) (*WorkAreas, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("work area root must be provided")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve work area root: %w", err)
	}
	if abs == filepath.Dir(abs) {
		return nil, fmt.Errorf("refusing to use filesystem root %q as work area", abs)
	}
	if cwd, err := os.Getwd(); err == nil && cwd == abs {
		return nil, fmt.Errorf("refusing to use the current directory %q as work area", abs)
	}
	return &WorkAreas{root: abs, used: make(map[string]bool)}, nil
}

// Root returns the absolute work area root.
func (w *WorkAreas) Root() string {
	return w.root
}

// Reset removes every work area left behind by a previous run.
//
// An existing root is only cleared when it is empty or carries the marker
// file written by a previous Reset.
func (w *WorkAreas) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := os.ReadDir(w.root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read work area root: %w", err)
	case len(entries) > 0:
		if _, err := os.Stat(filepath.Join(w.root, workAreaMarker)); err != nil {
			return fmt.Errorf("refusing to clear %s: not a tcrun work area", w.root)
		}
		if err := os.RemoveAll(w.root); err != nil {
			return fmt.Errorf("clear work area root: %w", err)
		}
	}

	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("create work area root: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.root, workAreaMarker), nil, 0o644); err != nil {
		return fmt.Errorf("mark work area root: %w", err)
	}
	w.used = make(map[string]bool)
	return nil
}

// Create makes a fresh, empty directory for testID and returns its path.
func (w *WorkAreas) Create(testID string) (string, error) {
	w.mu.Lock()
	name := sanitizeName(testID)
	candidate := name
	for n := 2; w.used[candidate]; n++ {
		candidate = name + "-" + strconv.Itoa(n)
	}
	w.used[candidate] = true
	w.mu.Unlock()

	dir := filepath.Join(w.root, candidate)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("remove stale work area: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create work area: %w", err)
	}
	return dir, nil
}

// sanitizeName maps a test id onto a single safe path element.
func sanitizeName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" || strings.Trim(name, ".") == "" || name == workAreaMarker {
		name = "_" + name
	}
	return name
}

// copyPath copies src into dst. A directory src has its contents copied into
// dst; a file src is copied to dst keeping its permission bits.
func copyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst, info.Mode().Perm())
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, fi.Mode().Perm())
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
