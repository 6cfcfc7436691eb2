package executor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"add2":       "add2",
		"case-1.a_b": "case-1.a_b",
		"a/b":        "a_b",
		"../up":      ".._up",
		"..":         "_..",
		"":           "_",
		"with space": "with_space",
		"ünï":        "_n_",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Fatalf("sanitizeName(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestCreateGivesCollidingIDsDistinctDirectories(t *testing.T) {
	t.Parallel()

	areas, err := NewWorkAreas(filepath.Join(t.TempDir(), "work"))
	if err != nil {
		t.Fatalf("NewWorkAreas: %v", err)
	}
	if err := areas.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	first, err := areas.Create("a/b")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := areas.Create("a_b")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct directories, both are %s", first)
	}
	for _, dir := range []string{first, second} {
		if filepath.Dir(dir) != areas.Root() {
			t.Fatalf("expected %s directly below %s", dir, areas.Root())
		}
	}
}

func TestResetClearsPreviousRun(t *testing.T) {
	t.Parallel()

	areas, err := NewWorkAreas(filepath.Join(t.TempDir(), "work"))
	if err != nil {
		t.Fatalf("NewWorkAreas: %v", err)
	}
	if err := areas.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	dir, err := areas.Create("t1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "leftover"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write leftover: %v", err)
	}

	if err := areas.Reset(); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be removed, stat error %v", dir, err)
	}
	again, err := areas.Create("t1")
	if err != nil {
		t.Fatalf("Create after reset: %v", err)
	}
	if again != dir {
		t.Fatalf("expected name reuse after reset, got %s want %s", again, dir)
	}
}

func TestResetRefusesForeignDirectory(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "precious")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	keep := filepath.Join(root, "keep.txt")
	if err := os.WriteFile(keep, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	areas, err := NewWorkAreas(root)
	if err != nil {
		t.Fatalf("NewWorkAreas: %v", err)
	}
	if err := areas.Reset(); err == nil {
		t.Fatalf("expected Reset to refuse a directory it does not own")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("expected foreign file to survive, got %v", err)
	}
}

func TestNewWorkAreasRejectsUnsafeRoots(t *testing.T) {
	t.Parallel()

	for _, root := range []string{"", "  ", "/"} {
		if _, err := NewWorkAreas(root); err == nil {
			t.Fatalf("expected error for root %q", root)
		}
	}
}

func TestCopyPathCopiesDirectoryContents(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	src := filepath.Join(base, "src")
	if err := os.MkdirAll(filepath.Join(src, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "nested", "run.sh"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	dst := filepath.Join(base, "dst")
	if err := os.MkdirAll(dst, 0o755); err != nil {
		t.Fatalf("mkdir dst: %v", err)
	}

	if err := copyPath(src, dst); err != nil {
		t.Fatalf("copyPath: %v", err)
	}
	info, err := os.Stat(filepath.Join(dst, "nested", "run.sh"))
	if err != nil {
		t.Fatalf("stat copied file: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("expected mode 0755, got %v", info.Mode().Perm())
	}
}
