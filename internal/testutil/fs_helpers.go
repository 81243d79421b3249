package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content to name inside dir, creating parent directories,
// and returns the full path.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	if filepath.IsAbs(name) {
		t.Fatalf("WriteFile: absolute path not allowed: %s", name)
	}
	path := filepath.Join(dir, filepath.Clean(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

// ReadFile reads a file and fails the test on error.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file %s: %v", path, err)
	}
	return content
}

// AssertFileContent reads the file at path and asserts its content matches expected.
func AssertFileContent(t *testing.T, path string, expected string) {
	t.Helper()

	content := ReadFile(t, path)
	if string(content) != expected {
		t.Errorf("file content mismatch\nexpected: %q\ngot:      %q", expected, content)
	}
}

// MustNotExist fails the test if the path exists or if there's an error
// other than "not exist" (e.g., permission denied).
func MustNotExist(t *testing.T, path string) {
	t.Helper()

	_, err := os.Stat(path)
	if err == nil {
		t.Fatalf("expected %s to not exist", path)
	}
	if !os.IsNotExist(err) {
		t.Fatalf("unexpected error checking %s: %v", path, err)
	}
}
