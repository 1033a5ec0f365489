// Package testutil holds small helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Ptr returns a pointer to the given value. Useful in tests where struct
// literals require pointer fields.
func Ptr[T any](v T) *T { return &v }

// TempHome points $HOME at a fresh temp directory for the duration of the
// test and returns it. Stores that resolve paths under the user home pick up
// the isolated directory.
func TempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

// WriteFile writes content to dir/name (creating parent directories) and
// returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
