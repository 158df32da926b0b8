package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"s01e02", "s01e02"},
		{"Show: Part 1/2", "Show- Part 1-2"},
		{"  what?  ", "what"},
		{"..", "fallback"},
		{"", "fallback"},
		{`a"b<c>|d`, "abcd"},
	}
	for _, tc := range cases {
		if got := SanitizeFileName(tc.in, "fallback"); got != tc.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRemoveFilesIgnoresMissing(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.txt")
	gone := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(gone, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := RemoveFiles(gone, filepath.Join(dir, "never-existed"), ""); err != nil {
		t.Fatalf("RemoveFiles: %v", err)
	}
	if _, err := os.Stat(gone); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	if FileSize(keep) != 0 {
		t.Fatal("expected zero size for missing file")
	}
}

func TestFileSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}
	if FileSize(path) != 5 {
		t.Fatalf("unexpected size %d", FileSize(path))
	}
}
