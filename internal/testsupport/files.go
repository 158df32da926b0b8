package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills path with size bytes of a repeating pattern. A size <= 0
// writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = 0x42
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteManifest writes a manifest with one episode per id, each with a video and a
// subtitle source, and returns its path.
func WriteManifest(t testing.TB, dir string, ids ...string) string {
	t.Helper()
	var body []byte
	body = append(body, "show = \"Test Show\"\nlanguage = \"en\"\n"...)
	for _, id := range ids {
		body = append(body, "\n[[episode]]\nid = \""+id+"\"\n"...)
		body = append(body, "\n[[episode.source]]\nid = \"video\"\nurl = \"https://example.test/"+id+"\"\n"...)
		body = append(body, "\n[[episode.source]]\nid = \"subs\"\nkind = \"subtitle\"\nurl = \"https://example.test/"+id+"/subs\"\n"...)
	}
	path := filepath.Join(dir, "manifest.toml")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}
