package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteDocument stores doc as <dir>/<id>.json using the same layout as the
// record store.
func WriteDocument(t testing.TB, dir, id string, doc map[string]any) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("marshal document %s: %v", id, err)
	}
	path := filepath.Join(dir, id+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		t.Fatalf("write document %s: %v", id, err)
	}
	return path
}

// ReadDocument loads <dir>/<id>.json into a generic map.
func ReadDocument(t testing.TB, dir, id string) map[string]any {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		t.Fatalf("read document %s: %v", id, err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode document %s: %v", id, err)
	}
	return out
}

// ReadBytes returns the file contents or fails the test.
func ReadBytes(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}
