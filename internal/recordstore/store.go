package recordstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"majdl/internal/services"
)

const (
	documentExt = ".json"
	rawExt      = ".pb"
)

// Store maps record IDs to JSON documents under dir, and optionally to raw
// protobuf dumps under rawDir.
type Store struct {
	dir    string
	rawDir string
}

// New returns a store rooted at dir. rawDir may be empty to disable raw dumps.
// Both directories are created if missing.
func New(dir, rawDir string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "store", "open", "output directory is required", nil)
	}
	for _, d := range []string{dir, rawDir} {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", d, err)
		}
	}
	return &Store{dir: dir, rawDir: strings.TrimSpace(rawDir)}, nil
}

// Dir returns the document directory.
func (s *Store) Dir() string { return s.dir }

// RawEnabled reports whether raw dumps are written.
func (s *Store) RawEnabled() bool { return s.rawDir != "" }

// ValidateID rejects identifiers that cannot be used as a file name.
func ValidateID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return services.Wrap(services.ErrValidation, "store", "id", "record id is empty", nil)
	case id == "." || id == "..":
		return services.Wrap(services.ErrValidation, "store", "id", fmt.Sprintf("record id %q is reserved", id), nil)
	case strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0):
		return services.Wrap(services.ErrValidation, "store", "id", fmt.Sprintf("record id %q contains a path separator", id), nil)
	}
	return nil
}

// Path returns the document path for id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+documentExt)
}

// RawPath returns the raw dump path for id, or "" when dumps are disabled.
func (s *Store) RawPath(id string) string {
	if s.rawDir == "" {
		return ""
	}
	return filepath.Join(s.rawDir, id+rawExt)
}

// Exists reports whether a document for id is on disk.
func (s *Store) Exists(id string) bool {
	if ValidateID(id) != nil {
		return false
	}
	info, err := os.Stat(s.Path(id))
	return err == nil && !info.IsDir()
}

// Read loads the document for id. A missing document wraps services.ErrNotFound.
func (s *Store) Read(id string) (*Document, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "store", "read", fmt.Sprintf("no document for %s", id), nil)
		}
		return nil, fmt.Errorf("read document %s: %w", id, err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "store", "read", fmt.Sprintf("document %s is not a JSON object", id), err)
	}
	return doc, nil
}

// Write replaces the document for id atomically. Output is UTF-8 with
// two-space indentation and non-ASCII text kept literal.
func (s *Store) Write(id string, doc *Document) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", id, err)
	}
	return writeAtomic(s.Path(id), data)
}

// WriteRaw stores the raw protobuf bytes for id. It is a no-op when raw dumps
// are disabled.
func (s *Store) WriteRaw(id string, data []byte) error {
	if s.rawDir == "" {
		return nil
	}
	if err := ValidateID(id); err != nil {
		return err
	}
	return writeAtomic(s.RawPath(id), data)
}

// IDs lists the record IDs of every document in the directory, sorted.
func (s *Store) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, documentExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, documentExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Encode renders a document exactly as Write stores it.
func Encode(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
