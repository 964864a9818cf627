package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"majdl/internal/logging"
)

// Ledger is the memoization log: record IDs whose primary fetch completed in
// any run. The file is newline-delimited and only ever appended to. With an
// empty path the ledger is disabled: Contains is always false and Add does
// nothing.
type Ledger struct {
	path   string
	logger *slog.Logger

	loadOnce sync.Once
	mu       sync.Mutex
	ids      map[string]struct{}
}

// New creates a ledger backed by path. The file is read lazily on first use.
func New(path string, logger *slog.Logger) *Ledger {
	return &Ledger{
		path:   strings.TrimSpace(path),
		logger: logging.NewComponentLogger(logger, "ledger"),
		ids:    make(map[string]struct{}),
	}
}

// Enabled reports whether a backing file is configured.
func (l *Ledger) Enabled() bool {
	return l != nil && l.path != ""
}

// Path returns the backing file path.
func (l *Ledger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Contains reports whether id has been memoized.
func (l *Ledger) Contains(id string) bool {
	if !l.Enabled() {
		return false
	}
	l.ensureLoaded()

	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ids[id]
	return ok
}

// Len returns the number of distinct memoized IDs.
func (l *Ledger) Len() int {
	if !l.Enabled() {
		return 0
	}
	l.ensureLoaded()

	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ids)
}

// Add records id in memory and appends it to the file. A line is appended
// even when id is already known, matching the log's append-only contract.
func (l *Ledger) Add(id string) error {
	if !l.Enabled() {
		return nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("ledger: record id cannot be empty")
	}
	l.ensureLoaded()

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if _, err := file.WriteString(id + "\n"); err != nil {
		file.Close()
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	l.ids[id] = struct{}{}
	return nil
}

func (l *Ledger) ensureLoaded() {
	l.loadOnce.Do(func() {
		if err := l.load(); err != nil {
			logging.WarnWithContext(l.logger, "failed to load memoization ledger", "ledger_load_failed",
				logging.Error(err),
				logging.String("path", l.path),
				logging.String(logging.FieldErrorHint, "check the memoize file permissions"),
				logging.String(logging.FieldImpact, "previously downloaded records may be fetched again"),
			)
		}
	})
}

func (l *Ledger) load() error {
	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	loaded := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			loaded[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	l.mu.Lock()
	for id := range loaded {
		l.ids[id] = struct{}{}
	}
	l.mu.Unlock()

	l.logger.Debug("loaded memoization ledger",
		logging.Int("entry_count", len(loaded)),
		logging.String("path", l.path))
	return nil
}
