package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// segmentStampLayout is fixed-width so lexical order of archived segments is chronological.
const segmentStampLayout = "20060102T150405.000000000Z"

// FileRecorder is a JSON-lines chat log. The file is opened per operation and
// closed before returning; the recorder never holds it across calls.
type FileRecorder struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time
}

func NewFileRecorder(path string, logger *slog.Logger) (*FileRecorder, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("chat log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure log dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileRecorder{path: path, logger: logger, now: time.Now}, nil
}

func (r *FileRecorder) Path() string { return r.path }

// Append writes entry as a single line with one write call on an O_APPEND
// descriptor. Appends within the process are serialized by the mutex.
func (r *FileRecorder) Append(entry ChatEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open append: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("write entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close log: %w", err)
	}
	return nil
}

// LoadAll returns every entry from archived segments and then the active
// file, in write order. A missing log is an empty history. Lines that do not
// decode are skipped and reported at warn level.
func (r *FileRecorder) LoadAll() ([]ChatEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	segments, err := r.segmentsUnlocked()
	if err != nil {
		return nil, err
	}
	entries := []ChatEntry{}
	for _, p := range append(segments, r.path) {
		entries, err = r.readFileUnlocked(p, entries)
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// Rotate moves the active file aside as a timestamped segment. An absent or
// empty active file is left alone and Rotate returns "".
func (r *FileRecorder) Rotate() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := os.Stat(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("stat log: %w", err)
	}
	if st.Size() == 0 {
		return "", nil
	}
	dst := r.path + "." + r.now().UTC().Format(segmentStampLayout)
	if err := os.Rename(r.path, dst); err != nil {
		return "", fmt.Errorf("rotate log: %w", err)
	}
	return dst, nil
}

func (r *FileRecorder) segmentsUnlocked() ([]string, error) {
	dir, base := filepath.Split(r.path)
	if dir == "" {
		dir = "."
	}
	des, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list log dir: %w", err)
	}
	var out []string
	prefix := base + "."
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if _, err := time.Parse(segmentStampLayout, strings.TrimPrefix(name, prefix)); err != nil {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

func (r *FileRecorder) readFileUnlocked(path string, entries []ChatEntry) ([]ChatEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("open read: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	br := bufio.NewReader(f)
	lineNo := 0
	for {
		line, readErr := br.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			line = bytes.TrimSpace(line)
			if len(line) > 0 {
				var e ChatEntry
				if err := json.Unmarshal(line, &e); err != nil {
					r.logger.Warn("skipping malformed chat log line", "file", path, "line", lineNo, "error", err)
				} else {
					entries = append(entries, e)
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return entries, nil
			}
			return nil, fmt.Errorf("read %s: %w", path, readErr)
		}
	}
}
