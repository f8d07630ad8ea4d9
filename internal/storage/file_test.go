package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestRecorder(t *testing.T) (*FileRecorder, string) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "chat_logs", "history.jsonl")
	rec, err := NewFileRecorder(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("init recorder: %v", err)
	}
	return rec, p
}

func TestFileRecorder_AppendAndLoad(t *testing.T) {
	rec, p := newTestRecorder(t)

	const n = 5
	for i := 0; i < n; i++ {
		ev := ChatEntry{Timestamp: time.Unix(int64(i), 0).UTC(), UserPrompt: fmt.Sprintf("q%d", i), Response: fmt.Sprintf("a%d", i)}
		if err := rec.Append(ev); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	entries, err := rec.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != n {
		t.Fatalf("want %d, got %d", n, len(entries))
	}
	for i, e := range entries {
		if e.UserPrompt != fmt.Sprintf("q%d", i) || e.Response != fmt.Sprintf("a%d", i) {
			t.Fatalf("order mismatch at %d: %+v", i, e)
		}
		if !e.Timestamp.Equal(time.Unix(int64(i), 0)) {
			t.Fatalf("timestamp mismatch at %d: %v", i, e.Timestamp)
		}
	}

	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if got := strings.Count(string(data), "\n"); got != n {
		t.Fatalf("want %d lines, got %d", n, got)
	}
}

func TestFileRecorder_MissingFileIsEmptyHistory(t *testing.T) {
	rec, _ := newTestRecorder(t)
	entries, err := rec.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", entries)
	}
}

func TestFileRecorder_RoundTripIsByteIdentical(t *testing.T) {
	rec, _ := newTestRecorder(t)
	prompt := "  <script>&\"quotes\"\nnew line\ttab ключ 🔐  "
	response := "Use `ssh-keygen -t ed25519`\r\n<b>&amp;</b>"
	if err := rec.Append(ChatEntry{Timestamp: time.Now().UTC(), UserPrompt: prompt, Response: response}); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries, err := rec.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want 1, got %d", len(entries))
	}
	if entries[0].UserPrompt != prompt || entries[0].Response != response {
		t.Fatalf("round trip changed values: %+v", entries[0])
	}
}

func TestFileRecorder_ConcurrentAppendsStayWhole(t *testing.T) {
	rec, p := newTestRecorder(t)

	const k = 64
	big := strings.Repeat("x", 32*1024)
	var wg sync.WaitGroup
	errs := make(chan error, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- rec.Append(ChatEntry{Timestamp: time.Now().UTC(), UserPrompt: fmt.Sprintf("p%d", i), Response: big})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	f, err := os.Open(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lines := 0
	seen := make(map[string]bool)
	for s.Scan() {
		lines++
		var e ChatEntry
		if err := json.Unmarshal(s.Bytes(), &e); err != nil {
			t.Fatalf("line %d not decodable: %v", lines, err)
		}
		if e.Response != big {
			t.Fatalf("line %d corrupted", lines)
		}
		seen[e.UserPrompt] = true
	}
	if err := s.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if lines != k || len(seen) != k {
		t.Fatalf("want %d distinct lines, got %d lines / %d distinct", k, lines, len(seen))
	}
}

func TestFileRecorder_SkipsMalformedLines(t *testing.T) {
	rec, p := newTestRecorder(t)
	content := strings.Join([]string{
		`{"timestamp":"2025-01-01T00:00:00Z","user_prompt":"a","response":"1"}`,
		`not json at all`,
		``,
		`{"timestamp":"2025-01-01T00:00:01Z","user_prompt":"b","response":"2"}`,
		`{"timestamp":"2025-01-01T00:00:02Z","user_prompt":"c","resp`,
	}, "\n")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	entries, err := rec.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 2 || entries[0].UserPrompt != "a" || entries[1].UserPrompt != "b" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestFileRecorder_ReadsLegacyLines(t *testing.T) {
	rec, p := newTestRecorder(t)
	line := `{"timestamp": "2025-02-03T04:05:06.123456", "user_prompt": "old", "ciphergenix_response": "legacy reply"}` + "\n"
	if err := os.WriteFile(p, []byte(line), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	entries, err := rec.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want 1, got %d", len(entries))
	}
	e := entries[0]
	if e.Response != "legacy reply" || e.UserPrompt != "old" {
		t.Fatalf("legacy fields not mapped: %+v", e)
	}
	want := time.Date(2025, 2, 3, 4, 5, 6, 123456000, time.UTC)
	if !e.Timestamp.Equal(want) {
		t.Fatalf("legacy timestamp: got %v want %v", e.Timestamp, want)
	}

	out, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(out), "ciphergenix_response") || !strings.Contains(string(out), `"response":"legacy reply"`) {
		t.Fatalf("entry should encode under the response key: %s", out)
	}
}

func TestFileRecorder_RotateKeepsHistory(t *testing.T) {
	rec, p := newTestRecorder(t)
	clock := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return clock }

	if dst, err := rec.Rotate(); err != nil || dst != "" {
		t.Fatalf("rotating a missing log should be a no-op: %q %v", dst, err)
	}

	for _, q := range []string{"a", "b"} {
		if err := rec.Append(ChatEntry{Timestamp: clock, UserPrompt: q, Response: q}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	dst, err := rec.Rotate()
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if dst != p+".20250601T000000.000000000Z" {
		t.Fatalf("unexpected segment name: %s", dst)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("active log should be gone after rotate: %v", err)
	}

	clock = clock.Add(24 * time.Hour)
	if err := rec.Append(ChatEntry{Timestamp: clock, UserPrompt: "c", Response: "c"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := rec.Rotate(); err != nil {
		t.Fatalf("rotate 2: %v", err)
	}
	if err := rec.Append(ChatEntry{Timestamp: clock, UserPrompt: "d", Response: "d"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Unrelated sibling must not be picked up as a segment.
	if err := os.WriteFile(p+".bak", []byte(`{"user_prompt":"zzz"}`+"\n"), 0o644); err != nil {
		t.Fatalf("write sibling: %v", err)
	}

	entries, err := rec.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.UserPrompt)
	}
	if strings.Join(got, ",") != "a,b,c,d" {
		t.Fatalf("unexpected order across segments: %v", got)
	}
}
