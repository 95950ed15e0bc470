package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Record is one line of the event history file. The schema is append-only;
// readers tolerate unknown fields from newer writers.
type Record struct {
	Timestamp time.Time `json:"ts"`
	EventID   string    `json:"event_id"`
	Camera    string    `json:"camera"`
	Risk      string    `json:"risk"`
	RiskScore int       `json:"risk_score"`
	EventType string    `json:"event_type"`
	Behavior  string    `json:"behavior,omitempty"`
	Action    string    `json:"action,omitempty"`
	Delivered bool      `json:"delivered"`
}

// Store persists analysis outcomes as JSONL and answers recency queries. An
// advisory file lock guards against the control panel reading mid-trim; the
// mutex serializes writers inside this process.
type Store struct {
	path     string
	maxLines int
	mu       sync.Mutex
}

func NewStore(path string, maxLines int) *Store {
	return &Store{path: path, maxLines: maxLines}
}

// Append writes one record and trims the file when it exceeds the line cap.
// History failures are never fatal to the pipeline.
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return fmt.Errorf("open history %s: %w", s.path, err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock history %s: %w", s.path, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append history %s: %w", s.path, err)
	}

	return s.trimLocked()
}

// trimLocked rewrites the file keeping only the newest maxLines lines. Caller
// holds both the mutex and the flock via the append handle.
func (s *Store) trimLocked() error {
	lines, err := s.readLines()
	if err != nil {
		return err
	}
	if len(lines) <= s.maxLines {
		return nil
	}

	keep := lines[len(lines)-s.maxLines:]
	tmp := s.path + ".tmp"
	out := strings.Join(keep, "\n") + "\n"
	if err := os.WriteFile(tmp, []byte(out), 0640); err != nil {
		return fmt.Errorf("write trimmed history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	log.Printf("[INFO] History: trimmed %s to %d lines", s.path, len(keep))
	return nil
}

func (s *Store) readLines() ([]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history %s: %w", s.path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if t := strings.TrimSpace(sc.Text()); t != "" {
			lines = append(lines, t)
		}
	}
	return lines, sc.Err()
}

// Recent returns records newer than the window, newest last. A camera filter
// of "" matches all cameras. Corrupt lines (including a partial final line
// from an interrupted write) are skipped.
func (s *Store) Recent(camera string, window time.Duration) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history %s: %w", s.path, err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		return nil, fmt.Errorf("lock history %s: %w", s.path, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	cutoff := time.Now().Add(-window)
	var out []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		if rec.Timestamp.Before(cutoff) {
			continue
		}
		if camera != "" && rec.Camera != camera {
			continue
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}

// CountSince counts records for a camera newer than the window.
func (s *Store) CountSince(camera string, window time.Duration) int {
	recs, err := s.Recent(camera, window)
	if err != nil {
		log.Printf("[WARN] History: count query failed: %v", err)
		return 0
	}
	return len(recs)
}

// Summarize renders recent records as short prompt lines, newest first,
// capped at limit.
func Summarize(recs []Record, limit int) string {
	if len(recs) == 0 {
		return ""
	}
	var b strings.Builder
	n := 0
	for i := len(recs) - 1; i >= 0 && n < limit; i-- {
		rec := recs[i]
		fmt.Fprintf(&b, "- %s: %s on %s (%s risk)\n",
			rec.Timestamp.Local().Format("15:04"), rec.EventType, rec.Camera, rec.Risk)
		n++
	}
	return strings.TrimRight(b.String(), "\n")
}
