package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one audited operator or system action: logins, config reloads,
// alarm triggers. The signature makes after-the-fact tampering with the log
// file detectable.
type Event struct {
	EventID   string    `json:"event_id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Signature string    `json:"sig"`
}

// Log appends signed audit events to a JSONL file.
type Log struct {
	path string
	key  []byte
	mu   sync.Mutex
}

func NewLog(path, signingKey string) *Log {
	return &Log{path: path, key: []byte(signingKey)}
}

// Write records one event. Audit failures are returned but callers treat
// them as non-fatal; losing an audit line must not take the bridge down.
func (l *Log) Write(action, actor, detail string) error {
	evt := Event{
		EventID:   uuid.New().String(),
		Action:    action,
		Actor:     actor,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	evt.Signature = l.sign(evt)

	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0750); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return fmt.Errorf("open audit log %s: %w", l.path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

// Verify checks an event's signature against the log's key.
func (l *Log) Verify(evt Event) bool {
	return hmac.Equal([]byte(l.sign(evt)), []byte(evt.Signature))
}

func (l *Log) sign(evt Event) string {
	mac := hmac.New(sha256.New, l.key)
	fmt.Fprintf(mac, "%s|%s|%s|%s|%d",
		evt.EventID, evt.Action, evt.Actor, evt.Detail, evt.CreatedAt.UnixNano())
	return hex.EncodeToString(mac.Sum(nil))
}
