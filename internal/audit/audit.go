// Package audit provides an append-only sink for inbound payloads and API responses.
package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tienditalabs/whatsapp-commerce-bot/pkg/logging"
)

// Entry is a single immutable audit record.
type Entry struct {
	ID        string          `json:"id"`
	Label     string          `json:"label"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Sink receives audit entries. Append is fire-and-forget: implementations log
// failures themselves and never surface them to the caller.
type Sink interface {
	Append(ctx context.Context, label string, payload any)
}

// FileSink appends JSON lines to a log file on disk.
type FileSink struct {
	path   string
	logger *logging.Logger

	mu sync.Mutex
}

// NewFileSink creates the parent directory if needed and returns a file sink.
func NewFileSink(path string, logger *logging.Logger) (*FileSink, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &FileSink{path: path, logger: logger}, nil
}

// Append writes one timestamped JSON line. Failures are logged, never returned.
func (s *FileSink) Append(ctx context.Context, label string, payload any) {
	entry, err := buildEntry(label, payload)
	if err != nil {
		s.logger.Warn("audit entry not serializable", "label", label, "error", err)
		return
	}
	line, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("failed to marshal audit entry", "label", label, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Warn("failed to open audit log", "path", s.path, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		s.logger.Warn("failed to append audit entry", "path", s.path, "error", err)
	}
}

// MemorySink collects entries in memory for tests.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append stores the entry.
func (s *MemorySink) Append(ctx context.Context, label string, payload any) {
	entry, err := buildEntry(label, payload)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

// Entries returns a copy of everything appended so far.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func buildEntry(label string, payload any) (Entry, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Entry{}, err
		}
		raw = data
	}
	return Entry{
		ID:        uuid.NewString(),
		Label:     label,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}
