package proxy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// TranscriptConfig configures the on-disk chat transcript.
type TranscriptConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// TranscriptEvent is one NDJSON line in a transcript file.
type TranscriptEvent struct {
	Timestamp  time.Time         `json:"ts"`
	UserID     string            `json:"user_id"`
	SessionID  string            `json:"session_id,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Query      *string           `json:"query"`
	Settings   map[string]string `json:"settings,omitempty"`
	Status     int               `json:"status,omitempty"`
	DurationMs int64             `json:"duration_ms"`
	Response   json.RawMessage   `json:"response,omitempty"`
	Failure    string            `json:"failure,omitempty"`
}

// Transcript records chat exchanges.
type Transcript interface {
	Log(event TranscriptEvent)
	Close() error
}

type noopTranscript struct{}

func (noopTranscript) Log(TranscriptEvent) {}
func (noopTranscript) Close() error { return nil }

// FileTranscript appends events to <dir>/<user_id>/<session_id>.ndjson
// from a single background writer. Events are dropped when the queue is full.
type FileTranscript struct {
	dir    string
	queue  chan TranscriptEvent
	done   chan struct{}
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewTranscript returns a FileTranscript, or a no-op transcript when disabled.
func NewTranscript(cfg TranscriptConfig, logger *slog.Logger) (Transcript, error) {
	if !cfg.Enabled {
		return noopTranscript{}, nil
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("transcript directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &FileTranscript{
		dir:    cfg.Dir,
		queue:  make(chan TranscriptEvent, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: logger.With("component", "transcript"),
	}
	go t.run()
	return t, nil
}

// Log enqueues an event without blocking.
func (t *FileTranscript) Log(event TranscriptEvent) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case t.queue <- event:
	default:
		t.logger.Warn("Transcript queue full, dropping event", "user_id", event.UserID)
	}
}

// Close drains the queue and stops the writer.
func (t *FileTranscript) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.queue)
	t.mu.Unlock()

	<-t.done
	return nil
}

func (t *FileTranscript) run() {
	defer close(t.done)
	for event := range t.queue {
		if err := t.write(event); err != nil {
			t.logger.Warn("Failed to write transcript event", "user_id", event.UserID, "error", err)
		}
	}
}

func (t *FileTranscript) write(event TranscriptEvent) error {
	path := t.path(event.UserID, event.SessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (t *FileTranscript) path(userID, sessionID string) string {
	if sessionID == "" {
		sessionID = "default"
	}
	return filepath.Join(t.dir, safePathSegment(userID), safePathSegment(sessionID)+".ndjson")
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func safePathSegment(s string) string {
	s = unsafePathChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "_"
	}
	return s
}
