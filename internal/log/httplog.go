package log

import (
	"sync"
	"time"
)

// HTTP log buffer is separate from the main zap output
var httpLogBuffer *LogBuffer
var httpLogBufferOnce sync.Once

// HTTPLogEntry represents an HTTP request/response log entry
type HTTPLogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Method     string         `json:"method"`
	Path       string         `json:"path"`
	Status     int            `json:"status"`
	Duration   time.Duration  `json:"duration"`
	Size       int            `json:"size"`
	RemoteAddr string         `json:"remote_addr"`
	UserAgent  string         `json:"user_agent"`
	Error      string         `json:"error,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// LogBuffer keeps the most recent entries in a fixed-size ring
type LogBuffer struct {
	mu      sync.Mutex
	entries []HTTPLogEntry
	next    int
	full    bool
}

// NewLogBuffer creates a buffer holding at most size entries
func NewLogBuffer(size int) *LogBuffer {
	if size < 1 {
		size = 1
	}
	return &LogBuffer{entries: make([]HTTPLogEntry, size)}
}

// AddEntry stores e, evicting the oldest entry when the buffer is full
func (b *LogBuffer) AddEntry(e HTTPLogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// Entries returns the buffered entries, oldest first
func (b *LogBuffer) Entries() []HTTPLogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		return append([]HTTPLogEntry(nil), b.entries[:b.next]...)
	}
	out := make([]HTTPLogEntry, 0, len(b.entries))
	out = append(out, b.entries[b.next:]...)
	return append(out, b.entries[:b.next]...)
}

// GetHTTPLogBuffer returns the HTTP log buffer instance, creating it if necessary
func GetHTTPLogBuffer() *LogBuffer {
	httpLogBufferOnce.Do(func() {
		httpLogBuffer = NewLogBuffer(1000) // Keep last 1000 HTTP log entries
	})
	return httpLogBuffer
}

// LogHTTPRequest records an HTTP request in the HTTP log buffer and at debug level
func LogHTTPRequest(entry HTTPLogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	GetHTTPLogBuffer().AddEntry(entry)

	if entry.Error != "" {
		Warnw("http request failed", "method", entry.Method, "path", entry.Path,
			"status", entry.Status, "duration", entry.Duration, "error", entry.Error)
		return
	}
	Debugw("http request", "method", entry.Method, "path", entry.Path,
		"status", entry.Status, "duration", entry.Duration, "size", entry.Size)
}
