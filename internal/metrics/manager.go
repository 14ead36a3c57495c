package metrics

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/lokutor-ai/voxpipe/internal/logging"
)

// SessionSummary is one append-only JSONL record written when a session
// closes (SPEC_FULL §9).
type SessionSummary struct {
	SessionID  string    `json:"session_id"`
	ClosedAt   time.Time `json:"closed_at"`
	DurationMs int64     `json:"duration_ms"`
	ASRChunks  int64     `json:"asr_chunks"`
	LLMTokens  int64     `json:"llm_tokens"`
	TTSFrames  int64     `json:"tts_frames"`
	BargeIns   int64     `json:"barge_ins"`
	Errors     int64     `json:"errors"`
}

// Manager appends SessionSummary records to a JSONL file and keeps the
// most recent ones in memory, returned by RecentSessions. The /metrics
// route in cmd/server serves only the Prometheus registry, not this
// window.
type Manager struct {
	log logging.Logger

	mu         sync.Mutex
	path       string
	file       *os.File
	window     []SessionSummary
	windowSize int
}

// NewManager opens path for appending (creating it if needed) and keeps up
// to windowSize recent summaries in memory. If enableFile is false, no
// file is opened and RecordSession only updates the in-memory window —
// used by tests and by deployments with EnableMetrics=false.
func NewManager(log logging.Logger, path string, windowSize int, enableFile bool) (*Manager, error) {
	m := &Manager{log: log, path: path, windowSize: windowSize}
	if !enableFile {
		return m, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	m.file = f
	return m, nil
}

// RecordSession appends summary to the JSONL sink (if open) and to the
// in-memory rolling window.
func (m *Manager) RecordSession(summary SessionSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.window = append(m.window, summary)
	if len(m.window) > m.windowSize {
		m.window = m.window[len(m.window)-m.windowSize:]
	}

	if m.file == nil {
		return
	}
	line, err := json.Marshal(summary)
	if err != nil {
		m.log.Error("failed to marshal session summary", "session", summary.SessionID, "err", err)
		return
	}
	line = append(line, '\n')
	if _, err := m.file.Write(line); err != nil {
		m.log.Error("failed to append session summary", "session", summary.SessionID, "err", err)
	}
}

// RecentSessions returns a copy of the in-memory rolling window, oldest
// first.
func (m *Manager) RecentSessions() []SessionSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionSummary, len(m.window))
	copy(out, m.window)
	return out
}

// Close releases the underlying file handle, if one was opened.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	return m.file.Close()
}
