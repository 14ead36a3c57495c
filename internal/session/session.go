// Package session holds the per-participant state the pipeline coordinator
// creates on connect and tears down on disconnect or expiry: the rolling
// audio buffer, conversation history, in-flight work cancellation, and the
// bounded queue bridging StreamingTTS to the transport. Grounded on the
// teacher's ConversationSession (pkg/orchestrator/conversation.go) and
// ManagedStream (pkg/orchestrator/managed_stream.go), split into focused
// types per SPEC_FULL §3/§5 rather than one struct doing both.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lokutor-ai/voxpipe/internal/echo"
	"github.com/lokutor-ai/voxpipe/internal/transport"
)

// TTSQueueItem is one synthesized segment waiting to be published, tagged
// with its segment index for ordering diagnostics and metrics.
type TTSQueueItem struct {
	Segment int
	Frames  []transport.PCMFrame
}

// Session is the coordinator's live record of one participant's
// conversation. All mutable fields are guarded by mu except ttsQueue, which
// is a channel and safe for concurrent use on its own.
type Session struct {
	ID        string
	CreatedAt time.Time

	SampleRate int
	Channels   int

	Transport transport.Publisher

	Audio   *RollingBuffer
	History *History
	Echo    *echo.Suppressor

	ttsQueue chan TTSQueueItem

	mu              sync.Mutex
	isAgentSpeaking bool
	isActive        bool
	lastASRFinal    time.Time
	voice           string
	language        string

	cancelLLM func()
	cancelTTS func()

	asrChunks int64
	llmTokens int64
	ttsFrames int64
	bargeIns  int64
	errors    int64
}

// New creates a session identified by participantID if non-empty, or a
// generated uuid otherwise (spec §3: "stable session_id derived from
// participant identity when available").
func New(participantID string, pub transport.Publisher, sampleRate int, memoryTokenBudget, ttsQueueCapacity, audioBufferCapacity int) *Session {
	id := participantID
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		SampleRate: sampleRate,
		Channels:   1,
		Transport:  pub,
		Audio:      NewRollingBuffer(audioBufferCapacity),
		History:    NewHistory(memoryTokenBudget),
		Echo:       echo.NewSuppressor(),
		ttsQueue:   make(chan TTSQueueItem, ttsQueueCapacity),
		isActive:   true,
	}
}

// TTSQueue exposes the bounded channel bridging StreamingTTS to whatever
// drains frames toward the transport.
func (s *Session) TTSQueue() chan TTSQueueItem {
	return s.ttsQueue
}

// SetAgentSpeaking records whether synthesized audio is currently being
// published, read by the barge-in detector and the health/metrics layer.
func (s *Session) SetAgentSpeaking(speaking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isAgentSpeaking = speaking
}

// IsAgentSpeaking reports the current speaking state.
func (s *Session) IsAgentSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAgentSpeaking
}

// SetActive marks the session active/inactive; coordinator cleanup uses
// this to skip sessions already being torn down.
func (s *Session) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isActive = active
}

// IsActive reports whether the session is still live.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isActive
}

// SetVoice changes the voice used for subsequent TTS segments, callable
// out-of-band (e.g. from a future settings datagram) without restarting
// the session.
func (s *Session) SetVoice(voice string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = voice
}

// Voice returns the session's current TTS voice, or "" if never set.
func (s *Session) Voice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice
}

// SetLanguage changes the language hint used for subsequent ASR/TTS
// calls.
func (s *Session) SetLanguage(language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = language
}

// Language returns the session's current language hint, or "" if never
// set explicitly.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// TouchASRFinal records the time of the most recent finalized utterance,
// used by the session-expiry sweep alongside CreatedAt.
func (s *Session) TouchASRFinal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastASRFinal = time.Now()
}

// LastASRFinalAt returns the exact time of the most recent finalized
// utterance, the reference point StreamingTTS's first published frame is
// measured against for end-to-end latency.
func (s *Session) LastASRFinalAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastASRFinal
}

// LastActivity returns the later of CreatedAt and the last ASR final, the
// basis for the coordinator's idle-session sweep.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastASRFinal.After(s.CreatedAt) {
		return s.lastASRFinal
	}
	return s.CreatedAt
}

// SetCancelFuncs stores the cancel functions for the in-flight LLM and TTS
// work belonging to the current turn, so a barge-in can stop both without
// the coordinator needing to know which stage currently owns which
// context. Either argument may be nil to clear a slot once that stage's
// work has finished naturally.
func (s *Session) SetCancelFuncs(cancelLLM, cancelTTS func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLLM = cancelLLM
	s.cancelTTS = cancelTTS
}

// CancelInFlight invokes and clears any stored cancel functions. Safe to
// call when nothing is in flight.
func (s *Session) CancelInFlight() {
	s.mu.Lock()
	cancelLLM, cancelTTS := s.cancelLLM, s.cancelTTS
	s.cancelLLM, s.cancelTTS = nil, nil
	s.mu.Unlock()

	if cancelLLM != nil {
		cancelLLM()
	}
	if cancelTTS != nil {
		cancelTTS()
	}
}

// DrainTTSQueue empties any segments queued for publishing, used when a
// barge-in or session close must not let stale audio continue playing.
func (s *Session) DrainTTSQueue() {
	for {
		select {
		case <-s.ttsQueue:
		default:
			return
		}
	}
}

func (s *Session) IncASRChunks()  { s.mu.Lock(); s.asrChunks++; s.mu.Unlock() }
func (s *Session) IncLLMTokens(n int64) {
	s.mu.Lock()
	s.llmTokens += n
	s.mu.Unlock()
}
func (s *Session) IncTTSFrames() { s.mu.Lock(); s.ttsFrames++; s.mu.Unlock() }
func (s *Session) IncBargeIns()  { s.mu.Lock(); s.bargeIns++; s.mu.Unlock() }
func (s *Session) IncErrors()    { s.mu.Lock(); s.errors++; s.mu.Unlock() }

// Counters is a point-in-time copy of the session's running counters, used
// by the metrics layer to build a per-session summary line.
type Counters struct {
	ASRChunks int64
	LLMTokens int64
	TTSFrames int64
	BargeIns  int64
	Errors    int64
}

// Counters returns a snapshot of the session's running counters.
func (s *Session) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counters{
		ASRChunks: s.asrChunks,
		LLMTokens: s.llmTokens,
		TTSFrames: s.ttsFrames,
		BargeIns:  s.bargeIns,
		Errors:    s.errors,
	}
}

// Close releases the session's transport and stops accepting further work.
func (s *Session) Close() error {
	s.SetActive(false)
	s.CancelInFlight()
	s.DrainTTSQueue()
	s.Audio.Reset()
	if s.Transport != nil {
		return s.Transport.Close()
	}
	return nil
}
