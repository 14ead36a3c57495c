// Package echo detects when microphone input is actually the agent's own
// synthesized speech leaking back through the transport (a common artifact
// of open-mic / speaker playback setups). It is a supplemental refinement of
// the barge-in path (SPEC_FULL §11): suppressing self-correlated audio keeps
// AudioIngress from feeding the agent's own voice back into StreamingASR and
// triggering a false barge-in. Grounded on the teacher's
// pkg/orchestrator/echo_suppression.go correlation detector, generalized
// from 44.1kHz byte buffers to 16kHz []int16 samples.
package echo

import (
	"math"
	"sync"
	"time"
)

// Suppressor tracks recently-published TTS audio and flags mic input that
// correlates strongly with it.
type Suppressor struct {
	mu         sync.Mutex
	played     []int16
	maxBufLen  int           // samples
	threshold  float64       // correlation threshold above which input is classified as echo
	silenceGap time.Duration // stop treating input as possible echo this long after last playback
	lastPlayed time.Time
	enabled    bool
}

// NewSuppressor creates a suppressor holding up to 2 seconds of played
// audio at 16kHz mono.
func NewSuppressor() *Suppressor {
	return &Suppressor{
		maxBufLen:  16000 * 2,
		threshold:  0.55,
		silenceGap: 1200 * time.Millisecond,
		enabled:    true,
	}
}

// RecordPlayed appends samples just written to the outbound audio track so
// subsequent mic input can be checked against them.
func (s *Suppressor) RecordPlayed(samples []int16) {
	if !s.enabled || len(samples) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, samples...)
	s.lastPlayed = time.Now()
	if len(s.played) > s.maxBufLen {
		s.played = s.played[len(s.played)-s.maxBufLen:]
	}
}

// IsEcho reports whether input correlates strongly enough with recently
// played audio to be treated as self-echo rather than user speech.
func (s *Suppressor) IsEcho(input []int16) bool {
	if !s.enabled || len(input) == 0 {
		return false
	}
	s.mu.Lock()
	if time.Since(s.lastPlayed) > s.silenceGap {
		s.mu.Unlock()
		return false
	}
	ref := make([]int16, len(s.played))
	copy(ref, s.played)
	threshold := s.threshold
	s.mu.Unlock()

	if len(ref) == 0 {
		return false
	}
	return correlation(input, ref) > threshold
}

// Clear forgets the playback history, called on barge-in so stale
// reference audio never suppresses genuinely new speech.
func (s *Suppressor) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = nil
}

// correlation computes the normalized cross-correlation between input and
// the tail of reference (aligned to account for playback-to-mic latency),
// clamped to [0, 1].
func correlation(input, reference []int16) float64 {
	compareLen := len(input)
	if compareLen > len(reference) {
		compareLen = len(reference)
	}
	refTail := reference[len(reference)-compareLen:]
	inTail := input[len(input)-compareLen:]

	inEnergy := energy(inTail)
	refEnergy := energy(refTail)
	if inEnergy == 0 || refEnergy == 0 {
		return 0
	}

	var dot float64
	for i := 0; i < compareLen; i++ {
		dot += float64(inTail[i]) / 32768.0 * float64(refTail[i]) / 32768.0
	}

	norm := math.Sqrt(inEnergy * refEnergy)
	if norm == 0 {
		return 0
	}
	c := dot / norm
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func energy(samples []int16) float64 {
	var e float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		e += f * f
	}
	return e
}
