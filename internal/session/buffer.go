package session

import "sync"

// RollingBuffer is a bounded, most-recent-wins ring of 16kHz mono PCM16
// samples (spec §3, §4.1). Append is the ingress writer; Snapshot is the
// ASR reader. Both hold the mutex only for O(window) work — no I/O ever
// happens while it's held, matching the concurrency model in spec §5.
type RollingBuffer struct {
	mu       sync.Mutex
	samples  []int16
	capacity int
}

// NewRollingBuffer creates a buffer bounded to capacity samples
// (spec's default is 1.0s * 16kHz = 16000 samples).
func NewRollingBuffer(capacity int) *RollingBuffer {
	return &RollingBuffer{capacity: capacity}
}

// Append adds samples, discarding the oldest on overflow.
func (b *RollingBuffer) Append(samples []int16) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = append(b.samples, samples...)
	if len(b.samples) > b.capacity {
		b.samples = b.samples[len(b.samples)-b.capacity:]
	}
}

// Snapshot returns a copy of the current buffer contents so the reader
// never aliases the writer's backing array.
func (b *RollingBuffer) Snapshot() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int16, len(b.samples))
	copy(out, b.samples)
	return out
}

// Len reports the current sample count.
func (b *RollingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Last returns a copy of the most recent n samples (fewer if the buffer
// holds less), used by silence detection to inspect only the tail.
func (b *RollingBuffer) Last(n int) []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.samples) {
		n = len(b.samples)
	}
	out := make([]int16, n)
	copy(out, b.samples[len(b.samples)-n:])
	return out
}

// Reset empties the buffer, used on session destruction.
func (b *RollingBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = nil
}
