// Package tts defines the text-to-speech provider contract plus a
// streaming websocket provider and an HTTP fallback provider, combined by
// Failover per SPEC_FULL §4.4/§7. Grounded on the teacher's
// pkg/providers/tts/lokutor.go (coder/websocket streaming synthesis) for
// the primary provider and hubenschmidt's pipeline/tts.go (HTTP JSON
// request, WAV response) for the fallback, since the teacher itself has no
// secondary TTS provider to fail over to.
package tts

import "context"

// ChunkCallback is invoked once per chunk of synthesized audio as it
// arrives from a streaming provider. Audio chunks are raw bytes of
// whatever codec the provider returns (here, always 16-bit PCM); callers
// that need resampling/framing do it downstream in internal/audio.
type ChunkCallback func(chunk []byte) error

// Provider synthesizes one segment of text into audio.
type Provider interface {
	// Synthesize returns the complete audio for text as little-endian
	// PCM16 mono at sampleRate.
	Synthesize(ctx context.Context, text, voice, language string) (audio []byte, sampleRate int, err error)

	// StreamSynthesize is like Synthesize but delivers audio incrementally
	// via onChunk, for providers that can start emitting before the full
	// utterance is generated.
	StreamSynthesize(ctx context.Context, text, voice, language string, onChunk ChunkCallback) (sampleRate int, err error)

	Name() string
}
