// Package stt defines the speech-to-text provider contract and an
// OpenAI-compatible HTTP implementation, grounded on the teacher's
// pkg/providers/stt/openai.go multipart transcription client, generalized
// to the sliding-window caller in internal/asr and wired through the
// shared internal/retry policy rather than a single unretried Do call.
package stt

import "context"

// Provider transcribes a complete WAV buffer into text. StreamingASR calls
// this once per window slide with a growing snapshot, not per audio frame.
type Provider interface {
	// Transcribe returns the best transcription of wavBytes, a complete
	// little-endian PCM16 WAV file. language is a BCP-47-ish hint (e.g.
	// "en"); empty means auto-detect where the backend supports it.
	Transcribe(ctx context.Context, wavBytes []byte, language string) (string, error)

	// Name identifies the provider for logging and metrics labels.
	Name() string
}
