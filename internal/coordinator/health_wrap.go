package coordinator

import (
	"context"

	"github.com/lokutor-ai/voxpipe/internal/health"
	llmprovider "github.com/lokutor-ai/voxpipe/internal/providers/llm"
	sttprovider "github.com/lokutor-ai/voxpipe/internal/providers/stt"
	ttsprovider "github.com/lokutor-ai/voxpipe/internal/providers/tts"
	"github.com/lokutor-ai/voxpipe/internal/session"
)

// The three wrappers below feed every provider call's outcome into the
// health monitor via RecordResult, so a string of live failures trips the
// breaker even between scheduled probes. sess is currently unused beyond
// being threaded through for a future per-session error attribution but
// kept as a field since every call site already has one in hand.

type healthRecordingSTT struct {
	sttprovider.Provider
	h    *health.Monitor
	name string
	sess *session.Session
}

func (w *healthRecordingSTT) Transcribe(ctx context.Context, wavBytes []byte, language string) (string, error) {
	text, err := w.Provider.Transcribe(ctx, wavBytes, language)
	if w.h != nil {
		w.h.RecordResult(w.name, err)
	}
	return text, err
}

type healthRecordingLLM struct {
	llmprovider.Provider
	h    *health.Monitor
	name string
	sess *session.Session
}

func (w *healthRecordingLLM) StreamChat(ctx context.Context, messages []llmprovider.Message, maxTokens int, temperature float64, onToken llmprovider.TokenCallback) (string, error) {
	text, err := w.Provider.StreamChat(ctx, messages, maxTokens, temperature, onToken)
	if w.h != nil {
		w.h.RecordResult(w.name, err)
	}
	return text, err
}

type healthRecordingTTS struct {
	ttsprovider.Provider
	h    *health.Monitor
	name string
	sess *session.Session
}

func (w *healthRecordingTTS) Synthesize(ctx context.Context, text, voice, language string) ([]byte, int, error) {
	audio, rate, err := w.Provider.Synthesize(ctx, text, voice, language)
	if w.h != nil {
		w.h.RecordResult(w.name, err)
	}
	return audio, rate, err
}

func (w *healthRecordingTTS) StreamSynthesize(ctx context.Context, text, voice, language string, onChunk ttsprovider.ChunkCallback) (int, error) {
	rate, err := w.Provider.StreamSynthesize(ctx, text, voice, language, onChunk)
	if w.h != nil {
		w.h.RecordResult(w.name, err)
	}
	return rate, err
}
