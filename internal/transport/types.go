// Package transport defines the narrow contract the pipeline coordinator
// needs from whatever carries audio and control messages to and from a
// participant. Room membership, signaling, and SFU concerns are out of
// scope (SPEC_FULL §6) — this package only names the send-side surface a
// concrete transport (see webrtcpub) must implement.
package transport

import "context"

// DatagramType enumerates the small JSON control-channel messages the
// coordinator emits on the reliable channel (SPEC_FULL §6).
type DatagramType string

const (
	DatagramASRPartial DatagramType = "asr_partial"
	DatagramASRFinal   DatagramType = "asr_final"
	DatagramLLMPartial DatagramType = "llm_partial"
	DatagramLLMFinal   DatagramType = "llm_final"
	DatagramTTSChunk   DatagramType = "tts_chunk"
	DatagramAgentInterrupted DatagramType = "agent_interrupted"
	DatagramError      DatagramType = "error"
)

// Datagram is the wire shape for every control-channel message, reliable or
// unreliable. Fields are omitted by the JSON encoder when empty; this
// struct just names what a message may carry.
type Datagram struct {
	Type    DatagramType `json:"type"`
	Text    string       `json:"text,omitempty"`
	Audio   string       `json:"audio,omitempty"`
	Segment int          `json:"segment,omitempty"`
	Frame   int          `json:"frame,omitempty"`
	Code    string       `json:"code,omitempty"`
}

// PCMFrame is one framed chunk of outbound synthesized audio, always 16kHz
// mono PCM16 by the time it reaches a Publisher (SPEC_FULL §4.4, §5).
type PCMFrame struct {
	Samples           []int16
	SampleRate        int
	Channels          int
	SamplesPerChannel int
}

// Publisher is the send-side contract a session's transport handle must
// satisfy. Implementations decide how reliable/unreliable delivery and
// audio publishing actually happen (see webrtcpub for the pion/webrtc/v4
// adapter); the pipeline stages only ever see this interface.
type Publisher interface {
	// PublishReliable sends a control datagram on an ordered, retransmitted
	// channel. Used for ASR/LLM partials and finals, barge-in notices, and
	// errors — messages that must all arrive, in order.
	PublishReliable(ctx context.Context, d Datagram) error

	// PublishUnreliable sends a datagram on a best-effort channel where
	// staleness is worse than loss. StreamingTTS fans out base64-encoded
	// tts_chunk datagrams here, alongside the raw frame written to the
	// outbound track via WriteAudioFrame.
	PublishUnreliable(ctx context.Context, d Datagram) error

	// WriteAudioFrame publishes one 20ms frame of synthesized speech.
	WriteAudioFrame(ctx context.Context, frame PCMFrame) error

	// Close releases the underlying transport resources.
	Close() error
}
