// Package pipelineerr centralizes the sentinel errors shared across stages,
// following the teacher's pkg/orchestrator/errors.go pattern.
package pipelineerr

import "errors"

var (
	ErrEmptyTranscription = errors.New("transcription returned empty text")
	ErrTranscriptionFailed = errors.New("speech-to-text transcription failed")
	ErrLLMFailed           = errors.New("language model generation failed")
	ErrTTSFailed           = errors.New("text-to-speech synthesis failed")
	ErrNilProvider         = errors.New("required provider is nil")
	ErrContextCancelled    = errors.New("operation cancelled by context")

	// ErrQuotaExceeded is returned synchronously from CreateSession when the
	// coordinator is already at MaxConcurrentSessions.
	ErrQuotaExceeded = errors.New("concurrent session quota exceeded")

	// ErrMalformedDatagram marks an inbound datagram that could not be
	// parsed. No code in this module returns it; it is exported for a
	// transport that parses inbound datagrams to report with.
	ErrMalformedDatagram = errors.New("malformed inbound datagram")

	// ErrProviderFailoverExhausted is returned when both the primary and the
	// fallback TTS provider fail for a segment.
	ErrProviderFailoverExhausted = errors.New("primary and fallback provider both failed")

	// ErrSessionNotFound is returned by coordinator lookups for an unknown
	// session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrClientError marks a non-retryable 4xx response from a remote
	// service; retry helpers use errors.Is against this to stop retrying.
	ErrClientError = errors.New("client protocol error")
)
