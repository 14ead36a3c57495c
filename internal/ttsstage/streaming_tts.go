// Package ttsstage implements StreamingTTS: consumes LLM token/sentence
// output, synthesizes each sentence-chunk segment, frames the resulting
// audio at the transport's 20ms cadence, and fans it out to the session's
// bounded TTS queue and the outbound publisher, plus the echo suppressor's
// playback record. Grounded on the teacher's ttsStartTime/ttsFirstChunkTime
// instrumentation and its cancel-on-barge-in pattern
// (managed_stream.go ttsCancel), generalized from the teacher's
// single-provider Lokutor client to the failover-wrapped Provider this
// pipeline's providers/tts package exposes.
package ttsstage

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/lokutor-ai/voxpipe/internal/audio"
	"github.com/lokutor-ai/voxpipe/internal/logging"
	"github.com/lokutor-ai/voxpipe/internal/metrics"
	"github.com/lokutor-ai/voxpipe/internal/providers/tts"
	"github.com/lokutor-ai/voxpipe/internal/session"
	"github.com/lokutor-ai/voxpipe/internal/transport"
)

// Config configures one StreamingTTS run.
type Config struct {
	ChunkSentences int
	Voice          string
	Language       string
	FrameDuration  time.Duration
	QueueDeadline  time.Duration
	TargetRate     int
}

// Stage synthesizes and publishes one turn's spoken reply.
type Stage struct {
	cfg      Config
	provider tts.Provider
	log      logging.Logger
}

func New(cfg Config, provider tts.Provider, log logging.Logger) *Stage {
	return &Stage{cfg: cfg, provider: provider, log: log}
}

// Consume reads tokens from tokens until it's closed, segmenting and
// synthesizing sentence-chunks as they complete, and a final flush once
// the channel closes. It returns once every segment has been synthesized
// and enqueued, or ctx is cancelled.
func (s *Stage) Consume(ctx context.Context, sess *session.Session, tokens <-chan string) error {
	sb := newSentenceBuffer(s.cfg.ChunkSentences)
	segment := 0 // 1-based once synthesized, per the wire schema's segment field

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tok, ok := <-tokens:
			if !ok {
				if final := sb.Flush(); final != "" {
					segment++
					if err := s.synthesizeSegment(ctx, sess, final, segment); err != nil {
						return err
					}
				}
				return nil
			}
			if ready := sb.Add(tok); ready != "" {
				segment++
				if err := s.synthesizeSegment(ctx, sess, ready, segment); err != nil {
					return err
				}
			}
		}
	}
}

func (s *Stage) synthesizeSegment(ctx context.Context, sess *session.Session, text string, segment int) error {
	start := time.Now()

	raw, sampleRate, err := s.provider.Synthesize(ctx, text, s.cfg.Voice, s.cfg.Language)
	metrics.ObserveStage("tts", time.Since(start))
	if err != nil {
		sess.IncErrors()
		metrics.Errors.WithLabelValues("tts", "synthesis").Inc()
		return err
	}

	samples := audio.BytesToInt16(raw)
	if sampleRate != s.cfg.TargetRate {
		samples = audio.Resample(samples, sampleRate, s.cfg.TargetRate)
	}

	frames := make([]transport.PCMFrame, 0, len(samples)/audio.FrameSamples+1)
	for _, f := range audio.Frame(samples) {
		frames = append(frames, transport.PCMFrame{
			Samples:           f,
			SampleRate:        s.cfg.TargetRate,
			Channels:          1,
			SamplesPerChannel: len(f),
		})
	}

	item := session.TTSQueueItem{Segment: segment, Frames: frames}
	select {
	case sess.TTSQueue() <- item:
		return nil
	case <-time.After(s.cfg.QueueDeadline):
		s.log.Warn("tts queue full, dropping segment", "session", sess.ID, "segment", segment)
		metrics.AudioFramesDropped.WithLabelValues("tts_queue_full").Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish drains sess's TTS queue, writing each frame to the transport and
// fanning it out as a base64-encoded tts_chunk datagram, until ctx is
// cancelled or the queue channel is closed. onFirstFrame, if
// non-nil, fires once — the moment the first frame of this call's first
// segment is actually written — so the caller can stamp end-to-end latency
// against it. It runs as its own goroutine, decoupled from synthesis so a
// slow publisher never blocks the next segment's synthesis.
func (s *Stage) Publish(ctx context.Context, sess *session.Session, onFirstFrame func()) {
	first := true
	for {
		select {
		case <-ctx.Done():
			sess.SetAgentSpeaking(false)
			return
		case item, ok := <-sess.TTSQueue():
			if !ok {
				sess.SetAgentSpeaking(false)
				return
			}
			s.publishItem(ctx, sess, item, &first, onFirstFrame)
		}
	}
}

func (s *Stage) publishItem(ctx context.Context, sess *session.Session, item session.TTSQueueItem, first *bool, onFirstFrame func()) {
	sess.SetAgentSpeaking(true)
	frameInterval := s.cfg.FrameDuration
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for i, frame := range item.Frames {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sess.Transport.WriteAudioFrame(ctx, frame); err != nil {
				s.log.Warn("failed to write audio frame", "session", sess.ID, "err", err)
				sess.IncErrors()
				continue
			}
			sess.Transport.PublishUnreliable(ctx, transport.Datagram{
				Type:    transport.DatagramTTSChunk,
				Audio:   base64.StdEncoding.EncodeToString(audio.Int16ToBytes(frame.Samples)),
				Segment: item.Segment,
				Frame:   i + 1,
			})
			if *first && onFirstFrame != nil {
				*first = false
				onFirstFrame()
			}
			sess.Echo.RecordPlayed(frame.Samples)
			sess.IncTTSFrames()
		}
	}
}
