// Package asr implements StreamingASR: a sliding-window transcription
// loop that snapshots a session's rolling audio buffer on a fixed slide
// interval, transcribes the growing window, and finalizes an utterance
// once the RMS-based detector declares silence. Grounded on the window/
// slide timing model from SPEC_FULL §4.2 and the teacher's per-turn
// instrumentation fields in ManagedStream (sttStartTime/sttEndTime),
// adapted from the teacher's provider-driven streaming STT (which some
// providers support natively) to a uniform snapshot-and-retranscribe loop
// that works with any batch Provider.
package asr

import (
	"context"
	"errors"
	"time"

	"github.com/lokutor-ai/voxpipe/internal/audio"
	"github.com/lokutor-ai/voxpipe/internal/logging"
	"github.com/lokutor-ai/voxpipe/internal/metrics"
	"github.com/lokutor-ai/voxpipe/internal/pipelineerr"
	"github.com/lokutor-ai/voxpipe/internal/providers/stt"
	"github.com/lokutor-ai/voxpipe/internal/retry"
	"github.com/lokutor-ai/voxpipe/internal/session"
	"github.com/lokutor-ai/voxpipe/internal/vad"
)

// Result is one step of ASR output delivered to the coordinator's
// callback: either a partial (growing, unfinalized) transcript or a final
// one tied to an utterance boundary.
type Result struct {
	Text        string
	Final       bool
	SpeechStart bool
	AtFrame     int64
}

// Callback receives ASR results as they're produced. It is called
// synchronously from the loop goroutine, so the next slide waits for it
// to return.
type Callback func(Result)

// Config configures one StreamingASR loop.
type Config struct {
	SlideInterval   time.Duration
	SampleRate      int
	Language        string
	SilenceDuration time.Duration
	VADThreshold    float64
	VADMinConfirmed int
}

// Loop runs the snapshot-transcribe-finalize cycle for one session until
// ctx is cancelled.
type Loop struct {
	cfg      Config
	provider stt.Provider
	log      logging.Logger
	detector *vad.Detector
}

func NewLoop(cfg Config, provider stt.Provider, log logging.Logger) *Loop {
	return &Loop{
		cfg:      cfg,
		provider: provider,
		log:      log,
		detector: vad.New(cfg.VADThreshold, cfg.SilenceDuration, cfg.VADMinConfirmed),
	}
}

// Run drives the loop for sess, invoking cb with each partial/final
// result, until ctx is done. It returns when the context is cancelled;
// any in-flight transcription request is aborted via the same ctx.
func (l *Loop) Run(ctx context.Context, sess *session.Session, cb Callback) {
	ticker := time.NewTicker(l.cfg.SlideInterval)
	defer ticker.Stop()

	var lastText string

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := sess.Audio.Snapshot()
			if len(snapshot) == 0 {
				continue
			}

			tail := sess.Audio.Last(320)
			rms := audio.RMS(tail)
			event := l.detector.Process(rms, time.Now())
			if event.Type == vad.SpeechStart {
				cb(Result{SpeechStart: true, AtFrame: int64(len(snapshot))})
			}

			text, err := l.transcribe(ctx, snapshot)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				sess.IncErrors()
				metrics.Errors.WithLabelValues("asr", classify(err)).Inc()
				l.log.Warn("asr transcription failed", "session", sess.ID, "err", err)
				continue
			}

			sess.IncASRChunks()
			if text != lastText && text != "" {
				lastText = text
				cb(Result{Text: text, Final: false, AtFrame: int64(len(snapshot))})
			}

			if event.Type == vad.SpeechEnd {
				final := lastText
				lastText = ""
				sess.Audio.Reset()
				sess.TouchASRFinal()
				if final != "" {
					cb(Result{Text: final, Final: true, AtFrame: int64(len(snapshot))})
				}
			}
		}
	}
}

func (l *Loop) transcribe(ctx context.Context, samples []int16) (string, error) {
	start := time.Now()
	wav := audio.EncodeWAV(samples, l.cfg.SampleRate)
	text, err := l.provider.Transcribe(ctx, wav, l.cfg.Language)
	metrics.ObserveStage("asr", time.Since(start))
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", nil
	}
	return text, nil
}

func classify(err error) string {
	if retry.IsClientError(err) {
		return "client"
	}
	if errors.Is(err, pipelineerr.ErrTranscriptionFailed) {
		return "transcription"
	}
	return "transient"
}
