// Package ingress implements AudioIngress: the entry point for inbound
// participant audio, responsible for downmixing, resampling to the
// pipeline's internal rate, echo suppression, appending to the session's
// rolling buffer, and counting malformed frames. Grounded on the
// teacher's ManagedStream.Write (pkg/orchestrator/managed_stream.go) for
// the per-chunk processing order — echo suppression before anything else
// touches the audio — generalized to accept any source sample rate
// instead of the teacher's fixed 44.1kHz assumption.
package ingress

import (
	"fmt"

	"github.com/lokutor-ai/voxpipe/internal/audio"
	"github.com/lokutor-ai/voxpipe/internal/logging"
	"github.com/lokutor-ai/voxpipe/internal/metrics"
	"github.com/lokutor-ai/voxpipe/internal/session"
)

const logEveryNFrames = 250

// Ingress processes one session's inbound audio frames.
type Ingress struct {
	log            logging.Logger
	targetRate     int
	frameCount     int64
	malformedCount int64
}

func New(log logging.Logger, targetSampleRate int) *Ingress {
	return &Ingress{log: log, targetRate: targetSampleRate}
}

// Accept validates, downmixes, resamples, and appends one inbound audio
// frame to sess's rolling buffer. samples are interpreted as interleaved
// PCM16 at sourceRate with the given channel count. A frame that fails
// validation is dropped and counted, never propagated as an error —
// malformed input from one participant must not disrupt their session.
func (in *Ingress) Accept(sess *session.Session, samples []int16, sourceRate, channels int) {
	in.frameCount++
	if in.frameCount%logEveryNFrames == 0 {
		in.log.Debug("ingress frame checkpoint", "session", sess.ID, "frames", in.frameCount)
	}

	if err := validate(samples, sourceRate, channels); err != nil {
		in.malformedCount++
		metrics.AudioFramesDropped.WithLabelValues("malformed").Inc()
		sess.IncErrors()
		in.log.Warn("dropping malformed audio frame", "session", sess.ID, "err", err)
		return
	}

	mono := audio.Downmix(samples, channels)
	resampled := audio.Resample(mono, sourceRate, in.targetRate)

	if sess.Echo.IsEcho(resampled) {
		metrics.AudioFramesDropped.WithLabelValues("echo").Inc()
		return
	}

	sess.Audio.Append(resampled)
	metrics.AudioFramesIngested.Inc()
}

func validate(samples []int16, sourceRate, channels int) error {
	if len(samples) == 0 {
		return fmt.Errorf("empty frame")
	}
	if channels < 1 || channels > 2 {
		return fmt.Errorf("unsupported channel count %d", channels)
	}
	if len(samples)%channels != 0 {
		return fmt.Errorf("sample count %d not divisible by channel count %d", len(samples), channels)
	}
	if sourceRate < 8000 || sourceRate > 48000 {
		return fmt.Errorf("unsupported sample rate %d", sourceRate)
	}
	return nil
}

// MalformedCount reports how many frames this ingress has dropped for
// validation failures, for diagnostics and tests.
func (in *Ingress) MalformedCount() int64 { return in.malformedCount }
