package ingress

import (
	"testing"

	"github.com/lokutor-ai/voxpipe/internal/logging"
	"github.com/lokutor-ai/voxpipe/internal/session"
	"github.com/lokutor-ai/voxpipe/internal/transport"
	"context"
)

type fakePublisher struct{}

func (f *fakePublisher) PublishReliable(ctx context.Context, d transport.Datagram) error   { return nil }
func (f *fakePublisher) PublishUnreliable(ctx context.Context, d transport.Datagram) error { return nil }
func (f *fakePublisher) WriteAudioFrame(ctx context.Context, fr transport.PCMFrame) error   { return nil }
func (f *fakePublisher) Close() error                                                      { return nil }

func newTestSession() *session.Session {
	return session.New("s1", &fakePublisher{}, 16000, 2000, 16, 16000)
}

func TestAcceptAppendsValidFrame(t *testing.T) {
	in := New(&logging.NoOpLogger{}, 16000)
	sess := newTestSession()

	samples := make([]int16, 320)
	for i := range samples {
		samples[i] = 1000
	}
	in.Accept(sess, samples, 16000, 1)

	if sess.Audio.Len() != 320 {
		t.Fatalf("expected 320 samples appended, got %d", sess.Audio.Len())
	}
}

func TestAcceptDropsEmptyFrame(t *testing.T) {
	in := New(&logging.NoOpLogger{}, 16000)
	sess := newTestSession()

	in.Accept(sess, []int16{}, 16000, 1)

	if in.MalformedCount() != 1 {
		t.Fatalf("expected 1 malformed frame counted, got %d", in.MalformedCount())
	}
	if sess.Audio.Len() != 0 {
		t.Fatal("expected nothing appended for an empty frame")
	}
}

func TestAcceptDropsBadChannelCount(t *testing.T) {
	in := New(&logging.NoOpLogger{}, 16000)
	sess := newTestSession()

	in.Accept(sess, []int16{1, 2, 3}, 16000, 3)

	if in.MalformedCount() != 1 {
		t.Fatalf("expected 1 malformed frame counted, got %d", in.MalformedCount())
	}
}

func TestAcceptResamplesToTargetRate(t *testing.T) {
	in := New(&logging.NoOpLogger{}, 16000)
	sess := newTestSession()

	samples := make([]int16, 480) // 10ms at 48kHz
	for i := range samples {
		samples[i] = 500
	}
	in.Accept(sess, samples, 48000, 1)

	if got := sess.Audio.Len(); got < 150 || got > 170 {
		t.Fatalf("expected roughly 160 samples after 48kHz->16kHz resample, got %d", got)
	}
}
