package asr

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lokutor-ai/voxpipe/internal/logging"
	"github.com/lokutor-ai/voxpipe/internal/session"
	"github.com/lokutor-ai/voxpipe/internal/transport"
)

type scriptedSTT struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (s *scriptedSTT) Name() string { return "scripted" }
func (s *scriptedSTT) Transcribe(ctx context.Context, wavBytes []byte, language string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}

type fakePublisher struct{}

func (f *fakePublisher) PublishReliable(ctx context.Context, d transport.Datagram) error   { return nil }
func (f *fakePublisher) PublishUnreliable(ctx context.Context, d transport.Datagram) error { return nil }
func (f *fakePublisher) WriteAudioFrame(ctx context.Context, fr transport.PCMFrame) error   { return nil }
func (f *fakePublisher) Close() error                                                      { return nil }

func TestRunEmitsPartialsOnSilentBuffer(t *testing.T) {
	sess := session.New("s1", &fakePublisher{}, 16000, 2000, 16, 16000)
	sess.Audio.Append(make([]int16, 16000)) // 1s of silence-level audio to start

	provider := &scriptedSTT{responses: []string{"hello", "hello world"}}
	cfg := Config{
		SlideInterval:   5 * time.Millisecond,
		SampleRate:      16000,
		SilenceDuration: 20 * time.Millisecond,
		VADThreshold:    0.9, // tail is silence (zeros), so the detector never declares speech and no final is emitted
		VADMinConfirmed: 1,
	}
	loop := NewLoop(cfg, provider, &logging.NoOpLogger{})

	var mu sync.Mutex
	var results []Result
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	loop.Run(ctx, sess, func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})

	mu.Lock()
	defer mu.Unlock()
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	sawPartial := false
	for _, r := range results {
		if !r.Final {
			sawPartial = true
		}
	}
	if !sawPartial {
		t.Fatal("expected at least one partial result before any finalization")
	}
}
