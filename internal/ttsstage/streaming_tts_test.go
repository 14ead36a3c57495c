package ttsstage

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/lokutor-ai/voxpipe/internal/audio"
	"github.com/lokutor-ai/voxpipe/internal/logging"
	"github.com/lokutor-ai/voxpipe/internal/providers/tts"
	"github.com/lokutor-ai/voxpipe/internal/session"
	"github.com/lokutor-ai/voxpipe/internal/transport"
)

type fakePublisher struct {
	mu         sync.Mutex
	frames     []transport.PCMFrame
	unreliable []transport.Datagram
}

func (f *fakePublisher) PublishReliable(ctx context.Context, d transport.Datagram) error { return nil }
func (f *fakePublisher) PublishUnreliable(ctx context.Context, d transport.Datagram) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreliable = append(f.unreliable, d)
	return nil
}
func (f *fakePublisher) WriteAudioFrame(ctx context.Context, fr transport.PCMFrame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	return nil
}
func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakePublisher) chunks() []transport.Datagram {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transport.Datagram, len(f.unreliable))
	copy(out, f.unreliable)
	return out
}

type fakeTTS struct{}

func (f *fakeTTS) Name() string { return "fake" }
func (f *fakeTTS) Synthesize(ctx context.Context, text, voice, language string) ([]byte, int, error) {
	samples := make([]int16, audio.FrameSamples*2)
	for i := range samples {
		samples[i] = 100
	}
	return audio.Int16ToBytes(samples), 16000, nil
}
func (f *fakeTTS) StreamSynthesize(ctx context.Context, text, voice, language string, onChunk tts.ChunkCallback) (int, error) {
	return 0, nil
}

func newTestSession(pub *fakePublisher) *session.Session {
	return session.New("s1", pub, 16000, 2000, 16, 16000)
}

func TestConsumeSynthesizesOnSentenceBoundary(t *testing.T) {
	pub := &fakePublisher{}
	sess := newTestSession(pub)
	stage := New(Config{ChunkSentences: 1, FrameDuration: time.Millisecond, QueueDeadline: time.Second, TargetRate: 16000}, &fakeTTS{}, &logging.NoOpLogger{})

	tokens := make(chan string, 4)
	tokens <- "Hello. "
	close(tokens)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := stage.Consume(ctx, sess, tokens); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case item := <-sess.TTSQueue():
		if len(item.Frames) == 0 {
			t.Fatal("expected synthesized frames in the queued segment")
		}
	default:
		t.Fatal("expected a segment to be queued")
	}
}

func TestPublishWritesFramesAndRecordsEcho(t *testing.T) {
	pub := &fakePublisher{}
	sess := newTestSession(pub)
	stage := New(Config{ChunkSentences: 1, FrameDuration: time.Millisecond, QueueDeadline: time.Second, TargetRate: 16000}, &fakeTTS{}, &logging.NoOpLogger{})

	samples := make([]int16, audio.FrameSamples)
	for i := range samples {
		samples[i] = 1000
	}
	frame := transport.PCMFrame{Samples: samples, SampleRate: 16000, Channels: 1, SamplesPerChannel: audio.FrameSamples}
	sess.TTSQueue() <- session.TTSQueueItem{Segment: 0, Frames: []transport.PCMFrame{frame}}
	close(sess.TTSQueue())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	stage.Publish(ctx, sess, nil)

	if pub.frameCount() != 1 {
		t.Fatalf("expected 1 frame published, got %d", pub.frameCount())
	}
	if sess.IsAgentSpeaking() {
		t.Fatal("expected agent speaking flag cleared once the queue closes")
	}
	if !sess.Echo.IsEcho(samples) {
		t.Fatal("expected the published frame to be recorded as played audio for echo suppression")
	}
}

func TestPublishEmitsBase64TTSChunksAndFiresFirstFrameOnce(t *testing.T) {
	pub := &fakePublisher{}
	sess := newTestSession(pub)
	stage := New(Config{ChunkSentences: 1, FrameDuration: time.Millisecond, QueueDeadline: time.Second, TargetRate: 16000}, &fakeTTS{}, &logging.NoOpLogger{})

	frame1 := transport.PCMFrame{Samples: make([]int16, audio.FrameSamples), SampleRate: 16000, Channels: 1, SamplesPerChannel: audio.FrameSamples}
	frame2 := transport.PCMFrame{Samples: make([]int16, audio.FrameSamples), SampleRate: 16000, Channels: 1, SamplesPerChannel: audio.FrameSamples}
	sess.TTSQueue() <- session.TTSQueueItem{Segment: 1, Frames: []transport.PCMFrame{frame1, frame2}}
	close(sess.TTSQueue())

	var firstFrameCalls int
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	stage.Publish(ctx, sess, func() { firstFrameCalls++ })

	if firstFrameCalls != 1 {
		t.Fatalf("expected onFirstFrame to fire exactly once, got %d", firstFrameCalls)
	}

	chunks := pub.chunks()
	if len(chunks) != 2 {
		t.Fatalf("expected 2 tts_chunk datagrams, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Type != transport.DatagramTTSChunk {
			t.Fatalf("expected type tts_chunk, got %q", c.Type)
		}
		if c.Segment != 1 {
			t.Fatalf("expected segment 1, got %d", c.Segment)
		}
		if c.Frame != i+1 {
			t.Fatalf("expected 1-based frame index %d, got %d", i+1, c.Frame)
		}
		if c.Audio == "" {
			t.Fatal("expected non-empty base64 audio payload")
		}
		if decoded, err := base64.StdEncoding.DecodeString(c.Audio); err != nil || len(decoded) != audio.FrameBytes {
			t.Fatalf("expected %d decoded bytes, got %d (err %v)", audio.FrameBytes, len(decoded), err)
		}
	}
}
