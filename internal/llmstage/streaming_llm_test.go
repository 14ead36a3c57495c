package llmstage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lokutor-ai/voxpipe/internal/logging"
	"github.com/lokutor-ai/voxpipe/internal/providers/llm"
	"github.com/lokutor-ai/voxpipe/internal/session"
	"github.com/lokutor-ai/voxpipe/internal/transport"
)

type fakePublisher struct{}

func (f *fakePublisher) PublishReliable(ctx context.Context, d transport.Datagram) error   { return nil }
func (f *fakePublisher) PublishUnreliable(ctx context.Context, d transport.Datagram) error { return nil }
func (f *fakePublisher) WriteAudioFrame(ctx context.Context, fr transport.PCMFrame) error   { return nil }
func (f *fakePublisher) Close() error                                                      { return nil }

type scriptedLLM struct {
	tokens []string
	err    error
}

func (s *scriptedLLM) Name() string { return "scripted" }
func (s *scriptedLLM) StreamChat(ctx context.Context, messages []llm.Message, maxTokens int, temperature float64, onToken llm.TokenCallback) (string, error) {
	var full string
	for _, tok := range s.tokens {
		if err := onToken(tok); err != nil {
			return full, err
		}
		full += tok
	}
	return full, s.err
}

func newTestSession() *session.Session {
	return session.New("s1", &fakePublisher{}, 16000, 2000, 16, 16000)
}

func TestGenerateCommitsHistoryOnSuccess(t *testing.T) {
	provider := &scriptedLLM{tokens: []string{"Hi", " there"}}
	stage := New(Config{MaxTokens: 100, DeltaBatch: 1, DeltaWait: time.Hour}, provider, &logging.NoOpLogger{})
	sess := newTestSession()

	full, err := stage.Generate(context.Background(), sess, "hello", func(r Result) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if full != "Hi there" {
		t.Fatalf("expected full text 'Hi there', got %q", full)
	}

	turns := sess.History.Snapshot()
	if len(turns) != 2 || turns[0].Text != "hello" || turns[1].Text != "Hi there" {
		t.Fatalf("expected history to contain the user and agent turns, got %+v", turns)
	}
}

func TestGenerateDoesNotCommitOnError(t *testing.T) {
	provider := &scriptedLLM{tokens: []string{"partial"}, err: errors.New("boom")}
	stage := New(Config{MaxTokens: 100, DeltaBatch: 1, DeltaWait: time.Hour}, provider, &logging.NoOpLogger{})
	sess := newTestSession()

	_, err := stage.Generate(context.Background(), sess, "hello", func(r Result) {})
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(sess.History.Snapshot()) != 0 {
		t.Fatal("expected no history commit when generation fails")
	}
}

func TestGenerateDoesNotCommitOnEmptyFinal(t *testing.T) {
	provider := &scriptedLLM{tokens: nil}
	stage := New(Config{MaxTokens: 100, DeltaBatch: 1, DeltaWait: time.Hour}, provider, &logging.NoOpLogger{})
	sess := newTestSession()

	var final Result
	full, err := stage.Generate(context.Background(), sess, "hello", func(r Result) {
		if r.Final {
			final = r
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if full != "" {
		t.Fatalf("expected empty completion, got %q", full)
	}
	if !final.Final || final.Text != "" {
		t.Fatalf("expected a final result with empty text, got %+v", final)
	}
	if len(sess.History.Snapshot()) != 0 {
		t.Fatal("expected no history commit when the completion is empty")
	}
}

func TestGenerateBatchesDeltasByCount(t *testing.T) {
	provider := &scriptedLLM{tokens: []string{"a", "b", "c", "d"}}
	stage := New(Config{MaxTokens: 100, DeltaBatch: 2, DeltaWait: time.Hour}, provider, &logging.NoOpLogger{})
	sess := newTestSession()

	var partials []string
	_, err := stage.Generate(context.Background(), sess, "hi", func(r Result) {
		if !r.Final {
			partials = append(partials, r.Text)
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(partials) != 2 {
		t.Fatalf("expected 2 batched partials for 4 tokens at batch size 2, got %d: %v", len(partials), partials)
	}
}
