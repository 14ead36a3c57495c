// Package llmstage implements StreamingLLM: turns a finalized user
// utterance into a token-streamed assistant reply, batching deltas for
// partial emission and committing the finished turn to the session's
// history. Grounded on the teacher's per-turn LLM timestamps
// (llmStartTime/llmEndTime in managed_stream.go) for the instrumentation
// shape and on hubenschmidt's TokenCallback pattern for the streaming
// contract; the delta-batching policy (K tokens or a minimum wait,
// whichever first) is new, since neither source batches partial emission.
package llmstage

import (
	"context"
	"time"

	"github.com/lokutor-ai/voxpipe/internal/logging"
	"github.com/lokutor-ai/voxpipe/internal/metrics"
	"github.com/lokutor-ai/voxpipe/internal/providers/llm"
	"github.com/lokutor-ai/voxpipe/internal/session"
)

// Result mirrors asr.Result's partial/final shape for the LLM stage.
type Result struct {
	Text  string
	Final bool
}

type Callback func(Result)

type Config struct {
	MaxTokens   int
	Temperature float64
	DeltaBatch  int
	DeltaWait   time.Duration
	SystemPrompt string
}

type Stage struct {
	cfg      Config
	provider llm.Provider
	log      logging.Logger
}

func New(cfg Config, provider llm.Provider, log logging.Logger) *Stage {
	return &Stage{cfg: cfg, provider: provider, log: log}
}

// Generate streams a reply to userText given sess's history, invoking cb
// with batched partials and a single final result. The final text is
// appended to history only if generation completed without cancellation
// (SPEC_FULL §12: cancelled partials are never committed).
func (s *Stage) Generate(ctx context.Context, sess *session.Session, userText string, cb Callback) (string, error) {
	start := time.Now()

	messages := s.buildMessages(sess, userText)

	batch := ""
	pendingCount := 0
	lastFlush := time.Now()

	flush := func() {
		if batch == "" {
			return
		}
		cb(Result{Text: batch, Final: false})
		sess.IncLLMTokens(int64(pendingCount))
		batch = ""
		pendingCount = 0
		lastFlush = time.Now()
	}

	full, err := s.provider.StreamChat(ctx, messages, s.cfg.MaxTokens, s.cfg.Temperature, func(delta string) error {
		batch += delta
		pendingCount++
		if pendingCount >= s.cfg.DeltaBatch || time.Since(lastFlush) >= s.cfg.DeltaWait {
			flush()
		}
		return nil
	})
	flush()

	metrics.ObserveStage("llm", time.Since(start))

	if err != nil {
		sess.IncErrors()
		metrics.Errors.WithLabelValues("llm", "generation").Inc()
		return "", err
	}

	cb(Result{Text: full, Final: true})
	if full != "" {
		sess.History.Append("user", userText, start.UnixMilli())
		sess.History.Append("agent", full, time.Now().UnixMilli())
	}
	return full, nil
}

func (s *Stage) buildMessages(sess *session.Session, userText string) []llm.Message {
	var messages []llm.Message
	if s.cfg.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: "system", Content: s.cfg.SystemPrompt})
	}
	for _, turn := range sess.History.Snapshot() {
		role := "user"
		if turn.Role == "agent" {
			role = "assistant"
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Text})
	}
	messages = append(messages, llm.Message{Role: "user", Content: userText})
	return messages
}
