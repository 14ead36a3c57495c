// Package llm defines the streaming language-model provider contract used
// by StreamingLLM, and an OpenAI-chat-completions-compatible implementation
// grounded on two teacher/pack sources: the request/auth shape from
// pkg/providers/llm/openai.go (non-streaming, in the teacher) and the SSE
// token-stream parsing from hubenschmidt's pipeline/llm_openai.go
// (consumeCompletionsStream), combined because the teacher's own LLM
// providers never stream and the spec requires token-level streaming.
package llm

import "context"

// Message is one turn offered to the model as conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenCallback is invoked once per streamed delta as it arrives. Returning
// an error from it aborts the stream early (used to stop consuming once a
// caller has cancelled, even if the HTTP body keeps sending data).
type TokenCallback func(delta string) error

// Provider streams a chat completion token by token, returning the full
// accumulated text once the stream ends or ctx is cancelled.
type Provider interface {
	StreamChat(ctx context.Context, messages []Message, maxTokens int, temperature float64, onToken TokenCallback) (string, error)
	Name() string
}
