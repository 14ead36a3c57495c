package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lokutor-ai/voxpipe/internal/retry"
)

// OpenAICompatible streams from any /v1/chat/completions-shaped endpoint
// with stream:true (OpenAI, Groq, a local vLLM server). Non-retryable 4xx
// responses are classified before the SSE body is ever read, since a
// client error never carries a usable stream.
type OpenAICompatible struct {
	apiKey string
	url    string
	model  string
	client *http.Client
	policy retry.Policy
}

func NewOpenAICompatible(apiKey, url, model string) *OpenAICompatible {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAICompatible{
		apiKey: apiKey,
		url:    url,
		model:  model,
		client: &http.Client{},
		policy: retry.DefaultPolicy(),
	}
}

func (l *OpenAICompatible) Name() string { return "llm:" + l.model }

func (l *OpenAICompatible) StreamChat(ctx context.Context, messages []Message, maxTokens int, temperature float64, onToken TokenCallback) (string, error) {
	var text string
	err := retry.Do(ctx, l.policy, nil, func(ctx context.Context) error {
		// A partial stream from a prior attempt must never leak into the
		// retried attempt's accumulation.
		text = ""
		t, err := l.streamOnce(ctx, messages, maxTokens, temperature, func(delta string) error {
			text += delta
			if onToken != nil {
				return onToken(delta)
			}
			return nil
		})
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	return text, err
}

func (l *OpenAICompatible) streamOnce(ctx context.Context, messages []Message, maxTokens int, temperature float64, onToken TokenCallback) (string, error) {
	payload := map[string]interface{}{
		"model":       l.model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": temperature,
		"stream":      true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", retry.FromHTTPStatus(resp.StatusCode, fmt.Errorf("llm provider error (status %d): %s", resp.StatusCode, errBody))
	}

	return consumeChatStream(ctx, resp.Body, onToken)
}

func consumeChatStream(ctx context.Context, body io.Reader, onToken TokenCallback) (string, error) {
	var full strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return full.String(), ctx.Err()
		}
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if json.Unmarshal([]byte(data), &chunk) != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onToken != nil {
			if err := onToken(delta); err != nil {
				return full.String(), err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("read sse stream: %w", err)
	}
	return full.String(), nil
}
