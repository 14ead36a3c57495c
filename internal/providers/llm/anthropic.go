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

// Anthropic streams from /v1/messages with stream:true. The request shape
// (system prompt pulled out of the message list, x-api-key/anthropic-version
// headers) is grounded on pkg/providers/llm/anthropic.go; the SSE event
// parsing (content_block_delta carrying delta.text) is new, since the
// teacher's Anthropic client only ever does one non-streaming Complete.
type Anthropic struct {
	apiKey string
	url    string
	model  string
	client *http.Client
	policy retry.Policy
}

func NewAnthropic(apiKey, model string) *Anthropic {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	return &Anthropic{
		apiKey: apiKey,
		url:    "https://api.anthropic.com/v1/messages",
		model:  model,
		client: &http.Client{},
		policy: retry.DefaultPolicy(),
	}
}

func (l *Anthropic) Name() string { return "llm:anthropic:" + l.model }

func (l *Anthropic) StreamChat(ctx context.Context, messages []Message, maxTokens int, temperature float64, onToken TokenCallback) (string, error) {
	var text string
	err := retry.Do(ctx, l.policy, nil, func(ctx context.Context) error {
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

func (l *Anthropic) streamOnce(ctx context.Context, messages []Message, maxTokens int, temperature float64, onToken TokenCallback) (string, error) {
	var system string
	var anthropicMessages []map[string]string
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		anthropicMessages = append(anthropicMessages, map[string]string{"role": m.Role, "content": m.Content})
	}

	payload := map[string]interface{}{
		"model":       l.model,
		"messages":    anthropicMessages,
		"max_tokens":  maxTokens,
		"temperature": temperature,
		"stream":      true,
	}
	if system != "" {
		payload["system"] = system
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal messages request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", l.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", retry.FromHTTPStatus(resp.StatusCode, fmt.Errorf("anthropic llm error (status %d): %s", resp.StatusCode, errBody))
	}

	return consumeAnthropicStream(ctx, resp.Body, onToken)
}

func consumeAnthropicStream(ctx context.Context, body io.Reader, onToken TokenCallback) (string, error) {
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

		var event struct {
			Type  string `json:"type"`
			Delta struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"delta"`
		}
		if json.Unmarshal([]byte(data), &event) != nil {
			continue
		}
		if event.Type != "content_block_delta" || event.Delta.Text == "" {
			continue
		}
		full.WriteString(event.Delta.Text)
		if onToken != nil {
			if err := onToken(event.Delta.Text); err != nil {
				return full.String(), err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("read sse stream: %w", err)
	}
	return full.String(), nil
}
