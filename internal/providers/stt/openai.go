package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/lokutor-ai/voxpipe/internal/retry"
)

// OpenAICompatible talks to any /v1/audio/transcriptions-shaped endpoint —
// OpenAI, Groq, or a self-hosted whisper server exposing the same contract
// (SPEC_FULL §6). Retries go through internal/retry rather than a single
// http.DefaultClient.Do, so transient failures (5xx, connection errors)
// are retried and any 4xx response, including 429, is not.
type OpenAICompatible struct {
	apiKey string
	url    string
	model  string
	client *http.Client
	policy retry.Policy
}

// NewOpenAICompatible builds a client against url (e.g.
// "https://api.openai.com/v1/audio/transcriptions" or Groq's equivalent).
func NewOpenAICompatible(apiKey, url, model string) *OpenAICompatible {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &OpenAICompatible{
		apiKey: apiKey,
		url:    url,
		model:  model,
		client: &http.Client{},
		policy: retry.DefaultPolicy(),
	}
}

func (s *OpenAICompatible) Name() string { return "stt:" + s.model }

func (s *OpenAICompatible) Transcribe(ctx context.Context, wavBytes []byte, language string) (string, error) {
	var text string
	err := retry.Do(ctx, s.policy, nil, func(ctx context.Context) error {
		t, err := s.transcribeOnce(ctx, wavBytes, language)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	return text, err
}

func (s *OpenAICompatible) transcribeOnce(ctx context.Context, wavBytes []byte, language string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", s.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wavBytes); err != nil {
		return "", fmt.Errorf("write wav bytes: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", retry.FromHTTPStatus(resp.StatusCode, fmt.Errorf("stt provider error: %s (status %d)", string(respBody), resp.StatusCode))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return result.Text, nil
}
