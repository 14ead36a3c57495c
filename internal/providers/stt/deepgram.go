package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lokutor-ai/voxpipe/internal/audio"
	"github.com/lokutor-ai/voxpipe/internal/retry"
)

// Deepgram posts raw PCM16 directly (no WAV container, no multipart) with
// the sample rate declared in a Content-Type parameter, a materially
// different wire contract from the OpenAI-shaped providers. Grounded on
// pkg/providers/stt/deepgram.go, generalized to the pipeline's fixed
// 16kHz internal rate instead of a hardcoded 44100.
type Deepgram struct {
	apiKey     string
	url        string
	sampleRate int
	client     *http.Client
	policy     retry.Policy
}

func NewDeepgram(apiKey string, sampleRate int) *Deepgram {
	return &Deepgram{
		apiKey:     apiKey,
		url:        "https://api.deepgram.com/v1/listen",
		sampleRate: sampleRate,
		client:     &http.Client{},
		policy:     retry.DefaultPolicy(),
	}
}

func (s *Deepgram) Name() string { return "stt:deepgram" }

// Transcribe accepts a WAV buffer like the rest of the Provider interface
// but unwraps it to raw PCM16 before sending, since Deepgram wants the
// sample rate out-of-band rather than in a RIFF header.
func (s *Deepgram) Transcribe(ctx context.Context, wavBytes []byte, language string) (string, error) {
	samples, rate, err := audio.DecodeWAV(wavBytes)
	if err != nil {
		return "", fmt.Errorf("decode wav for deepgram: %w", err)
	}
	pcm := audio.Int16ToBytes(samples)

	var text string
	err = retry.Do(ctx, s.policy, nil, func(ctx context.Context) error {
		t, err := s.transcribeOnce(ctx, pcm, rate, language)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	return text, err
}

func (s *Deepgram) transcribeOnce(ctx context.Context, pcm []byte, rate int, language string) (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	params := u.Query()
	params.Set("model", "nova-2")
	params.Set("smart_format", "true")
	if language != "" {
		params.Set("language", language)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(pcm))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+s.apiKey)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d; channels=1", rate))

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", retry.FromHTTPStatus(resp.StatusCode, fmt.Errorf("deepgram error: %s (status %d)", string(respBody), resp.StatusCode))
	}

	var result struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return result.Results.Channels[0].Alternatives[0].Transcript, nil
}
