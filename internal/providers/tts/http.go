package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lokutor-ai/voxpipe/internal/audio"
	"github.com/lokutor-ai/voxpipe/internal/retry"
)

// HTTP is the fallback provider: a single request/response JSON-in,
// WAV-out synthesis endpoint (SPEC_FULL §6 POST /tts), grounded on
// hubenschmidt's pipeline/tts.go Piper client, adapted from a fixed voice
// map to passthrough voice/language fields and from raw audio bytes to a
// decoded PCM16 buffer so callers never need to know the wire format.
type HTTP struct {
	url    string
	client *http.Client
	policy retry.Policy
}

func NewHTTP(url string) *HTTP {
	return &HTTP{url: url, client: &http.Client{}, policy: retry.TTSPolicy()}
}

func (h *HTTP) Name() string { return "tts:http" }

type httpRequest struct {
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
	Voice       string `json:"voice,omitempty"`
	Language    string `json:"language,omitempty"`
}

func (h *HTTP) Synthesize(ctx context.Context, text, voice, language string) ([]byte, int, error) {
	var samples []int16
	var sampleRate int
	err := retry.Do(ctx, h.policy, nil, func(ctx context.Context) error {
		wav, err := h.synthesizeOnce(ctx, text, voice, language)
		if err != nil {
			return err
		}
		s, rate, err := audio.DecodeWAV(wav)
		if err != nil {
			return fmt.Errorf("decode tts response wav: %w", err)
		}
		samples, sampleRate = s, rate
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return audio.Int16ToBytes(samples), sampleRate, nil
}

// StreamSynthesize has no incremental form over this provider; it
// synthesizes the whole segment and delivers it as a single chunk.
func (h *HTTP) StreamSynthesize(ctx context.Context, text, voice, language string, onChunk ChunkCallback) (int, error) {
	data, sampleRate, err := h.Synthesize(ctx, text, voice, language)
	if err != nil {
		return 0, err
	}
	if err := onChunk(data); err != nil {
		return 0, err
	}
	return sampleRate, nil
}

func (h *HTTP) synthesizeOnce(ctx context.Context, text, voice, language string) ([]byte, error) {
	reqBody, err := json.Marshal(httpRequest{Text: text, Voice: voice, Language: language})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, retry.FromHTTPStatus(resp.StatusCode, fmt.Errorf("tts fallback error (status %d): %s", resp.StatusCode, errBody))
	}

	return io.ReadAll(resp.Body)
}
