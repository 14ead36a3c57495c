package tts

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// StreamingWS is the primary provider: a persistent websocket connection to
// a streaming synthesis backend, reused across segments the way the
// teacher's LokutorTTS keeps one connection alive rather than dialing per
// request.
type StreamingWS struct {
	apiKey     string
	host       string
	sampleRate int

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewStreamingWS creates a client against host (e.g. "api.lokutor.com"),
// synthesizing at sampleRate (16000 to match the rest of the pipeline,
// avoiding a resample round-trip on the hot path).
func NewStreamingWS(apiKey, host string, sampleRate int) *StreamingWS {
	return &StreamingWS{apiKey: apiKey, host: host, sampleRate: sampleRate}
}

func (t *StreamingWS) Name() string { return "tts:streaming:" + t.host }

func (t *StreamingWS) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: "wss", Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("connect to tts backend: %w", err)
	}
	t.conn = conn
	return conn, nil
}

func (t *StreamingWS) Synthesize(ctx context.Context, text, voice, language string) ([]byte, int, error) {
	var audio []byte
	sampleRate, err := t.StreamSynthesize(ctx, text, voice, language, func(chunk []byte) error {
		audio = append(audio, chunk...)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return audio, sampleRate, nil
}

func (t *StreamingWS) StreamSynthesize(ctx context.Context, text, voice, language string, onChunk ChunkCallback) (int, error) {
	conn, err := t.getConn(ctx)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	req := map[string]interface{}{
		"text":        text,
		"voice":       voice,
		"lang":        language,
		"sample_rate": t.sampleRate,
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return 0, fmt.Errorf("send synthesis request: %w", err)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return 0, fmt.Errorf("read from tts backend: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onChunk(payload); err != nil {
				return t.sampleRate, err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return t.sampleRate, nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return 0, fmt.Errorf("tts backend error: %s", msg)
			}
		}
	}
}

// Close tears down the persistent connection, if any.
func (t *StreamingWS) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
		return err
	}
	return nil
}
