// Command localmic runs the pipeline coordinator against the local
// microphone and speakers instead of a WebRTC peer, for development and
// demoing without a browser client. Grounded on the teacher's
// cmd/agent/main.go malgo capture/playback loop, adapted from the
// teacher's single in-process Orchestrator call into a transport.Publisher
// implementation the coordinator can treat like any other session.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"

	"github.com/lokutor-ai/voxpipe/internal/audio"
	"github.com/lokutor-ai/voxpipe/internal/config"
	"github.com/lokutor-ai/voxpipe/internal/coordinator"
	"github.com/lokutor-ai/voxpipe/internal/logging"
	llmprovider "github.com/lokutor-ai/voxpipe/internal/providers/llm"
	sttprovider "github.com/lokutor-ai/voxpipe/internal/providers/stt"
	ttsprovider "github.com/lokutor-ai/voxpipe/internal/providers/tts"
	"github.com/lokutor-ai/voxpipe/internal/transport"
)

// speakerPublisher plays outbound audio straight to the default output
// device and logs datagrams to stdout instead of sending them over a data
// channel, standing in for transport.Publisher in a local, transport-free
// demo.
type speakerPublisher struct {
	mu      sync.Mutex
	pending []byte
	closed  bool
}

func newSpeakerPublisher() *speakerPublisher {
	return &speakerPublisher{}
}

func (p *speakerPublisher) PublishReliable(ctx context.Context, d transport.Datagram) error {
	fmt.Printf("[%s] %s\n", d.Type, d.Text)
	return nil
}

func (p *speakerPublisher) PublishUnreliable(ctx context.Context, d transport.Datagram) error {
	return p.PublishReliable(ctx, d)
}

func (p *speakerPublisher) WriteAudioFrame(ctx context.Context, frame transport.PCMFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.pending = append(p.pending, audio.Int16ToBytes(frame.Samples)...)
	return nil
}

func (p *speakerPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// pullPlayback drains up to len(out) bytes of queued TTS audio for the
// malgo playback callback, zero-filling the remainder.
func (p *speakerPublisher) pullPlayback(out []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(out, p.pending)
	p.pending = p.pending[n:]
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("note: no .env file found, using system environment variables")
	}

	cfg := config.Load()
	logger := logging.New("voxpipe-localmic")

	providers := coordinator.Providers{
		STT: sttprovider.NewOpenAICompatible(os.Getenv("OPENAI_API_KEY"), "https://api.openai.com/v1/audio/transcriptions", cfg.ASRModel),
		LLM: llmprovider.NewOpenAICompatible(os.Getenv("OPENAI_API_KEY"), "https://api.openai.com/v1/chat/completions", cfg.LLMModel),
		TTS: ttsprovider.NewFailover(
			ttsprovider.NewStreamingWS(os.Getenv("LOKUTOR_API_KEY"), os.Getenv("LOKUTOR_TTS_HOST"), cfg.SampleRate),
			ttsprovider.NewHTTP("https://api.openai.com/v1/audio/speech"),
		),
	}

	coord := coordinator.New(cfg, logger, providers, nil, nil, "You are a helpful and concise voice assistant. Use short sentences suitable for speech.")

	pub := newSpeakerPublisher()
	sess, err := coord.CreateSession("local_user", pub)
	if err != nil {
		log.Fatalf("create session: %v", err)
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Fatalf("init audio context: %v", err)
	}
	defer mctx.Uninit()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.SampleRate)

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		if pInput != nil {
			samples := audio.BytesToInt16(pInput)
			coord.IngestAudio(sess.ID, samples, cfg.SampleRate, 1)
		}
		if pOutput != nil {
			pub.pullPlayback(pOutput)
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		log.Fatalf("init audio device: %v", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		log.Fatalf("start audio device: %v", err)
	}

	fmt.Println("Listening. Press Ctrl+C to exit.")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	fmt.Println("\nShutting down...")
	coord.CloseSession(sess.ID)
}
