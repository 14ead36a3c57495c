// Package webrtcpub adapts a pion/webrtc/v4 PeerConnection to the
// transport.Publisher contract. Grounded on the WebRTC local-track and
// data-channel setup in iamprashant-voice-ai's channel/webrtc/streamer.go
// (TrackLocalStaticSample + media.Sample for outbound audio), adapted from
// Opus to raw PCM16 since the pipeline never transcodes audio itself
// (SPEC_FULL §4.4), and from gRPC signaling to a pair of DataChannels for
// control messages.
package webrtcpub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/lokutor-ai/voxpipe/internal/audio"
	"github.com/lokutor-ai/voxpipe/internal/logging"
	"github.com/lokutor-ai/voxpipe/internal/transport"
)

const (
	mimeTypePCM16 = "audio/L16"
)

// AudioFrameHandler receives mono PCM16 samples decoded from an inbound
// RTP track, along with the codec's clock rate.
type AudioFrameHandler func(samples []int16, sampleRate int)

// Publisher implements transport.Publisher over one PeerConnection.
type Publisher struct {
	log logging.Logger

	pc          *webrtc.PeerConnection
	audioTrack  *webrtc.TrackLocalStaticSample
	reliableDC  *webrtc.DataChannel
	unreliable  *webrtc.DataChannel
	frameDur    time.Duration
	onAudio     AudioFrameHandler
}

// New creates a PeerConnection with one outbound PCM16 audio track, a
// reliable ordered data channel, and an unreliable unordered data channel
// (MaxRetransmits=0), wired the way the teacher pack wires Opus tracks and
// gRPC signaling, but generalized to this pipeline's raw-PCM, two-channel
// control surface.
func New(log logging.Logger, sampleRate int, frameDuration time.Duration, iceServers []webrtc.ICEServer) (*Publisher, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  mimeTypePCM16,
			ClockRate: uint32(sampleRate),
			Channels:  1,
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register pcm16 codec: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithInterceptorRegistry(registry))

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  mimeTypePCM16,
		ClockRate: uint32(sampleRate),
		Channels:  1,
	}, "audio", "voxpipe")
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("new local track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		return nil, fmt.Errorf("add track: %w", err)
	}

	ordered := true
	reliable, err := pc.CreateDataChannel("control", &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create reliable data channel: %w", err)
	}

	zeroRetransmits := uint16(0)
	unordered := false
	unreliable, err := pc.CreateDataChannel("control-unreliable", &webrtc.DataChannelInit{
		Ordered:        &unordered,
		MaxRetransmits: &zeroRetransmits,
	})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create unreliable data channel: %w", err)
	}

	p := &Publisher{
		log:        log,
		pc:         pc,
		audioTrack: track,
		reliableDC: reliable,
		unreliable: unreliable,
		frameDur:   frameDuration,
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.log.Info("peer connection state changed", "state", state.String())
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		p.readRemoteTrack(remote)
	})

	return p, nil
}

// PeerConnection exposes the underlying connection for offer/answer
// exchange, which is a signaling concern this package doesn't own.
func (p *Publisher) PeerConnection() *webrtc.PeerConnection {
	return p.pc
}

// SetAudioFrameHandler registers the callback invoked with decoded PCM16
// samples from the browser's inbound microphone track. Must be called
// before the remote offer is applied to avoid racing OnTrack.
func (p *Publisher) SetAudioFrameHandler(fn AudioFrameHandler) {
	p.onAudio = fn
}

// readRemoteTrack pulls RTP packets off the inbound audio track and
// forwards their raw big-endian PCM16 payload (RFC 3551 L16) to onAudio
// until the track ends or the peer connection closes.
func (p *Publisher) readRemoteTrack(remote *webrtc.TrackRemote) {
	rate := int(remote.Codec().ClockRate)
	for {
		packet, _, err := remote.ReadRTP()
		if err != nil {
			return
		}
		if p.onAudio == nil || len(packet.Payload) < 2 {
			continue
		}
		samples := make([]int16, len(packet.Payload)/2)
		for i := range samples {
			samples[i] = int16(packet.Payload[2*i])<<8 | int16(packet.Payload[2*i+1])
		}
		p.onAudio(samples, rate)
	}
}

func (p *Publisher) PublishReliable(ctx context.Context, d transport.Datagram) error {
	return send(p.reliableDC, d)
}

func (p *Publisher) PublishUnreliable(ctx context.Context, d transport.Datagram) error {
	return send(p.unreliable, d)
}

func send(dc *webrtc.DataChannel, d transport.Datagram) error {
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fmt.Errorf("data channel not open")
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal datagram: %w", err)
	}
	return dc.Send(payload)
}

func (p *Publisher) WriteAudioFrame(ctx context.Context, frame transport.PCMFrame) error {
	return p.audioTrack.WriteSample(media.Sample{
		Data:     audio.Int16ToBytes(frame.Samples),
		Duration: p.frameDur,
	})
}

func (p *Publisher) Close() error {
	return p.pc.Close()
}
