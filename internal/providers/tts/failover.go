package tts

import (
	"context"
	"errors"

	"github.com/lokutor-ai/voxpipe/internal/pipelineerr"
)

// Failover tries primary first; if it returns an error, it tries fallback
// once before giving up. This is the provider-level failover named in
// SPEC_FULL §4.4/§7 — distinct from the per-request retry each provider
// already does internally.
type Failover struct {
	primary  Provider
	fallback Provider
}

func NewFailover(primary, fallback Provider) *Failover {
	return &Failover{primary: primary, fallback: fallback}
}

func (f *Failover) Name() string { return "tts:failover(" + f.primary.Name() + "," + f.fallback.Name() + ")" }

func (f *Failover) Synthesize(ctx context.Context, text, voice, language string) ([]byte, int, error) {
	audio, rate, err := f.primary.Synthesize(ctx, text, voice, language)
	if err == nil {
		return audio, rate, nil
	}
	if ctx.Err() != nil {
		return nil, 0, ctx.Err()
	}

	audio, rate, fbErr := f.fallback.Synthesize(ctx, text, voice, language)
	if fbErr == nil {
		return audio, rate, nil
	}
	return nil, 0, errors.Join(pipelineerr.ErrProviderFailoverExhausted, err, fbErr)
}

func (f *Failover) StreamSynthesize(ctx context.Context, text, voice, language string, onChunk ChunkCallback) (int, error) {
	rate, err := f.primary.StreamSynthesize(ctx, text, voice, language, onChunk)
	if err == nil {
		return rate, nil
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	rate, fbErr := f.fallback.StreamSynthesize(ctx, text, voice, language, onChunk)
	if fbErr == nil {
		return rate, nil
	}
	return 0, errors.Join(pipelineerr.ErrProviderFailoverExhausted, err, fbErr)
}
