// Package coordinator implements PipelineCoordinator: the top-level
// session registry that wires AudioIngress, StreamingASR, StreamingLLM,
// and StreamingTTS together per session, enforces the concurrent-session
// quota, and handles barge-in. Grounded on the teacher's Orchestrator
// (pkg/orchestrator/orchestrator.go) for the provider-holding,
// mutex-guarded top-level type and on ManagedStream's barge-in sequence
// (cancel in-flight work, clear queued audio, restart listening) for the
// interruption handling, generalized from one teacher-managed stream per
// process to a registry of many concurrent sessions.
package coordinator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lokutor-ai/voxpipe/internal/asr"
	"github.com/lokutor-ai/voxpipe/internal/config"
	"github.com/lokutor-ai/voxpipe/internal/fanout"
	"github.com/lokutor-ai/voxpipe/internal/health"
	"github.com/lokutor-ai/voxpipe/internal/ingress"
	"github.com/lokutor-ai/voxpipe/internal/llmstage"
	"github.com/lokutor-ai/voxpipe/internal/logging"
	"github.com/lokutor-ai/voxpipe/internal/metrics"
	"github.com/lokutor-ai/voxpipe/internal/pipelineerr"
	llmprovider "github.com/lokutor-ai/voxpipe/internal/providers/llm"
	sttprovider "github.com/lokutor-ai/voxpipe/internal/providers/stt"
	ttsprovider "github.com/lokutor-ai/voxpipe/internal/providers/tts"
	"github.com/lokutor-ai/voxpipe/internal/session"
	"github.com/lokutor-ai/voxpipe/internal/transport"
	"github.com/lokutor-ai/voxpipe/internal/ttsstage"
)

// Providers bundles the three remote-service clients the coordinator
// wires into every session's stages.
type Providers struct {
	STT sttprovider.Provider
	LLM llmprovider.Provider
	TTS ttsprovider.Provider
}

type runningSession struct {
	sess       *session.Session
	cancelRoot context.CancelFunc
}

// Coordinator owns the session registry and the per-session stage
// wiring.
type Coordinator struct {
	cfg       config.Config
	log       logging.Logger
	providers Providers
	health    *health.Monitor
	metricsM  *metrics.Manager
	ingress   *ingress.Ingress
	systemPrompt string

	mu       sync.Mutex
	sessions map[string]*runningSession
}

func New(cfg config.Config, log logging.Logger, providers Providers, h *health.Monitor, m *metrics.Manager, systemPrompt string) *Coordinator {
	return &Coordinator{
		cfg:          cfg,
		log:          log,
		providers:    providers,
		health:       h,
		metricsM:     m,
		ingress:      ingress.New(log, cfg.SampleRate),
		systemPrompt: systemPrompt,
		sessions:     make(map[string]*runningSession),
	}
}

// CreateSession registers a new session bound to pub and starts its
// StreamingASR goroutine. It enforces MaxConcurrentSess
// before any goroutine is spawned.
func (c *Coordinator) CreateSession(participantID string, pub transport.Publisher) (*session.Session, error) {
	c.mu.Lock()
	if len(c.sessions) >= c.cfg.MaxConcurrentSess {
		c.mu.Unlock()
		return nil, pipelineerr.ErrQuotaExceeded
	}

	sess := session.New(participantID, pub, c.cfg.SampleRate, c.cfg.MemoryContextTokens, c.cfg.TTSQueueCapacity, c.cfg.SampleRate)
	rootCtx, cancel := context.WithCancel(context.Background())
	c.sessions[sess.ID] = &runningSession{sess: sess, cancelRoot: cancel}
	c.mu.Unlock()

	metrics.SessionsTotal.Inc()
	metrics.SessionsActive.Set(float64(len(c.sessions)))

	go c.runASR(rootCtx, sess)

	c.log.Info("session created", "session", sess.ID)
	return sess, nil
}

// IngestAudio feeds one inbound frame through AudioIngress for sessionID.
func (c *Coordinator) IngestAudio(sessionID string, samples []int16, sourceRate, channels int) error {
	sess, err := c.lookup(sessionID)
	if err != nil {
		return err
	}
	c.ingress.Accept(sess, samples, sourceRate, channels)
	return nil
}

func (c *Coordinator) lookup(sessionID string) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs, ok := c.sessions[sessionID]
	if !ok {
		return nil, pipelineerr.ErrSessionNotFound
	}
	return rs.sess, nil
}

func (c *Coordinator) runASR(ctx context.Context, sess *session.Session) {
	loop := asr.NewLoop(asr.Config{
		SlideInterval:   c.cfg.ASRSlide,
		SampleRate:      c.cfg.SampleRate,
		Language:        c.cfg.ASRLanguage,
		SilenceDuration: c.cfg.ASRSilence,
		VADThreshold:    0.02,
		VADMinConfirmed: 3,
	}, c.wrapSTT(sess), c.log)

	loop.Run(ctx, sess, func(r asr.Result) {
		if r.SpeechStart {
			// Early signal only; whether this actually interrupts the
			// agent is decided once the utterance finalizes and its word
			// count can be checked against MinWordsToInterrupt.
			return
		}
		datagramType := transport.DatagramASRPartial
		if r.Final {
			datagramType = transport.DatagramASRFinal
		}
		sess.Transport.PublishReliable(ctx, transport.Datagram{Type: datagramType, Text: r.Text})

		if r.Final {
			if sess.IsAgentSpeaking() {
				if c.cfg.MinWordsToInterrupt > 1 && len(strings.Fields(r.Text)) < c.cfg.MinWordsToInterrupt {
					// Short backchannel ("mm-hmm", "yeah") while the agent
					// is speaking; discard rather than interrupt.
					return
				}
				c.handleBargeIn(sess)
			}
			go c.handleUtterance(ctx, sess, r.Text)
		}
	})
}

// handleBargeIn implements the interruption sequence from SPEC_FULL §11:
// cancel the agent's in-flight LLM/TTS work, drop whatever's still
// queued, and notify the client, grounded on the teacher's
// ManagedStream.internalInterrupt sequence.
func (c *Coordinator) handleBargeIn(sess *session.Session) {
	sess.CancelInFlight()
	sess.DrainTTSQueue()
	sess.Echo.Clear()
	sess.SetAgentSpeaking(false)
	sess.IncBargeIns()
	metrics.BargeIns.Inc()

	ctx := context.Background()
	sess.Transport.PublishReliable(ctx, transport.Datagram{Type: transport.DatagramAgentInterrupted})
	c.log.Info("barge-in handled", "session", sess.ID)
}

// handleUtterance runs one full LLM+TTS turn for a finalized ASR
// transcript. It owns a turn-scoped context so a subsequent barge-in (or
// session close) can cancel both stages through Session.CancelInFlight.
func (c *Coordinator) handleUtterance(parent context.Context, sess *session.Session, text string) {
	llmCtx, llmCancel := context.WithCancel(parent)
	ttsCtx, ttsCancel := context.WithCancel(parent)
	sess.SetCancelFuncs(llmCancel, ttsCancel)
	defer sess.SetCancelFuncs(nil, nil)

	tokens := make(chan string, 32)
	ttsTokens, publishTokens := fanout.Tee(tokens, 32)

	voice := sess.Voice()
	if voice == "" {
		voice = "default"
	}
	language := sess.Language()
	if language == "" {
		language = c.cfg.ASRLanguage
	}

	ttsStage := ttsstage.New(ttsstage.Config{
		ChunkSentences: c.cfg.TTSChunkSentences,
		Voice:          voice,
		Language:       language,
		FrameDuration:  c.cfg.TTSFrameDuration,
		QueueDeadline:  c.cfg.TTSQueueDeadline,
		TargetRate:     c.cfg.SampleRate,
	}, c.wrapTTS(sess), c.log)

	go ttsStage.Publish(ttsCtx, sess, func() {
		metrics.ObserveE2E(time.Since(sess.LastASRFinalAt()))
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ttsStage.Consume(ttsCtx, sess, ttsTokens); err != nil && ttsCtx.Err() == nil {
			c.log.Warn("tts consume failed", "session", sess.ID, "err", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for tok := range publishTokens {
			sess.Transport.PublishReliable(ttsCtx, transport.Datagram{Type: transport.DatagramLLMPartial, Text: tok})
		}
	}()

	llmStage := llmstage.New(llmstage.Config{
		MaxTokens:    c.cfg.LLMMaxTokens,
		Temperature:  c.cfg.LLMTemperature,
		DeltaBatch:   c.cfg.LLMDeltaBatch,
		DeltaWait:    c.cfg.LLMDeltaMinWait,
		SystemPrompt: c.systemPrompt,
	}, c.wrapLLM(sess), c.log)

	full, err := llmStage.Generate(llmCtx, sess, text, func(r llmstage.Result) {
		if !r.Final {
			tokens <- r.Text
		}
	})
	close(tokens)

	if err != nil {
		c.log.Warn("llm generation failed or cancelled", "session", sess.ID, "err", err)
	} else {
		sess.Transport.PublishReliable(llmCtx, transport.Datagram{Type: transport.DatagramLLMFinal, Text: full})
	}

	wg.Wait()
}

// CloseSession tears a session down and records its summary.
func (c *Coordinator) CloseSession(sessionID string) error {
	c.mu.Lock()
	rs, ok := c.sessions[sessionID]
	if ok {
		delete(c.sessions, sessionID)
	}
	c.mu.Unlock()
	if !ok {
		return pipelineerr.ErrSessionNotFound
	}

	rs.cancelRoot()
	counters := rs.sess.Counters()
	if err := rs.sess.Close(); err != nil {
		c.log.Warn("error closing session transport", "session", sessionID, "err", err)
	}

	if c.metricsM != nil {
		c.metricsM.RecordSession(metrics.SessionSummary{
			SessionID:  sessionID,
			ClosedAt:   time.Now(),
			DurationMs: time.Since(rs.sess.CreatedAt).Milliseconds(),
			ASRChunks:  counters.ASRChunks,
			LLMTokens:  counters.LLMTokens,
			TTSFrames:  counters.TTSFrames,
			BargeIns:   counters.BargeIns,
			Errors:     counters.Errors,
		})
	}

	metrics.SessionsActive.Set(float64(len(c.sessions)))
	c.log.Info("session closed", "session", sessionID)
	return nil
}

// SweepExpired closes every session whose last activity exceeds
// SessionExpiry, for a periodic janitor goroutine.
func (c *Coordinator) SweepExpired() {
	c.mu.Lock()
	var expired []string
	for id, rs := range c.sessions {
		if time.Since(rs.sess.LastActivity()) > c.cfg.SessionExpiry {
			expired = append(expired, id)
		}
	}
	c.mu.Unlock()

	for _, id := range expired {
		c.log.Info("sweeping expired session", "session", id)
		c.CloseSession(id)
	}
}

func (c *Coordinator) wrapSTT(sess *session.Session) sttprovider.Provider {
	return &healthRecordingSTT{Provider: c.providers.STT, h: c.health, name: "stt", sess: sess}
}

func (c *Coordinator) wrapLLM(sess *session.Session) llmprovider.Provider {
	return &healthRecordingLLM{Provider: c.providers.LLM, h: c.health, name: "llm", sess: sess}
}

func (c *Coordinator) wrapTTS(sess *session.Session) ttsprovider.Provider {
	return &healthRecordingTTS{Provider: c.providers.TTS, h: c.health, name: "tts", sess: sess}
}
