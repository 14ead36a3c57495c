// Command server runs the pipeline coordinator behind an HTTP control
// plane: WebRTC session negotiation, Prometheus metrics, and health
// introspection. Grounded on the teacher's cmd/agent/main.go for env-var
// provider selection and godotenv/signal wiring, and on
// iamprashant-voice-ai's gin route-group style for the HTTP surface the
// teacher itself never needed (its agent talks straight to a local mic).
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lokutor-ai/voxpipe/internal/config"
	"github.com/lokutor-ai/voxpipe/internal/coordinator"
	"github.com/lokutor-ai/voxpipe/internal/health"
	"github.com/lokutor-ai/voxpipe/internal/logging"
	"github.com/lokutor-ai/voxpipe/internal/metrics"
	llmprovider "github.com/lokutor-ai/voxpipe/internal/providers/llm"
	sttprovider "github.com/lokutor-ai/voxpipe/internal/providers/stt"
	ttsprovider "github.com/lokutor-ai/voxpipe/internal/providers/tts"
	"github.com/lokutor-ai/voxpipe/internal/transport/webrtcpub"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("note: no .env file found, using system environment variables")
	}

	cfg := config.Load()
	logger := logging.New("voxpipe").WithLevel(logging.ParseLevel(os.Getenv("VOXPIPE_LOG_LEVEL")))

	providers := buildProviders(cfg, logger)

	monitor := health.NewMonitor(logger, cfg.HealthCheckInterval, cfg.ServiceTimeout)
	monitor.Register("stt", nil)
	monitor.Register("llm", nil)
	monitor.Register("tts", nil)

	metricsManager, err := metrics.NewManager(logger, cfg.MetricsSavePath, 100, cfg.EnableMetrics)
	if err != nil {
		log.Fatalf("create metrics manager: %v", err)
	}
	defer metricsManager.Close()

	systemPrompt := os.Getenv("VOXPIPE_SYSTEM_PROMPT")
	if systemPrompt == "" {
		systemPrompt = "You are a helpful and concise voice assistant. Use short sentences suitable for speech."
	}

	coord := coordinator.New(cfg, logger, providers, monitor, metricsManager, systemPrompt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go monitor.Run(ctx)
	go sweepLoop(ctx, coord, cfg.SessionExpiry/2)

	router := newRouter(coord, monitor, cfg)

	addr := os.Getenv("VOXPIPE_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	cancel()
}

func sweepLoop(ctx context.Context, coord *coordinator.Coordinator, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			coord.SweepExpired()
		}
	}
}

func newRouter(coord *coordinator.Coordinator, monitor *health.Monitor, cfg config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		snapshot := monitor.Snapshot()
		out := make(map[string]string, len(snapshot))
		for name, state := range snapshot {
			out[name] = state.String()
		}
		c.JSON(http.StatusOK, gin.H{"services": out})
	})

	r.POST("/health/reset/:service", func(c *gin.Context) {
		service := c.Param("service")
		if !monitor.Reset(service) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown service"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"service": service, "state": "healthy"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1/sessions")
	{
		v1.POST("", handleCreateSession(coord, cfg))
		v1.DELETE("/:sessionId", handleCloseSession(coord))
	}

	return r
}

type offerRequest struct {
	ParticipantID string `json:"participant_id"`
	SDP           string `json:"sdp"`
}

type answerResponse struct {
	SessionID string `json:"session_id"`
	SDP       string `json:"sdp"`
}

// handleCreateSession negotiates a WebRTC PeerConnection for one
// participant and registers it with the coordinator, following the
// offer-in/answer-out shape the browser client expects (spec §3).
func handleCreateSession(coord *coordinator.Coordinator, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req offerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		pub, err := webrtcpub.New(logging.New("webrtc"), cfg.SampleRate, cfg.TTSFrameDuration, defaultICEServers())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		sess, err := coord.CreateSession(req.ParticipantID, pub)
		if err != nil {
			pub.Close()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
			return
		}

		pub.SetAudioFrameHandler(func(samples []int16, sampleRate int) {
			coord.IngestAudio(sess.ID, samples, sampleRate, 1)
		})

		offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: req.SDP}
		if err := pub.PeerConnection().SetRemoteDescription(offer); err != nil {
			coord.CloseSession(sess.ID)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		answer, err := pub.PeerConnection().CreateAnswer(nil)
		if err != nil {
			coord.CloseSession(sess.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := pub.PeerConnection().SetLocalDescription(answer); err != nil {
			coord.CloseSession(sess.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		<-webrtc.GatheringCompletePromise(pub.PeerConnection())

		local := pub.PeerConnection().LocalDescription()
		c.JSON(http.StatusOK, answerResponse{SessionID: sess.ID, SDP: local.SDP})
	}
}

func handleCloseSession(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := coord.CloseSession(c.Param("sessionId")); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func defaultICEServers() []webrtc.ICEServer {
	urls := os.Getenv("VOXPIPE_ICE_SERVERS")
	if urls == "" {
		return []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}
	var servers []webrtc.ICEServer
	if err := json.Unmarshal([]byte(urls), &servers); err != nil {
		return []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}
	return servers
}

func buildProviders(cfg config.Config, logger logging.Logger) coordinator.Providers {
	sttProvider := selectSTT(cfg)
	llmProvider := selectLLM(cfg)
	ttsProvider := selectTTS(cfg)

	logger.Info("providers configured", "stt", sttProvider.Name(), "llm", llmProvider.Name(), "tts", ttsProvider.Name())

	return coordinator.Providers{STT: sttProvider, LLM: llmProvider, TTS: ttsProvider}
}

func selectSTT(cfg config.Config) sttprovider.Provider {
	switch os.Getenv("STT_PROVIDER") {
	case "deepgram":
		return sttprovider.NewDeepgram(os.Getenv("DEEPGRAM_API_KEY"), cfg.SampleRate)
	default:
		return sttprovider.NewOpenAICompatible(os.Getenv("OPENAI_API_KEY"), "https://api.openai.com/v1/audio/transcriptions", cfg.ASRModel)
	}
}

func selectLLM(cfg config.Config) llmprovider.Provider {
	switch os.Getenv("LLM_PROVIDER") {
	case "anthropic":
		return llmprovider.NewAnthropic(os.Getenv("ANTHROPIC_API_KEY"), cfg.LLMModel)
	default:
		return llmprovider.NewOpenAICompatible(os.Getenv("OPENAI_API_KEY"), "https://api.openai.com/v1/chat/completions", cfg.LLMModel)
	}
}

func selectTTS(cfg config.Config) ttsprovider.Provider {
	primary := ttsprovider.NewStreamingWS(os.Getenv("LOKUTOR_API_KEY"), os.Getenv("LOKUTOR_TTS_HOST"), cfg.SampleRate)
	fallbackURL := os.Getenv("TTS_FALLBACK_URL")
	if fallbackURL == "" {
		fallbackURL = "https://api.openai.com/v1/audio/speech"
	}
	fallback := ttsprovider.NewHTTP(fallbackURL)
	return ttsprovider.NewFailover(primary, fallback)
}
