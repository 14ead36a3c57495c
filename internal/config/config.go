// Package config reads the environment variables the pipeline coordinator
// recognizes (see spec §6) into a typed, defaulted Config.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable named in the external interface contract.
// Zero-value-unsafe fields are always populated by Load via Default.
type Config struct {
	ASRWindow      time.Duration
	ASRSlide       time.Duration
	ASRSilence     time.Duration
	ASRModel       string
	ASRLanguage    string
	ASRTimeout     time.Duration
	ASRMaxRetries  int

	LLMMaxTokens    int
	LLMTemperature  float64
	LLMModel        string
	LLMTimeout      time.Duration
	LLMDeltaBatch   int
	LLMDeltaMinWait time.Duration

	TTSChunkSentences int
	TTSTimeout        time.Duration
	TTSMaxRetries     int
	TTSFrameDuration  time.Duration
	TTSQueueCapacity  int
	TTSQueueDeadline  time.Duration

	SessionExpiry        time.Duration
	MaxConcurrentSess    int
	MemoryContextTokens  int
	MinWordsToInterrupt  int
	BargeInGracePeriod   time.Duration

	HealthCheckInterval time.Duration
	ServiceTimeout      time.Duration

	MetricsSavePath string
	EnableMetrics   bool

	SampleRate int // target internal sample rate, always 16000 per spec
}

// Default returns the documented defaults from spec §2/§4/§6.
func Default() Config {
	return Config{
		ASRWindow:     500 * time.Millisecond,
		ASRSlide:      250 * time.Millisecond,
		ASRSilence:    800 * time.Millisecond,
		ASRModel:      "whisper-large-v3-turbo",
		ASRLanguage:   "en",
		ASRTimeout:    10 * time.Second,
		ASRMaxRetries: 3,

		LLMMaxTokens:    256,
		LLMTemperature:  0.7,
		LLMModel:        "gpt-4o-mini",
		LLMTimeout:      30 * time.Second,
		LLMDeltaBatch:   5,
		LLMDeltaMinWait: 100 * time.Millisecond,

		TTSChunkSentences: 2,
		TTSTimeout:        15 * time.Second,
		TTSMaxRetries:     2,
		TTSFrameDuration:  20 * time.Millisecond,
		TTSQueueCapacity:  16,
		TTSQueueDeadline:  500 * time.Millisecond,

		SessionExpiry:       10 * time.Minute,
		MaxConcurrentSess:   5,
		MemoryContextTokens: 2000,
		MinWordsToInterrupt: 1,
		BargeInGracePeriod:  200 * time.Millisecond,

		HealthCheckInterval: 30 * time.Second,
		ServiceTimeout:      3 * time.Second,

		MetricsSavePath: "metrics.jsonl",
		EnableMetrics:   true,

		SampleRate: 16000,
	}
}

// Load builds a Config from Default overlaid with recognized environment
// variables, following the teacher's DefaultConfig()-then-override pattern.
func Load() Config {
	c := Default()

	durMs(&c.ASRWindow, "ASR_BUFFER_WINDOW_MS")
	durMs(&c.ASRSlide, "ASR_BUFFER_SLIDE_MS")

	if v := os.Getenv("LLM_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LLMMaxTokens = n
		}
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.LLMTemperature = f
		}
	}
	if v := os.Getenv("TTS_CHUNK_SIZE_SENTENCES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.TTSChunkSentences = n
		}
	}
	durMin(&c.SessionExpiry, "SESSION_EXPIRY_MINUTES")
	if v := os.Getenv("MAX_CONCURRENT_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxConcurrentSess = n
		}
	}
	if v := os.Getenv("MEMORY_CONTEXT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MemoryContextTokens = n
		}
	}
	durSec(&c.HealthCheckInterval, "HEALTH_CHECK_INTERVAL")
	durSec(&c.ServiceTimeout, "SERVICE_TIMEOUT")

	if v := os.Getenv("METRICS_SAVE_PATH"); v != "" {
		c.MetricsSavePath = v
	}
	if v := os.Getenv("ENABLE_METRICS"); v != "" {
		c.EnableMetrics = v != "false" && v != "0"
	}

	return c
}

func durMs(field *time.Duration, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*field = time.Duration(n) * time.Millisecond
		}
	}
}

func durSec(field *time.Duration, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*field = time.Duration(n) * time.Second
		}
	}
}

func durMin(field *time.Duration, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*field = time.Duration(n) * time.Minute
		}
	}
}
