package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr  string
	SentryDSN string

	// Completion provider
	OpenAIAPIKey string
	OpenAIModel  string
	SystemPrompt string

	// Speech provider
	ElevenLabsAPIKey string
	TTSVoiceID       string // ElevenLabs voice ID
	TTSModelID       string
	TTSStability     float64 // -1 means provider default
	TTSSimilarity    float64 // -1 means provider default
	TTSReadTimeout   time.Duration

	// JWT Authentication; empty disables auth
	JWTSecret string
}

func LoadConfigFromEnv() Config {
	readTimeout, err := time.ParseDuration(getenv("TTS_READ_TIMEOUT", "60s"))
	if err != nil {
		readTimeout = 60 * time.Second
	}

	return Config{
		HTTPAddr:  getenv("HTTP_ADDR", ":8080"),
		SentryDSN: os.Getenv("SENTRY_DSN"),

		OpenAIAPIKey: getenv("OPENAI_API_KEY", ""),
		OpenAIModel:  getenv("OPENAI_MODEL", ""),
		SystemPrompt: getenv("SYSTEM_PROMPT", ""),

		ElevenLabsAPIKey: getenv("ELEVENLABS_API_KEY", ""),
		TTSVoiceID:       getenv("TTS_VOICE_ID", ""),
		TTSModelID:       getenv("TTS_MODEL_ID", ""),
		TTSStability:     getenvFloat("TTS_STABILITY", -1),
		TTSSimilarity:    getenvFloat("TTS_SIMILARITY", -1),
		TTSReadTimeout:   readTimeout,

		JWTSecret: os.Getenv("JWT_SECRET"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvFloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
