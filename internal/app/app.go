package app

import (
	"errors"
	"log"
	"net/http"

	"github.com/lukasbauer/aloud/internal/httpapi"
)

type App struct {
	cfg    Config
	logger *log.Logger
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	if cfg.ElevenLabsAPIKey == "" {
		return nil, errors.New("ELEVENLABS_API_KEY is required")
	}
	return &App{cfg: cfg, logger: logger}, nil
}

func (a *App) Router(sessions *httpapi.SessionRegistry) http.Handler {
	routerCfg := httpapi.RouterConfig{
		OpenAIAPIKey:     a.cfg.OpenAIAPIKey,
		OpenAIModel:      a.cfg.OpenAIModel,
		SystemPrompt:     a.cfg.SystemPrompt,
		ElevenLabsAPIKey: a.cfg.ElevenLabsAPIKey,
		TTSVoiceID:       a.cfg.TTSVoiceID,
		TTSModelID:       a.cfg.TTSModelID,
		TTSStability:     a.cfg.TTSStability,
		TTSSimilarity:    a.cfg.TTSSimilarity,
		TTSReadTimeout:   a.cfg.TTSReadTimeout,
		JWTSecret:        a.cfg.JWTSecret,
	}
	return httpapi.NewRouter(routerCfg, a.logger, sessions)
}
