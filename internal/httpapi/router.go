package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lukasbauer/aloud/internal/llm"
	"github.com/lukasbauer/aloud/internal/relay"
	"github.com/lukasbauer/aloud/internal/tts"
)

type RouterConfig struct {
	// Text generation
	OpenAIAPIKey string
	OpenAIModel  string
	SystemPrompt string

	// Speech synthesis
	ElevenLabsAPIKey string
	TTSVoiceID       string
	TTSModelID       string
	TTSStability     float64 // -1 for provider default
	TTSSimilarity    float64 // -1 for provider default
	TTSReadTimeout   time.Duration

	// Optional bearer auth; empty secret leaves /chat open (demo mode)
	JWTSecret string

	// Test seams: when set, the API keys above are not required
	LLMClient llm.Client
	TTSDialer tts.Dialer
}

type Router struct {
	cfg      RouterConfig
	logger   *log.Logger
	sessions *SessionRegistry
	llm      llm.Client
	relay    *relay.Relay
	mux      *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, sessions *SessionRegistry) http.Handler {
	llmClient := cfg.LLMClient
	if llmClient == nil {
		llmClient = llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.OpenAIModel,
			SystemPrompt: cfg.SystemPrompt,
		})
	}

	dialer := cfg.TTSDialer
	if dialer == nil {
		dialer = tts.NewStreamDialer(tts.StreamConfig{
			APIKey:      cfg.ElevenLabsAPIKey,
			VoiceID:     cfg.TTSVoiceID,
			ModelID:     cfg.TTSModelID,
			Stability:   cfg.TTSStability,
			Similarity:  cfg.TTSSimilarity,
			ReadTimeout: cfg.TTSReadTimeout,
		}, logger)
	}

	r := &Router{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		llm:      llmClient,
		relay:    relay.New(dialer, logger),
		mux:      http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /readyz", r.handleReadyz)
	r.mux.HandleFunc("POST /chat", r.withAuth(r.handleChat))
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz reports 503 once draining starts so load balancers stop
// routing new sessions here.
func (r *Router) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if r.sessions.IsDraining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("draining"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// configured reports whether the real providers can be reached. Always
// true when test clients are injected.
func (r *Router) configured() bool {
	if r.cfg.LLMClient != nil && r.cfg.TTSDialer != nil {
		return true
	}
	if r.cfg.LLMClient == nil && r.cfg.OpenAIAPIKey == "" {
		return false
	}
	if r.cfg.TTSDialer == nil && r.cfg.ElevenLabsAPIKey == "" {
		return false
	}
	return true
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
