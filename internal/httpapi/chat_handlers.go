package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/lukasbauer/aloud/internal/chunker"
	"github.com/lukasbauer/aloud/internal/llm"
	"github.com/lukasbauer/aloud/internal/relay"
	"github.com/lukasbauer/aloud/internal/sse"
)

type chatRequest struct {
	Messages []llm.Message `json:"messages"`
}

// handleChat streams a model reply as synthesized speech. The response is
// a Server-Sent Events stream of audio and word_times events; the
// connection closes after the final audio chunk.
func (r *Router) handleChat(w http.ResponseWriter, req *http.Request) {
	if !r.sessions.Add() {
		http.Error(w, `{"error": "server is shutting down"}`, http.StatusServiceUnavailable)
		return
	}
	defer r.sessions.Done()

	if !r.configured() {
		http.Error(w, `{"error": "speech service not configured"}`, http.StatusServiceUnavailable)
		return
	}

	var body chatRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	if len(body.Messages) == 0 {
		http.Error(w, `{"error": "messages are required"}`, http.StatusBadRequest)
		return
	}

	ctx := req.Context()

	// Start the completion before committing to an SSE response so a
	// provider failure can still surface as a plain HTTP error.
	fragments, err := r.llm.StreamChat(ctx, body.Messages)
	if err != nil {
		r.logger.Printf("chat: completion request failed: %v", err)
		captureError(req, err, "completion request failed")
		http.Error(w, `{"error": "upstream completion failed"}`, http.StatusBadGateway)
		return
	}

	enc, err := sse.NewEncoder(w)
	if err != nil {
		http.Error(w, `{"error": "streaming unsupported"}`, http.StatusInternalServerError)
		return
	}

	segments := chunker.Chunk(ctx, fragments)
	events := r.relay.Run(ctx, segments)

	for ev := range events {
		switch ev.Type {
		case relay.EventError:
			r.logger.Printf("chat: relay error: %v", ev.Err)
			captureError(req, ev.Err, "speech relay failed")
			return
		case relay.EventDone:
			return
		default:
			if err := enc.WriteEvent(ev); err != nil {
				r.logger.Printf("chat: client write failed: %v", err)
				return
			}
		}
	}
}
