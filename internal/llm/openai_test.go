package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewOpenAIClient_Defaults(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key"})

	if client.model != "gpt-4" {
		t.Errorf("model = %q, want %q", client.model, "gpt-4")
	}
	if client.baseURL != openaiAPIURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, openaiAPIURL)
	}
}

func TestStreamChat_StreamsFragmentsInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("request did not ask for streaming")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, piece := range []string{"Hello", " there", "!"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", piece)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})

	ch, err := client.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	var got strings.Builder
	for piece := range ch {
		got.WriteString(piece)
	}
	if got.String() != "Hello there!" {
		t.Errorf("streamed = %q, want %q", got.String(), "Hello there!")
	}
}

func TestStreamChat_SystemPromptPrepended(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[0].Content != "be brief" {
			t.Errorf("messages = %+v, want system prompt first", req.Messages)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, SystemPrompt: "be brief"})
	ch, err := client.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	for range ch {
	}
}

func TestStreamChat_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := client.StreamChat(context.Background(), nil); err == nil {
		t.Error("expected an error for a non-200 response")
	}
}

func TestStreamChat_SkipsMalformedChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {bad json}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	ch, err := client.StreamChat(context.Background(), nil)
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	var pieces []string
	for p := range ch {
		pieces = append(pieces, p)
	}
	if len(pieces) != 1 || pieces[0] != "ok" {
		t.Errorf("pieces = %v, want [ok]", pieces)
	}
}
