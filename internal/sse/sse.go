// Package sse frames relay events as a server-sent event stream and
// parses such a stream back incrementally on the client side.
//
// Wire format, one event per blank-line-terminated block:
//
//	data: {"type": "audio", "data": "<base64 audio>"}
//
//	data: {"type": "word_times", "data": {"words": [...], "wordStartTimesMs": [...]}}
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lukasbauer/aloud/internal/relay"
)

const (
	TypeAudio     = "audio"
	TypeWordTimes = "word_times"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type wordTimesData struct {
	Words            []string `json:"words"`
	WordStartTimesMs []int    `json:"wordStartTimesMs"`
}

// Encoder writes events to an HTTP response as they arrive, flushing
// after each one. It holds no buffer of its own.
type Encoder struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewEncoder prepares w for event streaming and returns an encoder for
// it. Fails when the ResponseWriter cannot flush incrementally.
func NewEncoder(w http.ResponseWriter) (*Encoder, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &Encoder{w: w, flusher: flusher}, nil
}

// WriteEvent encodes one relay event. Done and Error events produce no
// output: the stream simply ends after them.
func (e *Encoder) WriteEvent(ev relay.Event) error {
	switch ev.Type {
	case relay.EventAudio:
		return e.WriteAudio(ev.Audio)
	case relay.EventWordTimes:
		return e.WriteWordTimes(ev.Words, ev.WordStartTimesMs)
	default:
		return nil
	}
}

// WriteAudio emits one audio event carrying base64 audio bytes.
func (e *Encoder) WriteAudio(b64 string) error {
	data, err := json.Marshal(b64)
	if err != nil {
		return err
	}
	return e.write(TypeAudio, data)
}

// WriteWordTimes emits one word-timing event. Words and times are
// parallel slices.
func (e *Encoder) WriteWordTimes(words []string, startTimesMs []int) error {
	if words == nil {
		words = []string{}
	}
	if startTimesMs == nil {
		startTimesMs = []int{}
	}
	data, err := json.Marshal(wordTimesData{Words: words, WordStartTimesMs: startTimesMs})
	if err != nil {
		return err
	}
	return e.write(TypeWordTimes, data)
}

func (e *Encoder) write(eventType string, data json.RawMessage) error {
	payload, err := json.Marshal(envelope{Type: eventType, Data: data})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
