// Package tts talks to the speech synthesis service over a persistent
// duplex websocket: text segments go out, audio and alignment frames come
// back.
package tts

import (
	"context"

	"github.com/lukasbauer/aloud/internal/align"
)

// VoiceSettings tunes the synthesized voice. Sent once in the
// connection's initialization frame.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// Frame is one inbound message from the speech service. Any combination
// of fields may be set: audio without alignment, alignment without audio,
// or a bare final marker.
type Frame struct {
	Audio     string       `json:"audio,omitempty"` // base64-encoded audio chunk
	Alignment *align.Frame `json:"alignment,omitempty"`
	IsFinal   bool         `json:"isFinal,omitempty"`
}

// Conn is a live duplex synthesis connection. SendText and Flush are safe
// to call from one goroutine while another drains Frames.
type Conn interface {
	// SendText sends one text segment for synthesis.
	SendText(text string) error

	// Flush signals end of input so the service synthesizes whatever it
	// is still buffering.
	Flush() error

	// Frames returns the channel of inbound frames. It is closed after a
	// final frame or a read failure.
	Frames() <-chan Frame

	// Errors returns the channel carrying a terminal read failure, if any.
	Errors() <-chan error

	// Close tears the connection down. Idempotent.
	Close() error
}

// Dialer opens synthesis connections, one per relay session.
type Dialer interface {
	DialStream(ctx context.Context) (Conn, error)
}
