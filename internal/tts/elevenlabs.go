package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const elevenLabsWSURL = "wss://api.elevenlabs.io/v1/text-to-speech"

// Defaults matching the voice the product ships with.
const (
	defaultVoiceID = "nPczCjzI2devNBz1zQrb"
	defaultModelID = "eleven_turbo_v2_5"

	defaultStability  = 0.5
	defaultSimilarity = 0.8

	// defaultReadTimeout bounds how long the connection may stay silent
	// before the session is treated as stalled. The service itself never
	// promises a final frame on a wedged connection.
	defaultReadTimeout = 60 * time.Second
)

// StreamConfig holds configuration for the ElevenLabs stream-input client.
// Stability and Similarity accept -1 as a sentinel for "use default",
// since 0.0 is a valid setting.
type StreamConfig struct {
	APIKey      string
	VoiceID     string
	ModelID     string
	Stability   float64
	Similarity  float64
	ReadTimeout time.Duration // 0 means defaultReadTimeout
	BaseURL     string        // overridable for tests
}

// StreamDialer opens ElevenLabs stream-input connections.
type StreamDialer struct {
	cfg    StreamConfig
	dialer *websocket.Dialer
	logger *log.Logger
}

// NewStreamDialer creates a dialer for the configured voice.
func NewStreamDialer(cfg StreamConfig, logger *log.Logger) *StreamDialer {
	if cfg.VoiceID == "" {
		cfg.VoiceID = defaultVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = defaultModelID
	}
	if cfg.Stability < 0 {
		cfg.Stability = defaultStability
	}
	if cfg.Similarity < 0 {
		cfg.Similarity = defaultSimilarity
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = elevenLabsWSURL
	}
	return &StreamDialer{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		logger: logger,
	}
}

// initFrame establishes the voice configuration and authorizes the
// connection. The single-space text primes the service without speaking.
type initFrame struct {
	Text          string        `json:"text"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
	APIKey        string        `json:"xi_api_key"`
}

type textFrame struct {
	Text  string `json:"text"`
	Flush bool   `json:"flush,omitempty"`
}

// DialStream opens one duplex stream-input connection and sends the
// initialization frame.
func (d *StreamDialer) DialStream(ctx context.Context) (Conn, error) {
	url := fmt.Sprintf("%s/%s/stream-input?model_id=%s", d.cfg.BaseURL, d.cfg.VoiceID, d.cfg.ModelID)

	conn, _, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ElevenLabs: %w", err)
	}

	init := initFrame{
		Text: " ",
		VoiceSettings: VoiceSettings{
			Stability:       d.cfg.Stability,
			SimilarityBoost: d.cfg.Similarity,
			UseSpeakerBoost: false,
		},
		APIKey: d.cfg.APIKey,
	}
	if err := conn.WriteJSON(init); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send init frame: %w", err)
	}

	c := &streamConn{
		conn:        conn,
		connectID:   uuid.New().String(),
		readTimeout: d.cfg.ReadTimeout,
		frames:      make(chan Frame, 100),
		errors:      make(chan error, 1),
		done:        make(chan struct{}),
		logger:      d.logger,
	}

	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

// streamConn is one live stream-input connection.
type streamConn struct {
	conn        *websocket.Conn
	connectID   string
	readTimeout time.Duration

	frames chan Frame
	errors chan error
	done   chan struct{}

	mu        sync.Mutex // guards writes to conn
	closeOnce sync.Once
	wg        sync.WaitGroup
	logger    *log.Logger
}

// SendText sends one text segment for synthesis.
func (c *streamConn) SendText(text string) error {
	return c.writeFrame(textFrame{Text: text})
}

// Flush tells the service to synthesize everything it is still buffering.
func (c *streamConn) Flush() error {
	return c.writeFrame(textFrame{Text: " ", Flush: true})
}

func (c *streamConn) writeFrame(f textFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return fmt.Errorf("connection %s is closed", c.connectID)
	default:
	}

	return c.conn.WriteJSON(f)
}

func (c *streamConn) Frames() <-chan Frame {
	return c.frames
}

func (c *streamConn) Errors() <-chan error {
	return c.errors
}

// Close tears the connection down and waits for the read loop to finish
// before closing the channels.
func (c *streamConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		err = c.conn.Close()

		c.wg.Wait()
		close(c.frames)
		close(c.errors)
	})
	return err
}

// readLoop reads frames until a final marker, a read failure, or Close.
func (c *streamConn) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		if c.readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			case c.errors <- fmt.Errorf("read error: %w", err):
			default:
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(msg, &frame); err != nil {
			c.logger.Printf("tts: failed to parse frame on %s: %v", c.connectID, err)
			continue
		}

		select {
		case <-c.done:
			return
		case c.frames <- frame:
		}

		if frame.IsFinal {
			return
		}
	}
}
