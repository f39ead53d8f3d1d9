package sse

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"strings"
)

// Message is one decoded event from the stream.
type Message struct {
	Type             string
	Audio            string // base64, as carried on the wire
	Words            []string
	WordStartTimesMs []int
}

// Decoder incrementally parses an event stream. Network reads may split
// an event anywhere; the decoder buffers until a full blank-line
// terminated block is available before parsing it.
type Decoder struct {
	r      io.Reader
	buf    []byte
	logger *log.Logger
}

// NewDecoder wraps r. The logger receives a line per skipped malformed
// event.
func NewDecoder(r io.Reader, logger *log.Logger) *Decoder {
	return &Decoder{r: r, logger: logger}
}

// Next returns the next event. It returns io.EOF once the stream has
// ended cleanly and io.ErrUnexpectedEOF when the stream ends mid-event.
// A single malformed event is skipped with a log line; only a truncated
// stream is fatal.
func (d *Decoder) Next() (Message, error) {
	for {
		if block, ok := d.takeBlock(); ok {
			msg, ok := d.parseBlock(block)
			if !ok {
				continue
			}
			return msg, nil
		}

		chunk := make([]byte, 4096)
		n, err := d.r.Read(chunk)
		if n > 0 {
			d.buf = append(d.buf, chunk[:n]...)
			continue
		}
		if err == io.EOF {
			if len(bytes.TrimSpace(d.buf)) > 0 {
				return Message{}, io.ErrUnexpectedEOF
			}
			return Message{}, io.EOF
		}
		if err != nil {
			return Message{}, err
		}
	}
}

// takeBlock removes one complete event block from the buffer.
func (d *Decoder) takeBlock() ([]byte, bool) {
	i := bytes.Index(d.buf, []byte("\n\n"))
	if i < 0 {
		return nil, false
	}
	block := d.buf[:i]
	d.buf = d.buf[i+2:]
	return block, true
}

// parseBlock parses one event block. Returns ok=false for blocks to
// skip: comments, empty keep-alives, or malformed payloads.
func (d *Decoder) parseBlock(block []byte) (Message, bool) {
	var payload []byte
	for _, line := range bytes.Split(block, []byte("\n")) {
		text := string(line)
		if strings.HasPrefix(text, "data: ") {
			payload = append(payload, strings.TrimPrefix(text, "data: ")...)
		}
	}
	if len(payload) == 0 {
		return Message{}, false
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		d.logger.Printf("sse: skipping malformed event: %v", err)
		return Message{}, false
	}

	switch env.Type {
	case TypeAudio:
		var b64 string
		if err := json.Unmarshal(env.Data, &b64); err != nil {
			d.logger.Printf("sse: skipping malformed audio event: %v", err)
			return Message{}, false
		}
		return Message{Type: TypeAudio, Audio: b64}, true

	case TypeWordTimes:
		var wt wordTimesData
		if err := json.Unmarshal(env.Data, &wt); err != nil {
			d.logger.Printf("sse: skipping malformed word_times event: %v", err)
			return Message{}, false
		}
		return Message{Type: TypeWordTimes, Words: wt.Words, WordStartTimesMs: wt.WordStartTimesMs}, true

	default:
		d.logger.Printf("sse: skipping unknown event type %q", env.Type)
		return Message{}, false
	}
}
