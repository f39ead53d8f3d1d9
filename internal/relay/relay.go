// Package relay drives one synthesis session: it feeds text segments to
// the speech service while concurrently converting the service's audio
// and alignment frames into an ordered stream of client events.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/lukasbauer/aloud/internal/align"
	"github.com/lukasbauer/aloud/internal/tts"
)

// Error kinds surfaced in a terminal Error event.
var (
	// ErrConnection covers a connection that failed to open or dropped
	// before the final frame.
	ErrConnection = errors.New("speech service connection failed")

	// ErrSend covers a segment or control frame that could not be
	// transmitted.
	ErrSend = errors.New("failed to send to speech service")
)

// EventType tags a relay event.
type EventType string

const (
	EventAudio     EventType = "audio"
	EventWordTimes EventType = "word_times"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// Event is one unit of relay output. Exactly one payload group is
// populated, selected by Type. Audio stays base64-encoded: the service
// delivers it that way and the wire format carries it that way.
type Event struct {
	Type             EventType
	Audio            string
	Words            []string
	WordStartTimesMs []int
	Err              error
}

// Session lifecycle. A session moves Connecting → Streaming → Draining →
// Closed; any error or cancellation before Closed lands in Aborted.
type State int

const (
	StateConnecting State = iota
	StateStreaming
	StateDraining
	StateClosed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Relay creates synthesis sessions against one configured speech service.
type Relay struct {
	dialer tts.Dialer
	logger *log.Logger
}

// New creates a relay that dials the speech service through dialer.
func New(dialer tts.Dialer, logger *log.Logger) *Relay {
	return &Relay{dialer: dialer, logger: logger}
}

// Run starts one session: segments are sent in order while inbound frames
// are converted to events. The returned channel preserves receive order,
// ends with a single Done or Error event, and is closed afterwards.
// Cancelling ctx aborts the session; no further events are emitted.
func (r *Relay) Run(ctx context.Context, segments <-chan string) <-chan Event {
	events := make(chan Event, 100)
	go r.run(ctx, segments, events)
	return events
}

func (r *Relay) run(ctx context.Context, segments <-chan string, events chan<- Event) {
	defer close(events)

	id := uuid.New().String()[:8]
	state := StateConnecting

	emit := func(ev Event) bool {
		select {
		case <-ctx.Done():
			return false
		case events <- ev:
			return true
		}
	}
	abort := func(err error) {
		r.logger.Printf("relay %s: %s -> aborted: %v", id, state, err)
		state = StateAborted
		emit(Event{Type: EventError, Err: err})
	}

	conn, err := r.dialer.DialStream(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return // cancelled, stay silent
		}
		abort(fmt.Errorf("%w: %v", ErrConnection, err))
		return
	}
	defer conn.Close()

	state = StateStreaming
	r.logger.Printf("relay %s: streaming", id)

	// Send duty: forward segments in order, then flush. Failures are
	// signalled, never published directly onto the event stream.
	sendErr := make(chan error, 1)
	var sendWG sync.WaitGroup
	sendWG.Add(1)
	go func() {
		defer sendWG.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case seg, ok := <-segments:
				if !ok {
					if err := conn.Flush(); err != nil {
						sendErr <- fmt.Errorf("%w: flush: %v", ErrSend, err)
					}
					return
				}
				if err := conn.SendText(seg); err != nil {
					sendErr <- fmt.Errorf("%w: %v", ErrSend, err)
					return
				}
			}
		}
	}()

	// Receive duty: the only publisher of audio and word-time events.
	// The accumulator's offset belongs to this loop alone.
	acc := align.NewAccumulator()
	for {
		select {
		case <-ctx.Done():
			state = StateAborted
			return

		case err := <-sendErr:
			abort(err)
			return

		case err := <-conn.Errors():
			if err == nil {
				err = ErrConnection
			}
			abort(fmt.Errorf("%w: closed before final frame: %v", ErrConnection, err))
			return

		case frame, ok := <-conn.Frames():
			if !ok {
				abort(fmt.Errorf("%w: closed before final frame", ErrConnection))
				return
			}

			if frame.Audio != "" {
				if !emit(Event{Type: EventAudio, Audio: frame.Audio}) {
					state = StateAborted
					return
				}
			}
			if frame.Alignment != nil {
				timings := acc.Absorb(*frame.Alignment)
				words := make([]string, len(timings))
				times := make([]int, len(timings))
				for i, wt := range timings {
					words[i] = wt.Word
					times[i] = wt.StartTimeMs
				}
				if !emit(Event{Type: EventWordTimes, Words: words, WordStartTimesMs: times}) {
					state = StateAborted
					return
				}
			}
			if frame.IsFinal {
				state = StateDraining
				sendWG.Wait()

				// The send duty may have failed after the service already
				// produced its final frame; surface that over a clean Done.
				select {
				case err := <-sendErr:
					abort(err)
				default:
					state = StateClosed
					r.logger.Printf("relay %s: done after %dms of audio", id, acc.OffsetMs())
					emit(Event{Type: EventDone})
				}
				return
			}
		}
	}
}
