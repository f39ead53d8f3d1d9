// Package playback ingests a decoded event stream into a seekable audio
// sink and keeps word-highlight state synchronized with the playback
// position. A user can start a new turn before the previous one finished,
// so every piece of queued work re-checks the active session id at the
// moment it executes.
package playback

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Sink is the audio output a session appends into. Sinks forbid
// concurrent appends; the engine serializes them.
type Sink interface {
	// Append schedules one chunk of encoded audio and calls done exactly
	// once when the append has completed or failed.
	Append(chunk []byte, done func(error))

	// Finalize signals that no further audio will be appended.
	Finalize() error

	// Seek moves the playback position and resumes playback.
	Seek(ms int) error

	// PositionMs reports the current playback position.
	PositionMs() float64

	// Stop halts playback.
	Stop()

	// Close releases the sink. No calls may follow.
	Close() error
}

const (
	defaultFinalizeTimeout = 5 * time.Second
	finalizePollInterval   = 10 * time.Millisecond
)

// Engine owns the playback state for one conversation. All methods are
// safe for concurrent use.
type Engine struct {
	newSink func() (Sink, error)
	logger  *log.Logger

	mu               sync.Mutex
	sessionID        int
	cancelled        bool
	degraded         bool
	sink             Sink
	queue            [][]byte
	appending        bool
	words            []string
	wordStartTimesMs []int

	finalizeTimeout time.Duration
}

// NewEngine creates an engine that allocates a fresh sink per session.
func NewEngine(newSink func() (Sink, error), logger *log.Logger) *Engine {
	return &Engine{
		newSink:         newSink,
		logger:          logger,
		finalizeTimeout: defaultFinalizeTimeout,
	}
}

// StartSession invalidates the previous session and allocates a new one.
// Any continuation still in flight for an older session becomes a no-op
// the moment it runs.
func (e *Engine) StartSession() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sink != nil {
		e.sink.Stop()
		_ = e.sink.Close()
	}

	sink, err := e.newSink()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate audio sink: %w", err)
	}

	e.sessionID++
	e.sink = sink
	e.queue = nil
	e.appending = false
	e.cancelled = false
	e.degraded = false
	e.words = nil
	e.wordStartTimesMs = nil

	return e.sessionID, nil
}

// ActiveSession returns the id of the current session.
func (e *Engine) ActiveSession() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// OnAudio enqueues one decoded audio chunk for the given session and
// kicks the append drain. Chunks for a superseded session are dropped.
func (e *Engine) OnAudio(session int, chunk []byte) {
	e.mu.Lock()
	if session != e.sessionID || e.cancelled || e.degraded {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, chunk)
	e.mu.Unlock()

	e.drain(session)
}

// OnWordTimes appends word timing metadata for the given session. Words
// already accumulated are never overwritten.
func (e *Engine) OnWordTimes(session int, words []string, startTimesMs []int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if session != e.sessionID || e.cancelled {
		return
	}
	e.words = append(e.words, words...)
	e.wordStartTimesMs = append(e.wordStartTimesMs, startTimesMs...)
}

// drain runs the single-flight append loop: at most one append is in
// flight against the sink at any time; its completion callback schedules
// the next queued chunk. The session id captured at enqueue time is
// compared against the active one when the work actually runs.
func (e *Engine) drain(session int) {
	e.mu.Lock()
	if e.appending || len(e.queue) == 0 {
		e.mu.Unlock()
		return
	}
	if session != e.sessionID || e.cancelled {
		e.queue = nil
		e.mu.Unlock()
		return
	}
	chunk := e.queue[0]
	e.queue = e.queue[1:]
	e.appending = true
	sink := e.sink
	e.mu.Unlock()

	sink.Append(chunk, func(err error) {
		e.mu.Lock()
		if session != e.sessionID {
			// A newer session owns the state now; leave it untouched.
			e.mu.Unlock()
			return
		}
		e.appending = false
		if e.cancelled {
			e.queue = nil
			e.mu.Unlock()
			return
		}
		if err != nil {
			// A failed append halts further progress but does not kill
			// the engine; the session stays degraded until Reset.
			e.degraded = true
			e.queue = nil
			e.mu.Unlock()
			e.logger.Printf("playback: append failed, session %d degraded: %v", session, err)
			return
		}
		e.mu.Unlock()
		e.drain(session)
	})
}

// Finalize waits until the append queue is empty and nothing is in
// flight, then signals end of stream to the sink. It is a no-op when the
// session has been superseded or reset in the meantime.
func (e *Engine) Finalize(session int) error {
	deadline := time.Now().Add(e.finalizeTimeout)
	for {
		e.mu.Lock()
		if session != e.sessionID || e.cancelled {
			e.mu.Unlock()
			return nil
		}
		if e.degraded {
			e.mu.Unlock()
			return fmt.Errorf("session %d is degraded, cannot finalize", session)
		}
		if len(e.queue) == 0 && !e.appending {
			sink := e.sink
			e.mu.Unlock()
			return sink.Finalize()
		}
		e.mu.Unlock()

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for append queue to drain")
		}
		time.Sleep(finalizePollInterval)
	}
}

// SeekToWord moves playback to the start of the given word and resumes.
// Only the active session may seek.
func (e *Engine) SeekToWord(session, wordIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if session != e.sessionID || e.cancelled {
		return fmt.Errorf("session %d is no longer active", session)
	}
	if wordIndex < 0 || wordIndex >= len(e.wordStartTimesMs) {
		return fmt.Errorf("word index %d out of range (have %d words)", wordIndex, len(e.wordStartTimesMs))
	}
	return e.sink.Seek(e.wordStartTimesMs[wordIndex])
}

// Reset cancels the current session: playback stops, the sink and all
// buffered state are discarded, and any in-flight continuation for this
// session becomes inert. A new session can always be started afterwards.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelled = true
	e.queue = nil
	e.words = nil
	e.wordStartTimesMs = nil
	if e.sink != nil {
		e.sink.Stop()
		_ = e.sink.Close()
		e.sink = nil
	}
}

// Words returns a snapshot of the accumulated words.
func (e *Engine) Words() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.words))
	copy(out, e.words)
	return out
}

// PositionMs reports the sink's current playback position, or 0 when no
// session is live.
func (e *Engine) PositionMs() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sink == nil || e.cancelled {
		return 0
	}
	return e.sink.PositionMs()
}

// CurrentWordIndex derives the highlight state: word i is being spoken
// while the position lies in [start[i], start[i+1]), the last word's
// upper bound being unbounded. Returns -1 before the first word.
func (e *Engine) CurrentWordIndex(positionMs float64) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i, t := range e.wordStartTimesMs {
		if positionMs >= float64(t) {
			idx = i
		} else {
			break
		}
	}
	return idx
}
