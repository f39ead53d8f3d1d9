package playback

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
)

// BeepSink plays appended mp3 audio through the machine's speakers. The
// encoded bytes land in a StreamBuffer; a decoder goroutine starts on the
// first append and reads from it, blocking whenever playback catches up
// with the network.
type BeepSink struct {
	buf    *StreamBuffer
	logger *log.Logger

	mu       sync.Mutex
	started  bool
	closed   bool
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	done     chan struct{}
	doneOnce sync.Once
}

// NewBeepSink returns a sink ready to receive mp3 audio.
func NewBeepSink(logger *log.Logger) *BeepSink {
	return &BeepSink{
		buf:    NewStreamBuffer(),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Append copies the chunk into the stream buffer. The copy itself cannot
// fail, so done is called synchronously; playback starts lazily with the
// first chunk.
func (s *BeepSink) Append(chunk []byte, done func(error)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done(fmt.Errorf("sink is closed"))
		return
	}
	s.buf.Append(chunk)
	start := !s.started
	s.started = true
	s.mu.Unlock()

	if start {
		go s.play()
	}
	done(nil)
}

// play decodes the growing buffer and hands it to the speaker. Runs once
// per sink.
func (s *BeepSink) play() {
	streamer, format, err := mp3.Decode(s.buf)
	if err != nil {
		s.logger.Printf("playback: mp3 decode failed: %v", err)
		s.closeDone()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = streamer.Close()
		s.closeDone()
		return
	}
	s.streamer = streamer
	s.format = format
	s.ctrl = &beep.Ctrl{Streamer: streamer}
	s.mu.Unlock()

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		s.logger.Printf("playback: speaker init failed: %v", err)
		s.closeDone()
		return
	}
	speaker.Play(beep.Seq(s.ctrl, beep.Callback(s.closeDone)))
}

// Finalize marks the end of the audio stream; playback drains whatever
// is buffered and then stops on its own.
func (s *BeepSink) Finalize() error {
	s.buf.Finalize()
	return nil
}

// Seek moves playback to the given position and resumes.
func (s *BeepSink) Seek(ms int) error {
	s.mu.Lock()
	streamer, ctrl, format := s.streamer, s.ctrl, s.format
	s.mu.Unlock()
	if streamer == nil {
		return fmt.Errorf("no audio decoded yet")
	}

	speaker.Lock()
	defer speaker.Unlock()
	if err := streamer.Seek(format.SampleRate.N(time.Duration(ms) * time.Millisecond)); err != nil {
		return fmt.Errorf("seek to %dms: %w", ms, err)
	}
	ctrl.Paused = false
	return nil
}

// PositionMs reports the playback position of the decoded stream.
func (s *BeepSink) PositionMs() float64 {
	s.mu.Lock()
	streamer, format := s.streamer, s.format
	s.mu.Unlock()
	if streamer == nil {
		return 0
	}

	speaker.Lock()
	pos := streamer.Position()
	speaker.Unlock()
	return float64(format.SampleRate.D(pos)) / float64(time.Millisecond)
}

// Stop pauses playback without releasing the sink.
func (s *BeepSink) Stop() {
	s.mu.Lock()
	ctrl := s.ctrl
	s.mu.Unlock()
	if ctrl == nil {
		return
	}
	speaker.Lock()
	ctrl.Paused = true
	speaker.Unlock()
}

// Close discards the sink: playback is cleared and any blocked decoder
// read is released.
func (s *BeepSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	streamer := s.streamer
	s.mu.Unlock()

	if streamer != nil {
		speaker.Clear()
	}
	_ = s.buf.Close()
	if streamer != nil {
		_ = streamer.Close()
	}
	s.closeDone()
	return nil
}

func (s *BeepSink) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Wait blocks until playback has fully drained, for callers that want to
// exit only after the audio ends.
func (s *BeepSink) Wait() {
	<-s.done
}
