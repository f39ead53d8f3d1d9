package playback

import (
	"fmt"
	"io"
	"sync"
)

// StreamBuffer is an append-only byte buffer exposed as an io.ReadSeeker,
// the stand-in for a streaming media source: audio bytes arrive over the
// network while a decoder reads from the front. Reads past the written
// end block until more data is appended; Finalize turns that condition
// into io.EOF. Seeking is supported anywhere within the written region.
type StreamBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	data   []byte
	pos    int64
	final  bool
	closed bool
}

// NewStreamBuffer returns an empty buffer.
func NewStreamBuffer() *StreamBuffer {
	b := &StreamBuffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Append adds bytes to the end of the buffer and wakes blocked readers.
// Appending after Finalize is a programming error and panics.
func (b *StreamBuffer) Append(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.final {
		panic("playback: append to finalized StreamBuffer")
	}
	b.data = append(b.data, p...)
	b.cond.Broadcast()
}

// Finalize marks the end of the stream. Readers past the end observe
// io.EOF instead of blocking.
func (b *StreamBuffer) Finalize() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.final = true
	b.cond.Broadcast()
}

// Len reports how many bytes have been appended so far.
func (b *StreamBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Read blocks until data is available at the current position, the
// buffer is finalized, or it is closed.
func (b *StreamBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.pos >= int64(len(b.data)) && !b.final && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}

	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

// Seek moves the read position. io.SeekEnd refers to the bytes written
// so far, which is the true end only after Finalize.
func (b *StreamBuffer) Seek(offset int64, whence int) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = b.pos + offset
	case io.SeekEnd:
		target = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if target < 0 {
		return 0, fmt.Errorf("negative position %d", target)
	}
	b.pos = target
	return target, nil
}

// Close unblocks any waiting reader with io.ErrClosedPipe.
func (b *StreamBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
	return nil
}
