// Package chunker groups an incremental stream of model output fragments
// into segments that end on natural boundaries, so the speech service
// receives text it can synthesize cleanly. Sending mid-word fragments
// produces garbled audio; waiting for the full response maximizes latency.
package chunker

import (
	"context"
	"strings"
)

// boundaryChars are the characters a segment may end on. The speech
// service merges adjacent words across messages unless each segment ends
// on one of these, which is also why every emitted segment carries one
// trailing padding space.
const boundaryChars = ".,?!;:—-()[]} "

func isBoundary(r rune) bool {
	return strings.ContainsRune(boundaryChars, r)
}

// Chunk reads text fragments until the channel closes and emits
// flush-ready segments. Each segment ends with a single padding space;
// stripping that space from every segment and concatenating reproduces
// the input exactly. The returned channel is closed after the final
// segment. Cancelling ctx stops the chunker without draining fragments.
func Chunk(ctx context.Context, fragments <-chan string) <-chan string {
	out := make(chan string, 8)

	go func() {
		defer close(out)

		emit := func(seg string) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- seg + " ":
				return true
			}
		}

		var buffer string
		for {
			var text string
			var ok bool
			select {
			case <-ctx.Done():
				return
			case text, ok = <-fragments:
			}
			if !ok {
				break
			}
			if text == "" {
				continue
			}

			switch {
			case endsWithBoundary(buffer):
				// A whitespace-only buffer has nothing speakable; keep
				// collecting instead of emitting a padding-only segment.
				if strings.TrimSpace(buffer) == "" {
					buffer += text
					continue
				}
				if !emit(buffer) {
					return
				}
				buffer = text

			case startsWithBoundary(text):
				first, rest := splitFirstRune(text)
				if strings.TrimSpace(buffer+first) == "" {
					buffer += text
					continue
				}
				if !emit(buffer + first) {
					return
				}
				buffer = rest

			default:
				buffer += text
			}
		}

		// Trailing whitespace with no speakable content is dropped; the
		// speech service has nothing to say for it.
		if strings.TrimSpace(buffer) != "" {
			emit(buffer)
		}
	}()

	return out
}

func endsWithBoundary(s string) bool {
	if s == "" {
		return false
	}
	runes := []rune(s)
	return isBoundary(runes[len(runes)-1])
}

func startsWithBoundary(s string) bool {
	for _, r := range s {
		return isBoundary(r)
	}
	return false
}

// splitFirstRune returns the first rune of s as a string plus the rest.
func splitFirstRune(s string) (string, string) {
	for _, r := range s {
		size := len(string(r))
		return s[:size], s[size:]
	}
	return "", ""
}
