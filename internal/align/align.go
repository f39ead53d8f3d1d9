// Package align converts character-level timing data from the speech
// service into word-level start times that are absolute to the session.
// Each alignment frame's times are relative to that frame's own audio, so
// a running cumulative offset is threaded across frames.
package align

// DefaultTrailingBufferMs is added to a frame's duration when the service
// omits per-character durations: the last character's start time says
// nothing about how long it is spoken. The value is a heuristic matched to
// the service's observed framing, not a derived quantity.
const DefaultTrailingBufferMs = 100

// Frame is the alignment object attached to one speech-service response
// chunk. Chars holds single-character strings; the two time slices are
// parallel to it. CharDurationsMs may be nil when the service does not
// report durations.
type Frame struct {
	Chars            []string `json:"chars"`
	CharStartTimesMs []int    `json:"charStartTimesMs"`
	CharDurationsMs  []int    `json:"charDurationsMs,omitempty"`
}

// WordTiming is one spoken word with its start time in milliseconds,
// absolute to the start of the session's audio.
type WordTiming struct {
	Word        string
	StartTimeMs int
}

// WordStartTimes splits the frame's characters into words at spaces,
// shifting every start time by offsetMs so the result is
// session-absolute. It returns the words and the new cumulative offset:
// offsetMs plus this frame's total duration. trailingMs is the fallback
// buffer used when the frame carries no durations.
func WordStartTimes(f Frame, offsetMs, trailingMs int) ([]WordTiming, int) {
	var words []WordTiming
	var word string
	var wordStart int

	for i, ch := range f.Chars {
		start := offsetMs
		if i < len(f.CharStartTimesMs) {
			start = f.CharStartTimesMs[i] + offsetMs
		}
		if ch == " " {
			if word != "" {
				words = append(words, WordTiming{Word: word, StartTimeMs: wordStart})
				word = ""
			}
			continue
		}
		if word == "" {
			wordStart = start
		}
		word += ch
	}
	if word != "" {
		words = append(words, WordTiming{Word: word, StartTimeMs: wordStart})
	}

	return words, offsetMs + frameDuration(f, trailingMs)
}

// frameDuration prefers the reported per-character durations; without
// them it spans the shifted start times plus the trailing buffer.
func frameDuration(f Frame, trailingMs int) int {
	if len(f.CharDurationsMs) > 0 {
		total := 0
		for _, d := range f.CharDurationsMs {
			total += d
		}
		return total
	}
	if len(f.CharStartTimesMs) == 0 {
		return 0
	}
	first := f.CharStartTimesMs[0]
	last := f.CharStartTimesMs[len(f.CharStartTimesMs)-1]
	return last - first + trailingMs
}

// Accumulator threads the cumulative offset across the frames of one
// relay session. Not safe for concurrent use; the relay's receive duty is
// its only caller.
type Accumulator struct {
	offsetMs int

	// TrailingBufferMs overrides DefaultTrailingBufferMs when positive.
	TrailingBufferMs int
}

// NewAccumulator returns an accumulator with a zero offset, ready for a
// fresh session.
func NewAccumulator() *Accumulator {
	return &Accumulator{TrailingBufferMs: DefaultTrailingBufferMs}
}

// Absorb converts one frame into session-absolute word timings and
// advances the offset by the frame's duration.
func (a *Accumulator) Absorb(f Frame) []WordTiming {
	trailing := a.TrailingBufferMs
	if trailing <= 0 {
		trailing = DefaultTrailingBufferMs
	}
	words, next := WordStartTimes(f, a.offsetMs, trailing)
	a.offsetMs = next
	return words
}

// OffsetMs reports the total synthesized audio duration absorbed so far.
func (a *Accumulator) OffsetMs() int {
	return a.offsetMs
}
