package align

import (
	"reflect"
	"strings"
	"testing"
)

// frameFromText builds a frame with one character per entry and evenly
// spaced start times.
func frameFromText(text string, stepMs int) Frame {
	var f Frame
	for i, r := range []rune(text) {
		f.Chars = append(f.Chars, string(r))
		f.CharStartTimesMs = append(f.CharStartTimesMs, i*stepMs)
	}
	return f
}

func TestWordStartTimes_SplitsAtSpaces(t *testing.T) {
	f := frameFromText("Hi there", 100)

	words, _ := WordStartTimes(f, 0, DefaultTrailingBufferMs)

	want := []WordTiming{
		{Word: "Hi", StartTimeMs: 0},
		{Word: "there", StartTimeMs: 300},
	}
	if !reflect.DeepEqual(words, want) {
		t.Errorf("words = %v, want %v", words, want)
	}
}

func TestWordStartTimes_OffsetShiftsAllTimes(t *testing.T) {
	f := frameFromText("go on", 50)

	words, _ := WordStartTimes(f, 500, DefaultTrailingBufferMs)

	for _, w := range words {
		if w.StartTimeMs < 500 {
			t.Errorf("word %q starts at %dms, want >= 500ms", w.Word, w.StartTimeMs)
		}
	}
	if words[0].StartTimeMs != 500 {
		t.Errorf("first word starts at %dms, want 500", words[0].StartTimeMs)
	}
}

func TestWordStartTimes_DurationFallback(t *testing.T) {
	tests := []struct {
		name       string
		frame      Frame
		offset     int
		wantOffset int
	}{
		{
			name: "durations present are summed",
			frame: Frame{
				Chars:            []string{"h", "i"},
				CharStartTimesMs: []int{0, 80},
				CharDurationsMs:  []int{80, 120},
			},
			wantOffset: 200,
		},
		{
			name:       "no durations spans start times plus trailing buffer",
			frame:      frameFromText("abc", 100),
			wantOffset: 200 + DefaultTrailingBufferMs,
		},
		{
			name:       "empty frame advances nothing",
			frame:      Frame{},
			offset:     250,
			wantOffset: 250,
		},
		{
			name: "single char no duration uses trailing buffer only",
			frame: Frame{
				Chars:            []string{"a"},
				CharStartTimesMs: []int{0},
			},
			offset:     40,
			wantOffset: 40 + DefaultTrailingBufferMs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, next := WordStartTimes(tt.frame, tt.offset, DefaultTrailingBufferMs)
			if next != tt.wantOffset {
				t.Errorf("new offset = %d, want %d", next, tt.wantOffset)
			}
		})
	}
}

func TestWordStartTimes_TrailingWordWithoutSpace(t *testing.T) {
	f := frameFromText("end", 10)

	words, _ := WordStartTimes(f, 0, DefaultTrailingBufferMs)

	if len(words) != 1 || words[0].Word != "end" {
		t.Fatalf("words = %v, want single word \"end\"", words)
	}
}

func TestAccumulator_MonotonicAcrossFrames(t *testing.T) {
	acc := NewAccumulator()

	texts := []string{"the quick brown", "fox jumps over", "the lazy dog"}
	var all []WordTiming
	for _, text := range texts {
		all = append(all, acc.Absorb(frameFromText(text, 60))...)
	}

	for i := 1; i < len(all); i++ {
		if all[i].StartTimeMs < all[i-1].StartTimeMs {
			t.Errorf("word %d (%q at %dms) starts before word %d (%q at %dms)",
				i, all[i].Word, all[i].StartTimeMs,
				i-1, all[i-1].Word, all[i-1].StartTimeMs)
		}
	}
}

func TestAccumulator_SecondFrameShiftedPastFirst(t *testing.T) {
	acc := NewAccumulator()

	first := Frame{
		Chars:            []string{"h", "i"},
		CharStartTimesMs: []int{0, 100},
		CharDurationsMs:  []int{100, 400},
	}
	acc.Absorb(first)
	if acc.OffsetMs() != 500 {
		t.Fatalf("offset after first frame = %d, want 500", acc.OffsetMs())
	}

	// The second frame's raw times restart at zero but its words must be
	// shifted past the first frame's audio.
	second := acc.Absorb(frameFromText("again", 20))
	for _, w := range second {
		if w.StartTimeMs < 500 {
			t.Errorf("word %q at %dms, want >= 500ms", w.Word, w.StartTimeMs)
		}
	}
}

func TestAccumulator_OffsetAdditivity(t *testing.T) {
	// Feeding two frames sequentially must match feeding their logical
	// concatenation when the time data is consistent.
	a := Frame{
		Chars:            []string{"o", "n", "e", " "},
		CharStartTimesMs: []int{0, 50, 100, 150},
		CharDurationsMs:  []int{50, 50, 50, 50},
	}
	b := Frame{
		Chars:            []string{"t", "w", "o"},
		CharStartTimesMs: []int{0, 50, 100},
		CharDurationsMs:  []int{50, 50, 50},
	}

	split := NewAccumulator()
	var splitWords []WordTiming
	splitWords = append(splitWords, split.Absorb(a)...)
	splitWords = append(splitWords, split.Absorb(b)...)

	combined := Frame{
		Chars:            []string{"o", "n", "e", " ", "t", "w", "o"},
		CharStartTimesMs: []int{0, 50, 100, 150, 200, 250, 300},
		CharDurationsMs:  []int{50, 50, 50, 50, 50, 50, 50},
	}
	whole := NewAccumulator()
	wholeWords := whole.Absorb(combined)

	if !reflect.DeepEqual(splitWords, wholeWords) {
		t.Errorf("split = %v, combined = %v", splitWords, wholeWords)
	}
	if split.OffsetMs() != whole.OffsetMs() {
		t.Errorf("split offset = %d, combined offset = %d", split.OffsetMs(), whole.OffsetMs())
	}
}

func TestAccumulator_CustomTrailingBuffer(t *testing.T) {
	acc := NewAccumulator()
	acc.TrailingBufferMs = 250

	acc.Absorb(frameFromText("ab", 100))

	if acc.OffsetMs() != 100+250 {
		t.Errorf("offset = %d, want %d", acc.OffsetMs(), 350)
	}
}

func TestWordStartTimes_MultipleSpaces(t *testing.T) {
	f := frameFromText("a  b", 10)

	words, _ := WordStartTimes(f, 0, DefaultTrailingBufferMs)

	var got []string
	for _, w := range words {
		got = append(got, w.Word)
	}
	if strings.Join(got, ",") != "a,b" {
		t.Errorf("words = %v, want [a b]", got)
	}
}
