package chunk

import (
	"strings"
	"testing"
)

func TestSplit_ShortTextSingleSegment(t *testing.T) {
	text := strings.Repeat("a", 400)

	got := Split(text, 500, 50)

	if len(got) != 1 {
		t.Fatalf("Split() returned %d segments, want 1", len(got))
	}
	if got[0] != text {
		t.Errorf("Split() = %q, want input unchanged", got[0])
	}
}

func TestSplit_TrimsSingleSegment(t *testing.T) {
	got := Split("  hello world \n", 500, 50)

	if len(got) != 1 || got[0] != "hello world" {
		t.Errorf("Split() = %v, want [hello world]", got)
	}
}

func TestSplit_CutsAtSentenceBoundary(t *testing.T) {
	// 20 sentences of 60 chars each: 59 'x' followed by a period.
	sentence := strings.Repeat("x", 59) + "."
	text := strings.Repeat(sentence, 20) // 1200 chars

	segments := Split(text, 500, 50)

	if len(segments) < 2 {
		t.Fatalf("Split() returned %d segments, want several", len(segments))
	}
	for i, seg := range segments[:len(segments)-1] {
		if !strings.HasSuffix(seg, ".") {
			t.Errorf("segment %d does not end at a sentence boundary: ...%q", i, seg[len(seg)-10:])
		}
	}
}

func TestSplit_OverlapReconstructsOriginal(t *testing.T) {
	sentence := strings.Repeat("x", 59) + "."
	text := strings.Repeat(sentence, 20) // 1200 chars, no whitespace

	const overlap = 50
	segments := Split(text, 500, overlap)

	var sb strings.Builder
	sb.WriteString(segments[0])
	for _, seg := range segments[1:] {
		runes := []rune(seg)
		sb.WriteString(string(runes[overlap:]))
	}
	if sb.String() != text {
		t.Error("concatenation minus overlaps does not reconstruct the original text")
	}
}

func TestSplit_SoftBoundaryFallback(t *testing.T) {
	// No strong boundaries at all; a comma inside the search window.
	text := strings.Repeat("y", 450) + "," + strings.Repeat("y", 300)

	segments := Split(text, 500, 50)

	if !strings.HasSuffix(segments[0], ",") {
		t.Errorf("first segment should cut at the comma, got tail %q", segments[0][len(segments[0])-5:])
	}
}

func TestSplit_NoBoundaryCutsAtWindowEdge(t *testing.T) {
	text := strings.Repeat("z", 800)

	segments := Split(text, 500, 50)

	if len(segments) != 2 {
		t.Fatalf("Split() returned %d segments, want 2", len(segments))
	}
	if len(segments[0]) != 500 {
		t.Errorf("first segment length = %d, want 500", len(segments[0]))
	}
}

func TestSplit_CJKBoundaries(t *testing.T) {
	sentence := strings.Repeat("字", 49) + "。"
	text := strings.Repeat(sentence, 15) // 750 runes

	segments := Split(text, 500, 50)

	for i, seg := range segments[:len(segments)-1] {
		if !strings.HasSuffix(seg, "。") {
			t.Errorf("segment %d does not end at 。", i)
		}
	}
}

func TestSplit_PathologicalOverlapTerminates(t *testing.T) {
	text := strings.Repeat("q", 1000)

	// overlap >= segmentSize must not loop forever.
	segments := Split(text, 100, 100)

	if len(segments) == 0 {
		t.Fatal("Split() returned no segments")
	}
}
