// Package chunk splits long text into overlapping segments on semantic
// boundaries, so that each segment can be embedded and retrieved
// independently without cutting sentences in half.
package chunk

// Default splitting parameters used by the knowledge index.
const (
	// DefaultSegmentSize is the target segment width in characters.
	DefaultSegmentSize = 500

	// DefaultOverlap is the number of characters shared between
	// consecutive segments.
	DefaultOverlap = 50

	// boundarySearchWindow is how far back from the raw window edge we
	// look for a sentence boundary before giving up and cutting at the
	// edge.
	boundarySearchWindow = 100
)

// strongBoundary reports whether r ends a sentence or paragraph.
func strongBoundary(r rune) bool {
	switch r {
	case '\n', '。', '.', '！', '?', '；':
		return true
	}
	return false
}

// softBoundary reports whether r is a clause separator, used only when no
// strong boundary exists in the search window.
func softBoundary(r rune) bool {
	return r == '，' || r == ','
}

// Split cuts text into segments of roughly segmentSize characters with
// overlap characters shared between neighbours. Sizes are measured in
// runes so CJK text chunks the same as ASCII.
//
// Each window prefers to end at the last strong boundary within the final
// boundarySearchWindow characters, falling back to a soft boundary, then
// to the raw window edge. Segments are whitespace-trimmed. Text no longer
// than segmentSize is returned as a single segment.
func Split(text string, segmentSize, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= segmentSize {
		return []string{trim(runes)}
	}

	var segments []string
	start := 0

	for start < len(runes) {
		end := min(start+segmentSize, len(runes))

		// Not the final window: pull the cut back to a boundary.
		if end < len(runes) {
			searchStart := max(start+segmentSize-boundarySearchWindow, start)
			if bp := findBreakPoint(runes, searchStart, end); bp > start {
				end = bp
			}
		}

		segments = append(segments, trim(runes[start:end]))

		// Guards against pathological parameters (overlap >= segmentSize)
		// that would otherwise loop forever.
		next := end - overlap
		if next <= start || next >= len(runes)-overlap {
			break
		}
		start = next
	}

	return segments
}

// findBreakPoint searches [searchStart, searchEnd) backward for the last
// boundary character and returns the index just past it. Strong boundaries
// win over soft ones; returns searchEnd when neither is present.
func findBreakPoint(runes []rune, searchStart, searchEnd int) int {
	for i := searchEnd - 1; i >= searchStart; i-- {
		if strongBoundary(runes[i]) {
			return i + 1
		}
	}
	for i := searchEnd - 1; i >= searchStart; i-- {
		if softBoundary(runes[i]) {
			return i + 1
		}
	}
	return searchEnd
}

// trim removes surrounding whitespace from a rune window.
func trim(runes []rune) string {
	start, end := 0, len(runes)
	for start < end && isSpace(runes[start]) {
		start++
	}
	for end > start && isSpace(runes[end-1]) {
		end--
	}
	return string(runes[start:end])
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '　':
		return true
	}
	return false
}
