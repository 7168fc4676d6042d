package cleaner

import (
	"regexp"
	"unicode/utf8"
)

// DefaultMaxChunkLength is the fragment size used when the caller passes a
// non-positive limit.
const DefaultMaxChunkLength = 15000

// blockCloseRe matches the closing tag of a block-level element, the only
// place a document may be split without cutting a promotion block in half.
var blockCloseRe = regexp.MustCompile(`(?i)</(?:div|section|article|li|ul|ol|p|table|tr|tbody|main|aside|header|h[1-6])\s*>`)

// Chunk is one ordered fragment of a sanitized document.
type Chunk struct {
	Index int
	Text  string
}

// SplitChunks splits doc into fragments of at most limit bytes (so at most
// limit characters). Each cut is placed right after the last closing
// block-element tag that fits in the window; when the window holds none, the
// cut falls on the last rune boundary at or before the limit.
//
// Concatenating the Text of every chunk reproduces doc exactly. An empty
// document yields no chunks.
func SplitChunks(doc string, limit int) []Chunk {
	if limit <= 0 {
		limit = DefaultMaxChunkLength
	}

	var chunks []Chunk
	rest := doc
	for len(rest) > limit {
		cut := lastBlockBoundary(rest[:limit])
		if cut <= 0 {
			cut = runeBoundary(rest, limit)
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Text: rest[:cut]})
		rest = rest[cut:]
	}
	if rest != "" {
		chunks = append(chunks, Chunk{Index: len(chunks), Text: rest})
	}
	return chunks
}

// lastBlockBoundary returns the offset just past the last closing block tag
// fully contained in window, or -1.
func lastBlockBoundary(window string) int {
	locs := blockCloseRe.FindAllStringIndex(window, -1)
	if len(locs) == 0 {
		return -1
	}
	return locs[len(locs)-1][1]
}

// runeBoundary backs off from limit to the start of a UTF-8 sequence.
func runeBoundary(s string, limit int) int {
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		return limit
	}
	return cut
}

// EstimateTokens gives a rough token count for logging chunk sizes:
// utf8 rune count / 3, a middle ground between English (~4 chars/token)
// and CJK (~1.5 chars/token).
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	if est := n / 3; est > 0 {
		return est
	}
	return 1
}
