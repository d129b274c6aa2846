// Package chunker splits assistant reply text into bounded speakable
// chunks, one per text-to-speech call. Chunking is a pure function:
// deterministic, total for any input string, and idempotent on text
// that already fits in one chunk.
package chunker

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultMaxChars bounds a single synthesis request.
const DefaultMaxChars = 200

var (
	reHeading  = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	reBullet   = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	reNumbered = regexp.MustCompile(`(?m)^[ \t]*\d+[.)][ \t]+`)
	reLink     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	reCode     = regexp.MustCompile("`([^`]*)`")
	reBold     = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	reItalic   = regexp.MustCompile(`\*([^*]+)\*`)
	reBoldU    = regexp.MustCompile(`__([^_]+)__`)
	reItalicU  = regexp.MustCompile(`\b_([^_]+)_\b`)
	reBlank    = regexp.MustCompile(`\n[ \t]*\n+`)

	// prefixes Normalize would strip from the head of a chunk
	reMarker = regexp.MustCompile(`^(?:#{1,6}|[-*+]|\d+[.)])[ \t]`)
)

// Normalize strips structural markup (headings, emphasis, inline code,
// link syntax reduced to link text, list prefixes) and collapses runs
// of blank lines to single newlines. Speech output has no use for any
// of it.
func Normalize(text string) string {
	out := reHeading.ReplaceAllString(text, "")
	out = reBullet.ReplaceAllString(out, "")
	out = reNumbered.ReplaceAllString(out, "")
	out = reLink.ReplaceAllString(out, "$1")
	out = reCode.ReplaceAllString(out, "$1")
	out = reBold.ReplaceAllString(out, "$1")
	out = reItalic.ReplaceAllString(out, "$1")
	out = reBoldU.ReplaceAllString(out, "$1")
	out = reItalicU.ReplaceAllString(out, "$1")
	out = reBlank.ReplaceAllString(out, "\n")
	return strings.TrimSpace(out)
}

// ChunkText normalizes text and greedily packs it into chunks of at
// most maxChars characters. Split points are searched backward from the
// limit in priority order: sentence-ending punctuation followed by a
// space, a comma followed by a space, the last space, else a hard cut.
// Chunks are trimmed and empty chunks dropped. A blank input yields no
// chunks.
func ChunkText(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	if len(runes) <= maxChars {
		return []string{normalized}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxChars {
			if c := strings.TrimSpace(string(runes)); c != "" {
				chunks = append(chunks, c)
			}
			break
		}

		cut, next := splitPoint(runes, maxChars)
		chunk := strings.TrimSpace(string(runes[:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[next:]
		for len(runes) > 0 && unicode.IsSpace(runes[0]) {
			runes = runes[1:]
		}
	}
	return chunks
}

// splitPoint picks where to end the current chunk, returning the
// exclusive cut index and where the remainder starts. A space sitting
// exactly at maxChars is still a valid boundary. Boundaries whose
// remainder would start with a markup marker are skipped: the next
// normalize pass would eat it and re-chunking would not be a no-op.
func splitPoint(runes []rune, maxChars int) (cut, next int) {
	// sentence boundary: ". " "! " "? "
	for i := maxChars; i > 0; i-- {
		if runes[i] == ' ' && isSentenceEnd(runes[i-1]) && !startsWithMarker(runes, i+1) {
			return i, i + 1
		}
	}
	// clause boundary: ", "
	for i := maxChars; i > 0; i-- {
		if runes[i] == ' ' && runes[i-1] == ',' && !startsWithMarker(runes, i+1) {
			return i, i + 1
		}
	}
	// last space
	for i := maxChars; i > 0; i-- {
		if runes[i] == ' ' && !startsWithMarker(runes, i+1) {
			return i, i + 1
		}
	}
	// hard cut at the limit
	return maxChars, maxChars
}

func startsWithMarker(runes []rune, from int) bool {
	for from < len(runes) && unicode.IsSpace(runes[from]) {
		from++
	}
	to := from + 32
	if to > len(runes) {
		to = len(runes)
	}
	return reMarker.MatchString(string(runes[from:to]))
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return false
}
