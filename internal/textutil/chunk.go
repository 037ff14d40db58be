// Package textutil prepares document text for speech.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunk splits text into pieces of at most max bytes. It prefers to break
// after sentence punctuation, then at whitespace, and only cuts inside a
// word when a single word is longer than max. Surrounding whitespace is
// trimmed from every piece and empty pieces are dropped.
func Chunk(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if max <= 0 || len(text) <= max {
		return []string{text}
	}

	var chunks []string
	for len(text) > max {
		cut := breakPoint(text, max)
		if piece := strings.TrimSpace(text[:cut]); piece != "" {
			chunks = append(chunks, piece)
		}
		text = strings.TrimLeftFunc(text[cut:], unicode.IsSpace)
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// breakPoint returns the byte offset to cut text at, never beyond max and
// never inside a UTF-8 sequence.
func breakPoint(text string, max int) int {
	window := text[:max]

	sentence, space := -1, -1
	for i, r := range window {
		switch {
		case r == '.' || r == '!' || r == '?' || r == ';' || r == '\n':
			sentence = i + utf8.RuneLen(r)
		case unicode.IsSpace(r):
			space = i
		}
	}

	switch {
	case sentence > 0:
		return sentence
	case space > 0:
		return space
	}

	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(text)
		return size
	}
	return cut
}
