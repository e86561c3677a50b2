// Package chunking turns raw ASR segments into bounded, sentence-aligned,
// semantically cohesive chunks with word-accurate timestamps.
package chunking

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Abbreviations whose trailing dot never ends a sentence. ASR output for
// Russian-language material is full of these; without protection the
// splitter shreds "т.е." into three sentences.
var abbreviations = []string{
	"т.е.", "т.д.", "т.п.", "и.т.д.", "др.", "г.",
	"руб.", "млн.", "млрд.", "тыс.",
}

// minSentenceRunes is the floor below which a "sentence" is considered a
// fragment and glued to its neighbor.
const minSentenceRunes = 10

// span is a half-open byte range into a source text.
type span struct {
	start int
	end   int
}

func (s span) text(source string) string {
	return source[s.start:s.end]
}

func (s span) runes(source string) int {
	return utf8.RuneCountInString(source[s.start:s.end])
}

// protectedDots marks byte positions of dots that sit inside an
// abbreviation occurrence anywhere in text.
func protectedDots(text string) map[int]bool {
	lower := strings.ToLower(text)
	protected := make(map[int]bool)
	for _, abbr := range abbreviations {
		from := 0
		for {
			idx := strings.Index(lower[from:], abbr)
			if idx < 0 {
				break
			}
			base := from + idx
			for off, r := range abbr {
				if r == '.' {
					protected[base+off] = true
				}
			}
			from = base + len(abbr)
		}
	}
	return protected
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// sentenceSpans segments text into sentence byte ranges. A boundary is a
// terminator followed by whitespace and an uppercase letter, excluding dots
// inside known abbreviations. Fragments shorter than minSentenceRunes are
// glued to the preceding sentence. Spans are trimmed of surrounding space
// and always reference verbatim substrings, so callers can map them back to
// character offsets without re-searching.
func sentenceSpans(text string) []span {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	protected := protectedDots(text)

	var raw []span
	sentenceStart := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isTerminator(r) || protected[i] {
			i += size
			continue
		}

		// Absorb any run of terminators ("?!", "...").
		j := i + size
		for j < len(text) {
			nr, nsize := utf8.DecodeRuneInString(text[j:])
			if !isTerminator(nr) || protected[j] {
				break
			}
			j += nsize
		}

		// Boundary needs whitespace then an uppercase letter.
		k := j
		sawSpace := false
		for k < len(text) {
			nr, nsize := utf8.DecodeRuneInString(text[k:])
			if !unicode.IsSpace(nr) {
				break
			}
			sawSpace = true
			k += nsize
		}
		if sawSpace && k < len(text) {
			nr, _ := utf8.DecodeRuneInString(text[k:])
			if unicode.IsUpper(nr) {
				raw = append(raw, span{start: sentenceStart, end: j})
				sentenceStart = k
			}
		}
		i = j
	}
	if sentenceStart < len(text) {
		raw = append(raw, span{start: sentenceStart, end: len(text)})
	}

	trimmed := make([]span, 0, len(raw))
	for _, s := range raw {
		if t, ok := trimSpan(text, s); ok {
			trimmed = append(trimmed, t)
		}
	}

	return glueFragments(text, trimmed)
}

// trimSpan shrinks a span to exclude surrounding whitespace.
func trimSpan(text string, s span) (span, bool) {
	start, end := s.start, s.end
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	if start >= end {
		return span{}, false
	}
	return span{start: start, end: end}, true
}

// glueFragments merges sub-minimum fragments into the preceding sentence
// (or the following one when the fragment comes first).
func glueFragments(text string, spans []span) []span {
	var out []span
	for _, s := range spans {
		if len(out) > 0 && (s.runes(text) < minSentenceRunes || out[len(out)-1].runes(text) < minSentenceRunes) {
			out[len(out)-1].end = s.end
			continue
		}
		out = append(out, s)
	}
	return out
}

// mergeShortSpans grows sentences below minRunes by absorbing the following
// sentence. Keeping spans (instead of rewriting text) preserves the exact
// substring property.
func mergeShortSpans(text string, spans []span, minRunes int) []span {
	if len(spans) == 0 {
		return spans
	}
	out := []span{spans[0]}
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if last.runes(text) < minRunes {
			last.end = s.end
			continue
		}
		out = append(out, s)
	}
	return out
}

// SplitSentences segments detached text into trimmed sentence strings, each
// carrying a terminator. Used by the force-split pre-pass where the text
// does not need to stay addressable by offset.
func SplitSentences(text string) []string {
	spans := sentenceSpans(text)
	if len(spans) == 0 {
		trimmedText := strings.TrimSpace(text)
		if trimmedText == "" {
			return nil
		}
		return []string{ensureTerminator(trimmedText)}
	}
	out := make([]string, 0, len(spans))
	for _, s := range spans {
		out = append(out, ensureTerminator(s.text(text)))
	}
	return out
}

func ensureTerminator(s string) string {
	r, _ := utf8.DecodeLastRuneInString(s)
	if isTerminator(r) {
		return s
	}
	return s + "."
}
