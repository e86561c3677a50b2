package chunking

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/clipseek/clipseek/internal/models"
)

// forceSplit breaks an oversized raw segment into sentence-level
// sub-segments. Timestamps come from the word grid when the sentence can be
// matched against the segment's word list, and from proportional character
// allocation otherwise. Sub-segments that still exceed the bounds (a single
// run-on sentence) are hard-sliced.
func (c *Chunker) forceSplit(seg *models.Segment) []*models.Segment {
	spans := sentenceSpans(seg.Text)
	if len(spans) <= 1 {
		return c.hardSlice(seg)
	}

	words := seg.Words()
	joined := joinWordTexts(words)

	subs := make([]*models.Segment, 0, len(spans))
	currentStart := seg.StartSec
	totalRunes := 0
	for _, sp := range spans {
		totalRunes += sp.runes(seg.Text)
	}

	for i, sp := range spans {
		raw := sp.text(seg.Text)

		var subWords []models.Word
		start, end := 0.0, 0.0
		matched := false
		if len(words) > 0 {
			if sub, ok := matchSentenceWords(raw, joined, words); ok {
				subWords = sub
				start = sub[0].Start
				end = sub[len(sub)-1].End
				matched = true
			}
		}
		if !matched {
			share := seg.DurationSec() / float64(len(spans))
			if totalRunes > 0 {
				share = float64(sp.runes(seg.Text)) / float64(totalRunes) * seg.DurationSec()
			}
			start = currentStart
			end = currentStart + share
		}
		if i == len(spans)-1 {
			end = seg.EndSec
		}

		sub := &models.Segment{
			SegmentID: fmt.Sprintf("%s-%d", seg.SegmentID, i),
			VideoID:   seg.VideoID,
			StartSec:  start,
			EndSec:    end,
			Text:      ensureTerminator(raw),
		}
		if err := sub.SetWords(subWords); err != nil {
			sub.WordsJSON = ""
		}
		subs = append(subs, sub)
		currentStart = end
	}

	out := make([]*models.Segment, 0, len(subs))
	for _, sub := range subs {
		if c.exceedsBounds(sub.Text, sub.DurationSec()) {
			out = append(out, c.hardSlice(sub)...)
		} else {
			out = append(out, sub)
		}
	}
	return out
}

// matchSentenceWords finds the contiguous word run backing a sentence by
// substring position in the space-joined word text.
func matchSentenceWords(sentence, joined string, words []models.Word) ([]models.Word, bool) {
	needle := strings.TrimSpace(sentence)
	idx := strings.Index(joined, needle)
	if idx < 0 {
		return nil, false
	}
	before := len(strings.Fields(joined[:idx]))
	count := len(strings.Fields(needle))
	if count == 0 || before+count > len(words) {
		return nil, false
	}
	return words[before : before+count], true
}

// hardSlice cuts a segment that has no usable sentence boundaries. With
// words present the slices follow the word grid; without them the text is
// cut into even character windows with proportional timestamps.
func (c *Chunker) hardSlice(seg *models.Segment) []*models.Segment {
	words := seg.Words()
	if len(words) > 0 {
		return c.hardSliceByWords(seg, words)
	}
	return c.hardSliceByChars(seg)
}

func (c *Chunker) hardSliceByWords(seg *models.Segment, words []models.Word) []*models.Segment {
	var out []*models.Segment
	sliceFrom := 0
	sliceRunes := 0

	emit := func(to int) {
		slice := words[sliceFrom:to]
		texts := make([]string, len(slice))
		for i, w := range slice {
			texts[i] = w.Text
		}
		sub := &models.Segment{
			SegmentID: fmt.Sprintf("%s-%d", seg.SegmentID, len(out)),
			VideoID:   seg.VideoID,
			StartSec:  slice[0].Start,
			EndSec:    slice[len(slice)-1].End,
			Text:      ensureTerminator(strings.Join(texts, " ")),
		}
		if err := sub.SetWords(slice); err != nil {
			sub.WordsJSON = ""
		}
		out = append(out, sub)
	}

	for i, w := range words {
		wRunes := utf8.RuneCountInString(w.Text)
		overChars := sliceRunes > 0 && sliceRunes+1+wRunes > c.packBudget()
		overTime := sliceRunes > 0 && w.End-words[sliceFrom].Start > c.cfg.MaxSeconds
		if overChars || overTime {
			emit(i)
			sliceFrom = i
			sliceRunes = wRunes
			continue
		}
		if sliceRunes == 0 {
			sliceRunes = wRunes
		} else {
			sliceRunes += 1 + wRunes
		}
	}
	emit(len(words))
	return out
}

func (c *Chunker) hardSliceByChars(seg *models.Segment) []*models.Segment {
	runes := []rune(seg.Text)
	duration := seg.DurationSec()

	n := int(math.Ceil(math.Max(
		float64(len(runes))/float64(c.cfg.MaxChars),
		duration/c.cfg.MaxSeconds,
	)))
	if n < 2 {
		n = 2
	}
	// The ceiling window plus the appended terminator can nudge a slice
	// just past a bound; widen the split until every window fits.
	per := (len(runes) + n - 1) / n
	for per+1 > c.cfg.MaxChars || duration*float64(per)/float64(len(runes)) > c.cfg.MaxSeconds {
		n++
		per = (len(runes) + n - 1) / n
	}

	var out []*models.Segment
	currentStart := seg.StartSec
	for i := 0; i < len(runes); i += per {
		end := i + per
		if end > len(runes) {
			end = len(runes)
		}
		text := strings.TrimSpace(string(runes[i:end]))
		if text == "" {
			continue
		}

		subEnd := currentStart + duration*float64(end-i)/float64(len(runes))
		if end == len(runes) {
			subEnd = seg.EndSec
		}
		out = append(out, &models.Segment{
			SegmentID: fmt.Sprintf("%s-%d", seg.SegmentID, len(out)),
			VideoID:   seg.VideoID,
			StartSec:  currentStart,
			EndSec:    subEnd,
			Text:      ensureTerminator(text),
		})
		currentStart = subEnd
	}
	return out
}

// fallback chunks by raw segment boundaries when no word timestamps or no
// encoder are available. Inputs have already been force-split, so every
// segment respects the bounds; grouping checks the maximum before anything
// else, same as the sentence path.
func (c *Chunker) fallback(segments []*models.Segment) []Chunk {
	if len(segments) == 0 {
		return nil
	}

	var chunks []timed
	var texts []string
	var start, end float64
	runeLen := 0

	emit := func() {
		if len(texts) == 0 {
			return
		}
		chunks = append(chunks, timed{
			start: start,
			end:   end,
			text:  ensureTerminator(strings.Join(texts, " ")),
		})
		texts = nil
		runeLen = 0
	}

	for _, seg := range segments {
		segRunes := utf8.RuneCountInString(seg.Text)
		if len(texts) > 0 && (runeLen+1+segRunes > c.packBudget() || seg.EndSec-start > c.cfg.MaxSeconds) {
			emit()
		}
		if len(texts) == 0 {
			start = seg.StartSec
			runeLen = segRunes
		} else {
			runeLen += 1 + segRunes
		}
		texts = append(texts, seg.Text)
		end = seg.EndSec
	}

	// Trailing group: fold into the predecessor when short, if the merge
	// stays within bounds.
	if len(texts) > 0 {
		text := ensureTerminator(strings.Join(texts, " "))
		if runeLen < c.cfg.MinChars && len(chunks) > 0 {
			prev := chunks[len(chunks)-1]
			mergedRunes := utf8.RuneCountInString(prev.text) + 1 + utf8.RuneCountInString(text)
			mergedDur := end - prev.start
			if mergedRunes <= c.cfg.MaxChars && mergedDur <= c.cfg.MaxSeconds {
				chunks[len(chunks)-1] = timed{
					start: prev.start,
					end:   end,
					text:  strings.TrimRight(prev.text, ".!?") + " " + text,
				}
			} else {
				chunks = append(chunks, timed{start: start, end: end, text: text})
			}
		} else {
			chunks = append(chunks, timed{start: start, end: end, text: text})
		}
	}

	return finishChunks(c.postMerge(chunks), "seg")
}

func joinWordTexts(words []models.Word) string {
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}
	return strings.Join(texts, " ")
}
