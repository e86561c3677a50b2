package chunking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spanTexts(text string, spans []span) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.text(text)
	}
	return out
}

func TestSentenceSpans_BasicSplit(t *testing.T) {
	text := "Первое предложение целиком. Второе предложение тоже целиком! Третье предложение здесь?"
	spans := sentenceSpans(text)

	require.Len(t, spans, 3)
	assert.Equal(t, "Первое предложение целиком.", spans[0].text(text))
	assert.Equal(t, "Второе предложение тоже целиком!", spans[1].text(text))
	assert.Equal(t, "Третье предложение здесь?", spans[2].text(text))
}

func TestSentenceSpans_ProtectsAbbreviations(t *testing.T) {
	text := "Бюджет вырос до 5 млн. Рублей не хватило, т.е. Проект заморожен."
	spans := sentenceSpans(text)

	// "млн." and "т.е." must not split even though they precede capitals.
	require.Len(t, spans, 1)
	assert.Equal(t, text, spans[0].text(text))
}

func TestSentenceSpans_NoSplitWithoutCapital(t *testing.T) {
	text := "стоимость выросла. но рынок не отреагировал на это движение."
	spans := sentenceSpans(text)

	require.Len(t, spans, 1)
}

func TestSentenceSpans_GluesFragments(t *testing.T) {
	text := "Да. Это было очень длинное и подробное объяснение случившегося."
	spans := sentenceSpans(text)

	// "Да." is under the fragment floor and is glued forward.
	require.Len(t, spans, 1)
	assert.Equal(t, text, spans[0].text(text))
}

func TestSentenceSpans_VerbatimSubstrings(t *testing.T) {
	text := "Первое предложение about markets. Второе предложение about weather."
	for _, s := range sentenceSpans(text) {
		assert.Equal(t, text[s.start:s.end], s.text(text))
	}
}

func TestMergeShortSpans(t *testing.T) {
	text := "Короткая фраза тут. Вторая часть фразы добавляет достаточно символов для границы."
	spans := sentenceSpans(text)
	require.Len(t, spans, 2)

	merged := mergeShortSpans(text, spans, 40)
	require.Len(t, merged, 1)
	assert.Equal(t, text, merged[0].text(text))
}

func TestSplitSentences_AppendsTerminator(t *testing.T) {
	got := SplitSentences("Первое предложение закончилось. Второе осталось без точки в конце")
	require.Len(t, got, 2)
	assert.Equal(t, "Первое предложение закончилось.", got[0])
	assert.Equal(t, "Второе осталось без точки в конце.", got[1])
}

func TestSplitSentences_Empty(t *testing.T) {
	assert.Nil(t, SplitSentences("   "))
}
