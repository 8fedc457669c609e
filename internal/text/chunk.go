package text

import (
	"strings"
	"unicode/utf8"
)

// sentenceTerminators close a sentence when followed by whitespace or end of
// input.
const sentenceTerminators = ".!?"

// SplitIntoChunks splits text into ordered, non-empty chunks of at most
// maxLen characters. Sentences are the splitting unit: whole sentences are
// accumulated into a chunk until adding the next one would exceed maxLen.
// A single sentence longer than maxLen is hard-split at word boundaries.
// Concatenating the chunks preserves every sentence exactly once, in order.
func (p *Preprocessor) SplitIntoChunks(text string, maxLen int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if maxLen <= 0 || utf8.RuneCountInString(trimmed) <= maxLen {
		return []string{trimmed}
	}

	var (
		chunks  []string
		current strings.Builder
	)

	currentLen := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()

			currentLen = 0
		}
	}

	for _, sentence := range splitSentences(trimmed) {
		sentenceLen := utf8.RuneCountInString(sentence)

		if sentenceLen > maxLen {
			flush()

			chunks = append(chunks, hardSplit(sentence, maxLen)...)

			continue
		}

		// +1 accounts for the joining space.
		if currentLen > 0 && currentLen+1+sentenceLen > maxLen {
			flush()
		}

		if currentLen > 0 {
			current.WriteString(" ")

			currentLen++
		}

		current.WriteString(sentence)

		currentLen += sentenceLen
	}

	flush()

	return chunks
}

// splitSentences slices text at sentence-terminating punctuation followed by
// whitespace, keeping the punctuation with its sentence.
func splitSentences(text string) []string {
	var (
		sentences []string
		start     int
	)

	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		if !strings.ContainsRune(sentenceTerminators, runes[i]) {
			continue
		}

		// Swallow runs of terminators such as "?!" or "...".
		for i+1 < len(runes) && strings.ContainsRune(sentenceTerminators, runes[i+1]) {
			i++
		}

		if i+1 < len(runes) && !isSpaceRune(runes[i+1]) {
			continue
		}

		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}

		start = i + 1
	}

	if start < len(runes) {
		tail := strings.TrimSpace(string(runes[start:]))
		if tail != "" {
			sentences = append(sentences, tail)
		}
	}

	return sentences
}

// hardSplit breaks an oversize sentence into maxLen-bounded pieces,
// preferring word boundaries.
func hardSplit(sentence string, maxLen int) []string {
	var (
		pieces  []string
		current strings.Builder
	)

	currentLen := 0

	for _, word := range strings.Fields(sentence) {
		wordLen := utf8.RuneCountInString(word)

		if currentLen > 0 && currentLen+1+wordLen > maxLen {
			pieces = append(pieces, current.String())
			current.Reset()

			currentLen = 0
		}

		if currentLen > 0 {
			current.WriteString(" ")

			currentLen++
		}

		// A single word longer than maxLen is cut mid-word.
		for wordLen > maxLen {
			runes := []rune(word)
			pieces = append(pieces, string(runes[:maxLen]))
			word = string(runes[maxLen:])
			wordLen = utf8.RuneCountInString(word)
		}

		current.WriteString(word)

		currentLen += wordLen
	}

	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}

	return pieces
}

func isSpaceRune(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}
