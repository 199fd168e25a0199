package embedding

import (
	"strings"
	"unicode"
)

// CLIP text model special tokens and vocabulary bound.
const (
	startOfText = 49406
	endOfText   = 49407
	vocabSize   = 49405
)

// Tokenizer produces token IDs for CLIP-style text models (input_ids, attention_mask).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64)
}

// SimpleTokenizer is a word-split tokenizer with hash-based token IDs (for testing or fallback).
// Han characters become one token each since category names carry no spaces.
type SimpleTokenizer struct{}

// Tokenize splits text into tokens and produces padded ids up to maxTokens, wrapped in
// start and end markers.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64) {
	if maxTokens <= 2 {
		maxTokens = 77
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)

	inputIDs[0] = startOfText
	attentionMask[0] = 1

	pos := 1
	for _, word := range SplitWords(strings.ToLower(text)) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(HashString(word)%vocabSize) + 1
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = endOfText
	attentionMask[pos] = 1
	return inputIDs, attentionMask
}

// SplitWords splits text on whitespace and punctuation, emitting each Han character as its
// own word. It returns nil for text without words.
func SplitWords(text string) []string {
	var (
		words []string
		word  strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			words = append(words, word.String())
			word.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			words = append(words, string(r))
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			flush()
		default:
			word.WriteRune(r)
		}
	}
	flush()
	return words
}

// HashString returns a deterministic non-negative hash.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	if h < 0 { // -MinInt overflows
		h = 0
	}
	return h
}
