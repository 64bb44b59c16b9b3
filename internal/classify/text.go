package classify

import (
	"strings"
	"unicode"
)

// Stop words excluded from matching.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "do": true, "for": true, "from": true, "has": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "will": true, "with": true,
	"i": true, "me": true, "my": true, "we": true, "you": true, "your": true,
	"this": true, "these": true, "those": true, "there": true, "their": true,
	"what": true, "when": true, "where": true, "can": true,
}

// Normalize cleans and standardizes query text: lowercase, collapsed
// whitespace, trimmed.
func Normalize(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	normalized = strings.ToLower(normalized)
	return strings.TrimSpace(normalized)
}

// Tokenize extracts matchable terms from normalized text, dropping
// punctuation, single characters, and stop words.
func Tokenize(normalized string) []string {
	words := strings.Fields(normalized)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = cleanWord(word)
		if len(word) < 2 || stopWords[word] {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// cleanWord removes punctuation from a word.
func cleanWord(word string) string {
	var cleaned strings.Builder
	for _, r := range word {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' || r == '\'' {
			cleaned.WriteRune(r)
		}
	}
	return cleaned.String()
}
