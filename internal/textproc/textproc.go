// Package textproc normalizes raw headline text for classification:
// strip non-alphabetic characters, lowercase, tokenize, remove stopwords,
// lemmatize, rejoin.
package textproc

import (
	"regexp"
	"strings"
)

var nonAlpha = regexp.MustCompile(`[^a-zA-Z\s]`)

// Normalize runs the full preprocessing chain and returns the cleaned
// text with tokens rejoined by single spaces.
func Normalize(text string) string {
	return strings.Join(Tokens(text), " ")
}

// Tokens runs the preprocessing chain and returns the resulting tokens.
func Tokens(text string) []string {
	text = nonAlpha.ReplaceAllString(text, "")
	text = strings.ToLower(text)

	var tokens []string
	for _, word := range strings.Fields(text) {
		if _, stop := stopwords[word]; stop {
			continue
		}
		tokens = append(tokens, Lemmatize(word))
	}
	return tokens
}

// irregular maps common irregular forms to their lemmas.
var irregular = map[string]string{
	"men":      "man",
	"women":    "woman",
	"children": "child",
	"people":   "people",
	"feet":     "foot",
	"teeth":    "tooth",
	"mice":     "mouse",
	"lives":    "life",
	"leaves":   "leaf",
	"dead":     "dead",
	"left":     "left",
	"worse":    "bad",
	"worst":    "bad",
}

// Lemmatize reduces a token to a base form using suffix rules, close to
// what a WordNet noun lemmatizer does for headline vocabulary.
func Lemmatize(word string) string {
	if lemma, ok := irregular[word]; ok {
		return lemma
	}
	if len(word) <= 3 {
		return word
	}

	switch {
	case strings.HasSuffix(word, "sses"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ies") && len(word) > 4:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "xes"), strings.HasSuffix(word, "zes"),
		strings.HasSuffix(word, "ches"), strings.HasSuffix(word, "shes"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ss"), strings.HasSuffix(word, "us"),
		strings.HasSuffix(word, "is"):
		return word
	case strings.HasSuffix(word, "s"):
		return word[:len(word)-1]
	}
	return word
}
