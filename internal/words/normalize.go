package words

import "strings"

// Normalize trims, collapses inner whitespace and case-folds text so that
// guesses and chat can be compared against the secret word.
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Matches reports whether a guess names the word exactly after normalization.
func Matches(guess, word string) bool {
	g := Normalize(guess)
	return g != "" && g == Normalize(word)
}

// Mentions returns the first of word or forbidden that appears inside text,
// compared case-insensitively as a substring.
func Mentions(text string, entry Entry) (string, bool) {
	body := Normalize(text)
	if body == "" {
		return "", false
	}
	if w := Normalize(entry.Word); w != "" && strings.Contains(body, w) {
		return entry.Word, true
	}
	for _, term := range entry.Forbidden {
		if t := Normalize(term); t != "" && strings.Contains(body, t) {
			return term, true
		}
	}
	return "", false
}
