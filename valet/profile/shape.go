package profile

import "strings"

// Shape applies a profile's verbosity budget to spoken text: at most
// MaxSentences sentences, then at most MaxWords words. Deterministic, so
// fixture tests can assert exact output.
//
// This is the single place verbosity is enforced. Intent handlers produce
// full text; the router shapes it here once, centrally.
func Shape(text string, p Profile) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	sentences := splitSentences(text)
	if p.MaxSentences > 0 && len(sentences) > p.MaxSentences {
		sentences = sentences[:p.MaxSentences]
	}
	shaped := strings.Join(sentences, " ")

	if p.MaxWords > 0 {
		words := strings.Fields(shaped)
		if len(words) > p.MaxWords {
			shaped = strings.Join(words[:p.MaxWords], " ")
			shaped = strings.TrimRight(shaped, ",;:") + "."
		}
	}
	return shaped
}

// SentenceCount returns the number of sentences in text.
func SentenceCount(text string) int {
	return len(splitSentences(strings.TrimSpace(text)))
}

// splitSentences splits on terminal punctuation followed by whitespace.
// Each returned sentence keeps its terminal punctuation.
func splitSentences(text string) []string {
	if text == "" {
		return nil
	}
	var sentences []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			// Consume any run of terminal punctuation.
			for i+1 < len(runes) && (runes[i+1] == '.' || runes[i+1] == '!' || runes[i+1] == '?') {
				i++
			}
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
				sentence := strings.TrimSpace(string(runes[start : i+1]))
				if sentence != "" {
					sentences = append(sentences, sentence)
				}
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}
