package export

import "strings"

var (
	supportivePhrases = []string{"I understand", "I can help"}
	unhelpfulPhrases  = []string{"I don't know", "I can't help"}
	positiveWords     = []string{"support", "understand", "help", "care", "listen", "validate"}
)

// QualityScore rates a prompt/completion pair in [0, 1]. It starts at 0.5
// and adds 0.1 for each heuristic the pair passes. Lengths are in runes.
func QualityScore(prompt, completion string) float64 {
	score := 0.5

	if n := len([]rune(prompt)); n > 10 && n < 1000 {
		score += 0.1
	}
	if n := len([]rune(completion)); n > 20 && n < 2000 {
		score += 0.1
	}
	if containsAny(completion, supportivePhrases) {
		score += 0.1
	}
	if !containsAny(completion, unhelpfulPhrases) {
		score += 0.1
	}
	if lexicalDiversity(completion) > 0.7 {
		score += 0.1
	}
	if containsAny(strings.ToLower(completion), positiveWords) {
		score += 0.1
	}
	return min(1.0, max(0.0, score))
}

// lexicalDiversity is unique/total over single-space separated words. An
// empty string counts as one empty word.
func lexicalDiversity(s string) float64 {
	words := strings.Split(s, " ")
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	return float64(len(unique)) / float64(len(words))
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// tokenCount approximates model tokens by whitespace-separated words.
func tokenCount(parts ...string) int {
	n := 0
	for _, p := range parts {
		n += len(strings.Fields(p))
	}
	return n
}
