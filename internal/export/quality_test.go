package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualityScore(t *testing.T) {
	tests := []struct {
		name       string
		prompt     string
		completion string
		want       float64
	}{
		{
			name:       "supportive reply to a short prompt",
			prompt:     "Hi",
			completion: "I understand, I can help.",
			want:       1.0,
		},
		{
			name:       "empty pair keeps base plus absence of unhelpful phrasing",
			prompt:     "",
			completion: "",
			want:       0.7,
		},
		{
			name:       "unhelpful reply",
			prompt:     "What should I do tonight?",
			completion: "I don't know what to tell you",
			want:       0.8,
		},
		{
			name:       "repetitive reply",
			prompt:     "Tell me something",
			completion: "yes yes yes yes yes yes yes yes yes yes",
			want:       0.8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, QualityScore(tt.prompt, tt.completion), 1e-9)
		})
	}
}

func TestQualityScoreIsBounded(t *testing.T) {
	inputs := []string{
		"",
		" ",
		"I understand",
		strings.Repeat("support ", 400),
		strings.Repeat("x", 5000),
		"I can help, I understand, we care and listen and validate and support you",
		"I can't help. I don't know.",
	}
	for _, p := range inputs {
		for _, c := range inputs {
			score := QualityScore(p, c)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	}
}

func TestTokenCount(t *testing.T) {
	assert.Equal(t, 0, tokenCount("", "  "))
	assert.Equal(t, 5, tokenCount("one two", " three\tfour\nfive "))
}
