package testutil

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"time"
)

// TestIDs provides fixed user ids for tests.
var TestIDs = struct {
	UserID1 string
	UserID2 string
	UserID3 string
}{
	UserID1: "u1",
	UserID2: "u2",
	UserID3: "u3",
}

// EntryBuilder provides a fluent interface for building raw log entries.
type EntryBuilder struct {
	fields map[string]any
}

// NewChatBotEntry starts a valid chat-bot entry.
func NewChatBotEntry() *EntryBuilder {
	return &EntryBuilder{fields: map[string]any{
		"service":          "chat-bot",
		"interaction_type": "conversation",
		"model":            "gpt-4",
		"prompt":           "Hi",
		"response":         "I understand, I can help.",
	}}
}

// NewAIEntry starts a valid ai-service entry.
func NewAIEntry() *EntryBuilder {
	return &EntryBuilder{fields: map[string]any{
		"service":          "ai-service",
		"interaction_type": "completion",
		"model":            "gpt-4",
		"prompt":           "How do I build a sleep routine?",
		"response":         "I can help you plan a calm evening routine that supports rest.",
	}}
}

// NewJournalEntry starts a valid journal entry with analysis insights.
func NewJournalEntry() *EntryBuilder {
	return &EntryBuilder{fields: map[string]any{
		"service":          "journal-service",
		"interaction_type": "entry_created",
		"entry_id":         "j-1",
		"entry_content":    "Today felt heavy but the walk helped.",
		"analysis_results": map[string]any{
			"insights": "Movement seems to support your mood; I understand walks help you reset.",
		},
	}}
}

// NewRecommendationEntry starts a valid recommendation entry with positive feedback.
func NewRecommendationEntry() *EntryBuilder {
	return &EntryBuilder{fields: map[string]any{
		"service":             "recommendation-service",
		"interaction_type":    "recommendation_feedback",
		"recommendation_type": "activity",
		"recommendation_id":   "r-1",
		"user_feedback":       "positive",
	}}
}

func (b *EntryBuilder) WithUser(userID string) *EntryBuilder {
	b.fields["user_id"] = userID
	return b
}

func (b *EntryBuilder) WithTimestamp(t time.Time) *EntryBuilder {
	b.fields["timestamp"] = t.UTC().Format(time.RFC3339Nano)
	return b
}

func (b *EntryBuilder) With(key string, value any) *EntryBuilder {
	b.fields[key] = value
	return b
}

func (b *EntryBuilder) Without(key string) *EntryBuilder {
	delete(b.fields, key)
	return b
}

// Build returns a copy of the fields, so a builder can be reused.
func (b *EntryBuilder) Build() map[string]any {
	return maps.Clone(b.fields)
}

// Gzip compresses data. It panics on error; for tests only.
func Gzip(data []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		panic(fmt.Sprintf("Gzip: %v", err))
	}
	if err := zw.Close(); err != nil {
		panic(fmt.Sprintf("Gzip: %v", err))
	}
	return buf.Bytes()
}

// JSONLines decodes newline-delimited JSON objects, gunzipping first when
// compressed is set.
func JSONLines(body []byte, compressed bool) ([]map[string]any, error) {
	var r io.Reader = bytes.NewReader(body)
	if compressed {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}
	var out []map[string]any
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, sc.Err()
}
