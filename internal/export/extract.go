package export

import (
	"github.com/google/uuid"

	"consentlake/internal/logentry"
)

// Sources recorded on training entries.
const (
	SourceChatBot         = "lyfbot"
	SourceAI              = "ai-service"
	SourceJournal         = "journal"
	SourceRecommendations = "recommendations"
)

// recommendationScore is the fixed score of positively rated recommendations.
const recommendationScore = 0.8

// TrainingEntry is one prompt/completion pair in the exported artifact.
type TrainingEntry struct {
	ID           string        `json:"id"`
	Prompt       string        `json:"prompt"`
	Completion   string        `json:"completion"`
	Source       string        `json:"source"`
	Timestamp    string        `json:"timestamp,omitempty"`
	UserID       string        `json:"user_id,omitempty"`
	QualityScore float64       `json:"quality_score"`
	Metadata     EntryMetadata `json:"metadata"`
}

type EntryMetadata struct {
	Source       string   `json:"source"`
	UserID       string   `json:"user_id,omitempty"`
	Timestamp    string   `json:"timestamp,omitempty"`
	QualityScore float64  `json:"quality_score"`
	Tags         []string `json:"tags"`
}

// extract applies the rule for service to one stored entry. Rules match on
// the partition's service, not the entry's tag. Services without a rule
// yield nothing.
func (e *Exporter) extract(service string, entry *logentry.Entry) (*TrainingEntry, bool) {
	switch logentry.Canonical(logentry.Service(service)) {
	case logentry.ServiceChatBot:
		prompt, response := entry.String("prompt"), entry.String("response")
		if prompt == "" || response == "" {
			return nil, false
		}
		if e.cfg.FilterCrisisContent {
			if crisis, _ := entry.Fields["crisis_detected"].(bool); crisis {
				return nil, false
			}
		}
		return e.pair(entry, SourceChatBot, prompt, response, QualityScore(prompt, response),
			"conversation", "mental-health", "support"), true

	case logentry.ServiceAI:
		prompt, response := entry.String("prompt"), entry.String("response")
		if prompt == "" || response == "" {
			return nil, false
		}
		return e.pair(entry, SourceAI, prompt, response, QualityScore(prompt, response),
			"ai-interaction", "general"), true

	case logentry.ServiceJournal:
		content := entry.String("entry_content")
		analysis, _ := entry.Fields["analysis_results"].(map[string]any)
		insights, _ := analysis["insights"].(string)
		if content == "" || insights == "" {
			return nil, false
		}
		return e.pair(entry, SourceJournal, "Analyze this journal entry: "+content, insights,
			QualityScore(content, insights), "journal", "analysis", "reflection"), true

	case logentry.ServiceRecommendation:
		kind := entry.String("recommendation_type")
		if kind == "" || entry.String("user_feedback") != "positive" {
			return nil, false
		}
		return e.pair(entry, SourceRecommendations,
			"Recommend "+kind+" for mental health support",
			"Based on your profile, I recommend this "+kind,
			recommendationScore, "recommendations", "personalization"), true
	}
	return nil, false
}

func (e *Exporter) pair(entry *logentry.Entry, source, prompt, completion string, score float64, tags ...string) *TrainingEntry {
	userID := entry.UserID()
	if e.cfg.AnonymizeData {
		userID = ""
	}
	ts := entry.String(logentry.FieldTimestamp)
	return &TrainingEntry{
		ID:           uuid.NewString(),
		Prompt:       prompt,
		Completion:   completion,
		Source:       source,
		Timestamp:    ts,
		UserID:       userID,
		QualityScore: score,
		Metadata: EntryMetadata{
			Source:       source,
			UserID:       userID,
			Timestamp:    ts,
			QualityScore: score,
			Tags:         tags,
		},
	}
}
