package models

import "strings"

// Purpose labels why data is processed. Each purpose is one boolean on the
// consent snapshot.
type Purpose string

const (
	PurposeAITraining      Purpose = "ai_training"
	PurposeDataSale        Purpose = "data_sale"
	PurposeAnalytics       Purpose = "analytics"
	PurposePersonalization Purpose = "personalization"
	PurposeResearch        Purpose = "research"
)

// ValidPurposes is the single source of truth for all valid consent purposes.
var ValidPurposes = map[Purpose]bool{
	PurposeAITraining:      true,
	PurposeDataSale:        true,
	PurposeAnalytics:       true,
	PurposePersonalization: true,
	PurposeResearch:        true,
}

const fieldPrefix = "consent_"

// IsValid checks if the consent purpose is one of the supported enum values.
func (p Purpose) IsValid() bool {
	return ValidPurposes[p]
}

// Field is the snapshot field name for p, e.g. "consent_analytics".
func (p Purpose) Field() string {
	return fieldPrefix + string(p)
}

// ParsePurpose accepts both the short ("analytics") and the field
// ("consent_analytics") spelling.
func ParsePurpose(s string) (Purpose, bool) {
	p := Purpose(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), fieldPrefix))
	return p, p.IsValid()
}

// EventType names a consent change published to the event stream.
type EventType string

const (
	EventConsentUpdated EventType = "consent.updated"
	EventConsentRevoked EventType = "consent.revoked"
)
