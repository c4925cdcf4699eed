package models

import "time"

// CurrentVersion is stamped on every snapshot.
const CurrentVersion = "1.0"

// UserConsent is one immutable, timestamped snapshot of a user's choices.
// The latest snapshot wins; older ones form the audit trail.
type UserConsent struct {
	UserID          string    `json:"user_id"`
	AITraining      bool      `json:"consent_ai_training"`
	DataSale        bool      `json:"consent_data_sale"`
	Analytics       bool      `json:"consent_analytics"`
	Personalization bool      `json:"consent_personalization"`
	Research        bool      `json:"consent_research"`
	Timestamp       time.Time `json:"consent_timestamp"`
	Version         string    `json:"consent_version"`
	IPAddress       string    `json:"ip_address,omitempty"`
	UserAgent       string    `json:"user_agent,omitempty"`
}

// Allows reports whether the snapshot grants p. Unknown purposes are denied.
func (c *UserConsent) Allows(p Purpose) bool {
	if c == nil {
		return false
	}
	switch p {
	case PurposeAITraining:
		return c.AITraining
	case PurposeDataSale:
		return c.DataSale
	case PurposeAnalytics:
		return c.Analytics
	case PurposePersonalization:
		return c.Personalization
	case PurposeResearch:
		return c.Research
	default:
		return false
	}
}

// Merge returns the next snapshot: fields set in p override prev, fields never
// set anywhere are false. Timestamp, version and metadata are left to the caller.
func Merge(userID string, prev *UserConsent, p Partial) UserConsent {
	next := UserConsent{UserID: userID}
	if prev != nil {
		next.AITraining = prev.AITraining
		next.DataSale = prev.DataSale
		next.Analytics = prev.Analytics
		next.Personalization = prev.Personalization
		next.Research = prev.Research
	}
	apply := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&next.AITraining, p.AITraining)
	apply(&next.DataSale, p.DataSale)
	apply(&next.Analytics, p.Analytics)
	apply(&next.Personalization, p.Personalization)
	apply(&next.Research, p.Research)
	return next
}

// Report aggregates the latest snapshot of every user.
type Report struct {
	TotalUsers             int       `json:"total_users"`
	AITrainingConsent      int       `json:"ai_training_consent"`
	DataSaleConsent        int       `json:"data_sale_consent"`
	AnalyticsConsent       int       `json:"analytics_consent"`
	PersonalizationConsent int       `json:"personalization_consent"`
	ResearchConsent        int       `json:"research_consent"`
	GeneratedAt            time.Time `json:"generated_at"`
}

// Add counts one user's latest snapshot.
func (r *Report) Add(c *UserConsent) {
	r.TotalUsers++
	if c.AITraining {
		r.AITrainingConsent++
	}
	if c.DataSale {
		r.DataSaleConsent++
	}
	if c.Analytics {
		r.AnalyticsConsent++
	}
	if c.Personalization {
		r.PersonalizationConsent++
	}
	if c.Research {
		r.ResearchConsent++
	}
}

// Event is published on every consent change.
type Event struct {
	Type       EventType    `json:"type"`
	UserID     string       `json:"user_id"`
	Consent    *UserConsent `json:"consent"`
	OccurredAt time.Time    `json:"occurred_at"`
}
