package models

// Partial is an update request. A nil field keeps the previous value.
type Partial struct {
	AITraining      *bool `json:"consent_ai_training,omitempty"`
	DataSale        *bool `json:"consent_data_sale,omitempty"`
	Analytics       *bool `json:"consent_analytics,omitempty"`
	Personalization *bool `json:"consent_personalization,omitempty"`
	Research        *bool `json:"consent_research,omitempty"`
}

// IsEmpty reports whether no field is set.
func (p Partial) IsEmpty() bool {
	return p.AITraining == nil && p.DataSale == nil && p.Analytics == nil &&
		p.Personalization == nil && p.Research == nil
}

// AllFalse is the partial written by a full revocation.
func AllFalse() Partial {
	f := false
	return Partial{AITraining: &f, DataSale: &f, Analytics: &f, Personalization: &f, Research: &f}
}

// Meta is request context recorded with a snapshot. Values are stored only
// after anonymization.
type Meta struct {
	IPAddress string
	UserAgent string
}
