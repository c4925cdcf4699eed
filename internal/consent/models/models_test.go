package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePurpose(t *testing.T) {
	tests := []struct {
		in   string
		want Purpose
		ok   bool
	}{
		{"analytics", PurposeAnalytics, true},
		{"consent_analytics", PurposeAnalytics, true},
		{" Consent_AI_Training ", PurposeAITraining, true},
		{"research", PurposeResearch, true},
		{"marketing", "marketing", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParsePurpose(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "consent_data_sale", PurposeDataSale.Field())
}

func TestMerge(t *testing.T) {
	yes, no := true, false

	first := Merge("u1", nil, Partial{AITraining: &yes})
	assert.True(t, first.AITraining)
	assert.False(t, first.Analytics, "never-set fields default to false")

	second := Merge("u1", &first, Partial{Analytics: &yes})
	assert.True(t, second.AITraining, "unset fields carry over")
	assert.True(t, second.Analytics)

	third := Merge("u1", &second, Partial{AITraining: &no})
	assert.False(t, third.AITraining)
	assert.True(t, third.Analytics)

	revoked := Merge("u1", &third, AllFalse())
	assert.Equal(t, UserConsent{UserID: "u1"}, revoked)
}

func TestAllows(t *testing.T) {
	c := &UserConsent{Analytics: true}
	assert.True(t, c.Allows(PurposeAnalytics))
	assert.False(t, c.Allows(PurposeAITraining))
	assert.False(t, c.Allows("marketing"))

	var missing *UserConsent
	assert.False(t, missing.Allows(PurposeAnalytics))
}

func TestReportAdd(t *testing.T) {
	var r Report
	r.Add(&UserConsent{AITraining: true, Research: true})
	r.Add(&UserConsent{Analytics: true})
	assert.Equal(t, 2, r.TotalUsers)
	assert.Equal(t, 1, r.AITrainingConsent)
	assert.Equal(t, 1, r.AnalyticsConsent)
	assert.Equal(t, 1, r.ResearchConsent)
	assert.Zero(t, r.DataSaleConsent)
}
