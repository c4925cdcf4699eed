package handler

import "consentlake/internal/consent/models"

type CheckResponse struct {
	UserID  string `json:"user_id"`
	Purpose string `json:"purpose"`
	Allowed bool   `json:"allowed"`
}

type RevokeResponse struct {
	UserID  string `json:"user_id"`
	Revoked bool   `json:"revoked"`
}

type AuditResponse struct {
	UserID    string                `json:"user_id"`
	Count     int                   `json:"count"`
	Snapshots []*models.UserConsent `json:"snapshots"`
}
