package handler

import "consentlake/internal/consent/models"

// UpdateRequest carries the consent fields to change. Omitted fields keep
// their previous value.
type UpdateRequest struct {
	models.Partial
}
