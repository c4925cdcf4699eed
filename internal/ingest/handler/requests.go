package handler

import (
	"consentlake/internal/ingest"
	"consentlake/pkg/platform/validation"
)

// LogRequest carries one raw entry. Validation of the entry itself happens
// in the ingestor so HTTP and in-process producers share the same rules.
type LogRequest struct {
	Entry        map[string]any `json:"entry" validate:"required"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

func (r *LogRequest) options() ingest.LogOptions {
	return ingest.LogOptions{CustomFields: r.CustomFields}
}

func (r *LogRequest) checkLimits() error {
	return checkCustomFields(r.CustomFields)
}

// BatchRequest carries up to validation.MaxBatchEntries raw entries sharing
// one set of custom fields.
type BatchRequest struct {
	Entries      []map[string]any `json:"entries" validate:"required,min=1"`
	CustomFields map[string]any   `json:"custom_fields,omitempty"`
}

func (r *BatchRequest) options() ingest.LogOptions {
	return ingest.LogOptions{CustomFields: r.CustomFields}
}

func (r *BatchRequest) checkLimits() error {
	if err := validation.CheckSliceCount("entries", len(r.Entries), validation.MaxBatchEntries); err != nil {
		return err
	}
	return checkCustomFields(r.CustomFields)
}

func checkCustomFields(fields map[string]any) error {
	return validation.CheckFieldNames("custom_fields", fields, validation.MaxCustomFields, validation.MaxFieldNameLength)
}
