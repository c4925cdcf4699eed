// Package logentry defines the closed set of producer event shapes and the
// fail-closed validator that admits them into the pipeline.
package logentry

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	dErrors "consentlake/pkg/domain-errors"
	"consentlake/pkg/validation"
)

// Field names shared by all variants.
const (
	FieldService         = "service"
	FieldTimestamp       = "timestamp"
	FieldInteractionType = "interaction_type"
	FieldUserID          = "user_id"
	FieldSessionID       = "session_id"
	FieldMetadata        = "metadata"
)

// Entry is a validated (or lenient-decoded) log event. Fields holds the
// producer's full shape, including custom fields the variant does not name;
// Variant holds the typed view used for validation and extraction.
type Entry struct {
	Service Service
	Variant Variant
	Fields  map[string]any
}

// Validate admits raw into the pipeline or returns a validation_failed error.
// A missing or unknown service tag, or a required field that is absent or
// mistyped for the variant, is terminal.
func Validate(raw map[string]any) (*Entry, error) {
	if raw == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "log entry is required")
	}
	tag, ok := raw[FieldService].(string)
	if !ok || tag == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "service is required")
	}
	svc := Service(tag)
	factory, ok := registry[svc]
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown service %q", tag))
	}

	body, err := json.Marshal(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "log entry is not serializable")
	}
	variant := factory()
	if err := json.Unmarshal(body, variant); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, typeErrorMessage(err))
	}
	if err := validation.Validate(variant); err != nil {
		return nil, err
	}

	return &Entry{Service: svc, Variant: variant, Fields: maps.Clone(raw)}, nil
}

// ValidateJSON decodes a single JSON object and validates it.
func ValidateJSON(data []byte) (*Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "log entry is not a JSON object")
	}
	return Validate(raw)
}

// FromFields wraps stored fields without validating them. Stored lake objects
// were validated at ingestion; re-validation on read would drop entries whose
// producers have since tightened their schema.
func FromFields(fields map[string]any) *Entry {
	tag, _ := fields[FieldService].(string)
	return &Entry{Service: Service(tag), Fields: fields}
}

func typeErrorMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.String())
	}
	return "log entry has mistyped fields"
}

// String returns the named top-level string field, or "".
func (e *Entry) String(name string) string {
	s, _ := e.Fields[name].(string)
	return s
}

// UserID returns the entry's user id, or "" when absent.
func (e *Entry) UserID() string { return e.String(FieldUserID) }

// Timestamp parses the entry's timestamp. ok is false when absent or malformed.
func (e *Entry) Timestamp() (t time.Time, ok bool) {
	raw := e.String(FieldTimestamp)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetTimestamp stamps the entry's timestamp in UTC RFC 3339 with milliseconds.
func (e *Entry) SetTimestamp(t time.Time) {
	e.Fields[FieldTimestamp] = t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	if e.Variant != nil {
		e.Variant.common().Timestamp = e.String(FieldTimestamp)
	}
}

// Merge copies custom fields over the entry. The service tag cannot be changed.
func (e *Entry) Merge(custom map[string]any) {
	for k, v := range custom {
		if k == FieldService {
			continue
		}
		e.Fields[k] = v
	}
}

// Clone returns a deep copy of the entry's fields; the variant is shared.
func (e *Entry) Clone() *Entry {
	return &Entry{Service: e.Service, Variant: e.Variant, Fields: deepCopy(e.Fields)}
}

// MarshalJSON writes the producer's shape, not the variant.
func (e *Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Fields)
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
