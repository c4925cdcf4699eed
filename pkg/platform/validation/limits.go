package validation

import (
	"fmt"

	dErrors "consentlake/pkg/domain-errors"
)

// Ingestion limits. Entry shapes are validated by logentry; these bound the
// envelope around them.
const (
	// MaxBatchEntries is the maximum number of entries per batch request.
	MaxBatchEntries = 500

	// MaxCustomFields is the maximum number of custom fields merged into an entry.
	MaxCustomFields = 50

	// MaxFieldNameLength is the maximum length of a custom field name.
	MaxFieldNameLength = 128

	// MaxUserIDLength is the maximum length of a user id in a route.
	MaxUserIDLength = 255
)

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}

// CheckFieldNames validates the size of a free-form field map and the length
// of each of its keys.
func CheckFieldNames(fieldName string, fields map[string]any, maxCount, maxLength int) error {
	if err := CheckSliceCount(fieldName, len(fields), maxCount); err != nil {
		return err
	}
	for k := range fields {
		if len(k) > maxLength {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s name exceeds max length of %d", fieldName, maxLength))
		}
	}
	return nil
}
