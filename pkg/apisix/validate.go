package apisix

import (
	"github.com/fivetwenty-io/apisix-client/internal/constants"
)

// ValidateEntity runs the pre-flight shape check for an entity written to endpoint.
// Only fields the endpoint profile marks as required are checked.
func ValidateEntity(endpoint string, entity Entity) error {
	if len(entity) == 0 {
		return &ValidationError{Reason: "entity is empty"}
	}

	for _, field := range constants.ProfileFor(endpoint).RequiredFields {
		if isBlank(entity[field]) {
			return &ValidationError{Field: field, Reason: "is required"}
		}
	}

	return nil
}

// RequiresValidation reports whether writes to endpoint carry required fields.
func RequiresValidation(endpoint string) bool {
	return len(constants.ProfileFor(endpoint).RequiredFields) > 0
}

func isBlank(value interface{}) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case []interface{}:
		return len(typed) == 0
	case map[string]interface{}:
		return len(typed) == 0
	default:
		return false
	}
}
