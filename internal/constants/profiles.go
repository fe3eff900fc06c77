package constants

import "strings"

// EntityProfile describes the handful of fields the core needs to know about an entity kind.
type EntityProfile struct {
	// IdentityField names the field holding the entity identifier.
	IdentityField string
	// VolatileFields are server-assigned and never copied by clone or written back by import.
	VolatileFields []string
	// SensitiveFields may be omitted from single-entity reads and must be recovered from list reads.
	SensitiveFields []string
	// RequiredFields must be present before a create or update is sent.
	RequiredFields []string
}

var temporalFields = []string{FieldCreateTime, FieldUpdateTime}

var defaultProfile = EntityProfile{
	IdentityField:  FieldID,
	VolatileFields: temporalFields,
}

var profiles = map[string]EntityProfile{
	"ssls": {
		IdentityField:   FieldID,
		VolatileFields:  append([]string{"validity_start", "validity_end"}, temporalFields...),
		SensitiveFields: []string{"key", "keys"},
		RequiredFields:  []string{"cert", "key"},
	},
	"consumers": {
		IdentityField:  FieldUsername,
		VolatileFields: temporalFields,
		RequiredFields: []string{FieldUsername},
	},
	"credentials": {
		IdentityField:  FieldID,
		VolatileFields: temporalFields,
		RequiredFields: []string{"plugins"},
	},
}

// ProfileFor returns the entity profile for an endpoint path such as
// "/apisix/admin/ssls" or "/apisix/admin/consumers/jack/credentials".
func ProfileFor(endpoint string) EntityProfile {
	if profile, ok := profiles[Collection(endpoint)]; ok {
		return profile
	}

	return defaultProfile
}

// Collection returns the last path segment of an endpoint.
func Collection(endpoint string) string {
	trimmed := strings.TrimRight(endpoint, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}

	return trimmed
}

// IsRequired reports whether field must be present on writes.
func (p EntityProfile) IsRequired(field string) bool {
	for _, required := range p.RequiredFields {
		if required == field {
			return true
		}
	}

	return false
}
