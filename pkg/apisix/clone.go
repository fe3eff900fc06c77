package apisix

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/apisix-client/internal/constants"
)

// Cloner copies an entity into a new one within the same collection.
type Cloner struct {
	provider ResourceProvider
	logger   Logger
}

// NewCloner creates a new cloner.
func NewCloner(provider ResourceProvider, logger Logger) *Cloner {
	if logger == nil {
		logger = NopLogger()
	}

	return &Cloner{
		provider: provider,
		logger:   logger,
	}
}

// Clone reads sourceID, strips identity and server-assigned fields, applies
// overrides on top and creates the result under newID, then under an id
// supplied in overrides, or else under a server-assigned id.
//
// Some collections (certificates) leave key material out of the single-entity
// GET while the list response carries it. Those fields are taken from the list
// entry for sourceID before the new entity is composed.
func (c *Cloner) Clone(ctx context.Context, endpoint, sourceID string, overrides Entity, newID string) (Entity, error) {
	if sourceID == "" {
		return nil, ErrIDRequired
	}

	resource := c.provider.Resource(endpoint)

	source, err := resource.Get(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("reading clone source %s: %w", sourceID, err)
	}

	profile := constants.ProfileFor(endpoint)

	err = c.backfillSensitive(ctx, resource, profile, sourceID, source, overrides)
	if err != nil {
		return nil, err
	}

	strip := []string{constants.FieldID, constants.FieldCreateTime, constants.FieldUpdateTime, profile.IdentityField}
	strip = append(strip, profile.VolatileFields...)

	payload := source.Without(strip...).Merge(overrides)

	if newID == "" {
		newID = overrides.IdentityValue(profile.IdentityField)
	}

	if newID != "" && profile.IdentityField != constants.FieldID {
		payload[profile.IdentityField] = newID
	}

	created, err := resource.Create(ctx, newID, payload)
	if err != nil {
		return nil, fmt.Errorf("creating clone of %s: %w", sourceID, err)
	}

	c.logger.Info("entity cloned", map[string]interface{}{
		"endpoint":  endpoint,
		"source_id": sourceID,
		"new_id":    created.IdentityValue(profile.IdentityField),
	})

	return created, nil
}

// backfillSensitive copies the profile's sensitive fields that the GET left
// out from the matching list entry. Fields the caller overrides are not fetched.
func (c *Cloner) backfillSensitive(
	ctx context.Context,
	resource ResourceClient,
	profile constants.EntityProfile,
	sourceID string,
	source Entity,
	overrides Entity,
) error {
	missing := make([]string, 0, len(profile.SensitiveFields))

	for _, field := range profile.SensitiveFields {
		if isBlank(source[field]) && isBlank(overrides[field]) {
			missing = append(missing, field)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	c.logger.Debug("clone source omits sensitive fields, reading list", map[string]interface{}{
		"endpoint":  resource.Endpoint(),
		"source_id": sourceID,
		"fields":    missing,
	})

	items, err := resource.List(ctx, nil)
	if err != nil {
		return fmt.Errorf("reading %s list for sensitive fields: %w", resource.Endpoint(), err)
	}

	var listed Entity

	for _, item := range items {
		if item.IdentityValue(profile.IdentityField) == sourceID {
			listed = item

			break
		}
	}

	for _, field := range missing {
		if listed != nil && !isBlank(listed[field]) {
			source[field] = listed[field]

			continue
		}

		if profile.IsRequired(field) {
			return fmt.Errorf("%w: %s.%s", ErrSensitiveFieldMissing, sourceID, field)
		}
	}

	return nil
}
