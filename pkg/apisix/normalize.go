package apisix

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/apisix-client/internal/constants"
)

// envelopeKind tags the envelope variant a response body used. The tag never
// leaves this file: callers only ever see normalized entities.
type envelopeKind int

const (
	envelopeDirectEntity envelopeKind = iota
	envelopeDirectList
	envelopeLegacyValue
	envelopeLegacyList
	envelopeWrappedValue
	envelopeWrappedList
)

// envelope is a decoded response body with every item already normalized.
type envelope struct {
	kind    envelopeKind
	items   []Entity
	total   *int
	hasMore *bool
}

// ListMeta carries the pagination metadata a server reported, if any.
type ListMeta struct {
	Total   *int
	HasMore *bool
}

// ExtractValue returns the single entity carried by a response body,
// whichever envelope the server used. The entity always has a populated id
// when the envelope carried a key.
func ExtractValue(body []byte) (Entity, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}

	switch env.kind {
	case envelopeDirectEntity, envelopeLegacyValue, envelopeWrappedValue:
		if len(env.items) == 0 {
			return nil, ErrUnknownEnvelope
		}

		return env.items[0], nil
	default:
		return nil, fmt.Errorf("%w: expected a single entity, got a list", ErrUnknownEnvelope)
	}
}

// ExtractList returns the entities carried by a list response body. An empty
// collection yields an empty, non-nil slice.
func ExtractList(body []byte) ([]Entity, error) {
	items, _, err := ExtractListWithMeta(body)

	return items, err
}

// ExtractListWithMeta is ExtractList plus whatever total/has_more the server reported.
func ExtractListWithMeta(body []byte) ([]Entity, ListMeta, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return []Entity{}, ListMeta{}, nil
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, ListMeta{}, err
	}

	if env.kind == envelopeDirectEntity || env.kind == envelopeLegacyValue || env.kind == envelopeWrappedValue {
		return nil, ListMeta{}, fmt.Errorf("%w: expected a list, got a single entity", ErrUnknownEnvelope)
	}

	items := env.items
	if items == nil {
		items = []Entity{}
	}

	return items, ListMeta{Total: env.total, HasMore: env.hasMore}, nil
}

// DetectFormat reports which envelope family a response body belongs to.
func DetectFormat(body []byte) ResponseFormat {
	env, err := decodeEnvelope(body)
	if err == nil && (env.kind == envelopeLegacyValue || env.kind == envelopeLegacyList) {
		return ResponseFormatLegacy
	}

	return ResponseFormatWrapped
}

func decodeEnvelope(body []byte) (*envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrEmptyBody
	}

	if trimmed[0] == '[' {
		var raw []interface{}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, &ParseError{Format: "json", Index: -1, Err: err}
		}

		return &envelope{kind: envelopeDirectList, items: normalizeItems(raw)}, nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &ParseError{Format: "json", Index: -1, Err: err}
	}

	if node, ok := raw["node"].(map[string]interface{}); ok {
		return decodeLegacy(node), nil
	}

	if _, ok := raw["list"]; ok {
		env := &envelope{kind: envelopeWrappedList, items: normalizeItems(asSlice(raw["list"]))}
		env.total = intField(raw, "total")
		env.hasMore = boolField(raw, "has_more")

		return env, nil
	}

	if value, ok := raw["value"].(map[string]interface{}); ok {
		key, _ := raw["key"].(string)

		return &envelope{kind: envelopeWrappedValue, items: []Entity{backfillID(Entity(value), key)}}, nil
	}

	return &envelope{kind: envelopeDirectEntity, items: []Entity{Entity(raw)}}, nil
}

func decodeLegacy(node map[string]interface{}) *envelope {
	if nodes, ok := node["nodes"]; ok {
		return &envelope{kind: envelopeLegacyList, items: normalizeItems(asSlice(nodes))}
	}

	if dir, _ := node["dir"].(bool); dir {
		return &envelope{kind: envelopeLegacyList, items: []Entity{}}
	}

	value, ok := node["value"].(map[string]interface{})
	if !ok {
		return &envelope{kind: envelopeLegacyValue}
	}

	key, _ := node["key"].(string)

	return &envelope{kind: envelopeLegacyValue, items: []Entity{backfillID(Entity(value), key)}}
}

// asSlice accepts an array or the empty object 2.x servers send for an empty directory.
func asSlice(raw interface{}) []interface{} {
	switch value := raw.(type) {
	case []interface{}:
		return value
	case map[string]interface{}:
		out := make([]interface{}, 0, len(value))
		for _, item := range value {
			out = append(out, item)
		}

		return out
	default:
		return nil
	}
}

func normalizeItems(raw []interface{}) []Entity {
	items := make([]Entity, 0, len(raw))

	for _, item := range raw {
		object, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		if rawValue, wrapped := object["value"]; wrapped {
			value, ok := rawValue.(map[string]interface{})
			if !ok {
				// tombstone or directory marker
				continue
			}

			key, _ := object["key"].(string)
			items = append(items, backfillID(Entity(value), key))

			continue
		}

		items = append(items, Entity(object))
	}

	return items
}

// backfillID sets id from the last segment of the storage key when the entity
// has no id or its id does not match the key.
func backfillID(entity Entity, key string) Entity {
	if key == "" {
		return entity
	}

	id := entity.ID()
	if id != "" && strings.HasSuffix(key, "/"+id) {
		return entity
	}

	if segment := constants.Collection(key); segment != "" {
		entity[constants.FieldID] = segment
	}

	return entity
}

func intField(raw map[string]interface{}, field string) *int {
	if number, ok := raw[field].(float64); ok {
		value := int(number)

		return &value
	}

	return nil
}

func boolField(raw map[string]interface{}, field string) *bool {
	if flag, ok := raw[field].(bool); ok {
		return &flag
	}

	return nil
}
