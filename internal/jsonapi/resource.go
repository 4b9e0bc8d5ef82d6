package jsonapi

import (
	json "github.com/goccy/go-json"
)

// ResourceObject is a JSON:API resource object as it appears in an
// operation's data member (request side) or in a result (response side).
//
// On the request side ID and Lid are pointers so presence is detectable;
// on the response side ID is always set and Lid is never emitted (local IDs
// are a request-scoped concept).
type ResourceObject struct {
	Type          string                        `json:"type"`
	ID            *string                       `json:"id,omitempty"`
	Lid           *string                       `json:"lid,omitempty"`
	Attributes    map[string]any                `json:"attributes,omitempty"`
	Relationships map[string]RelationshipObject `json:"relationships,omitempty"`
	Meta          map[string]any                `json:"meta,omitempty"`
}

// RelationshipObject is the value of one entry in a resource object's
// relationships member. Only the data form is supported; links are the
// concern of the routing layer.
//
// A nil Data means the data member was absent (rejected during parsing);
// the literal "null" means an explicit null (clear a to-one relationship).
type RelationshipObject struct {
	Data json.RawMessage `json:"data,omitempty"`
	Meta map[string]any  `json:"meta,omitempty"`
}

// HasData reports whether the data member was present, even as null.
func (r *RelationshipObject) HasData() bool {
	return r.Data != nil
}

// DataIsNull reports whether the data member was present and null.
func (r *RelationshipObject) DataIsNull() bool {
	return isJSONNull(r.Data)
}

// ResourceIdentifier names one resource instance by type plus exactly one
// of id or lid.
type ResourceIdentifier struct {
	Type string         `json:"type,omitempty"`
	ID   *string        `json:"id,omitempty"`
	Lid  *string        `json:"lid,omitempty"`
	Meta map[string]any `json:"meta,omitempty"`
}

// DecodeResourceObject parses a single resource object from raw data.
// Returns an error if the raw value is not a JSON object.
func DecodeResourceObject(raw json.RawMessage) (*ResourceObject, error) {
	var res ResourceObject
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DecodeResourceIdentifier parses a single resource identifier object.
func DecodeResourceIdentifier(raw json.RawMessage) (*ResourceIdentifier, error) {
	var ident ResourceIdentifier
	if err := json.Unmarshal(raw, &ident); err != nil {
		return nil, err
	}
	return &ident, nil
}

// DecodeResourceIdentifiers parses an array of resource identifier objects.
func DecodeResourceIdentifiers(raw json.RawMessage) ([]ResourceIdentifier, error) {
	var idents []ResourceIdentifier
	if err := json.Unmarshal(raw, &idents); err != nil {
		return nil, err
	}
	return idents, nil
}

// IsJSONObject reports whether raw starts an object value.
func IsJSONObject(raw json.RawMessage) bool {
	return firstByte(raw) == '{'
}

// IsJSONArray reports whether raw starts an array value.
func IsJSONArray(raw json.RawMessage) bool {
	return firstByte(raw) == '['
}

func firstByte(raw json.RawMessage) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}
