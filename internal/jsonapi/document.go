package jsonapi

import (
	json "github.com/goccy/go-json"
)

// MediaType is the JSON:API media type without extensions.
const MediaType = "application/vnd.api+json"

// AtomicExtension is the URI of the Atomic Operations extension.
const AtomicExtension = "https://jsonapi.org/ext/atomic"

// MediaTypeAtomic is the full media type carried by atomic operation
// requests and responses.
const MediaTypeAtomic = MediaType + `; ext="` + AtomicExtension + `"`

// OperationsDocument is the request envelope of an atomic batch.
type OperationsDocument struct {
	Operations []Operation `json:"atomic:operations"`
}

// ResultsDocument is the response envelope of a fully successful batch
// that produced at least one non-empty result.
type ResultsDocument struct {
	Results []Result `json:"atomic:results"`
}

// Operation is one wire-level element of an atomic batch.
//
// Data is kept raw because its shape depends on the operation: a resource
// object for create/update, an identifier array for to-many relationship
// mutations, or null for clearing a to-one relationship. A nil RawMessage
// means the member was absent; the literal "null" means it was null.
type Operation struct {
	Op   string          `json:"op"`
	Href *string         `json:"href,omitempty"`
	Ref  *Ref            `json:"ref,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
	Meta map[string]any  `json:"meta,omitempty"`
}

// HasData reports whether the data member was present, even as null.
func (o *Operation) HasData() bool {
	return o.Data != nil
}

// DataIsNull reports whether the data member was present and null.
func (o *Operation) DataIsNull() bool {
	return isJSONNull(o.Data)
}

// Ref names the target of an operation: a resource, optionally narrowed to
// one of its relationships.
type Ref struct {
	Type         string  `json:"type,omitempty"`
	ID           *string `json:"id,omitempty"`
	Lid          *string `json:"lid,omitempty"`
	Relationship string  `json:"relationship,omitempty"`
}

// Result is one element of atomic:results. Data is null for operations
// without an observable side effect; the member is always emitted so the
// result array stays aligned with the operation array.
type Result struct {
	Data *ResourceObject `json:"data"`
	Meta map[string]any  `json:"meta,omitempty"`
}

// DecodeOperationsDocument parses the request body of an atomic batch.
func DecodeOperationsDocument(body []byte) (*OperationsDocument, error) {
	var doc OperationsDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 4 && string(raw) == "null"
}
