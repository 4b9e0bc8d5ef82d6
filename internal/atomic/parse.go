package atomic

import (
	"fmt"
	"math"

	"github.com/openarc/strata/internal/jsonapi"
	"github.com/openarc/strata/internal/schema"
)

// Parser converts wire-level batch elements into typed operations,
// validating shape, member exclusivity, type registration, and field-level
// rules against the registry. Parsing fails fast: the first invalid
// element aborts the batch.
type Parser struct {
	reg *schema.Registry
}

// NewParser creates a parser over the given registry.
func NewParser(reg *schema.Registry) *Parser {
	return &Parser{reg: reg}
}

// ParseDocument parses every element of the batch in order.
func (p *Parser) ParseDocument(doc *jsonapi.OperationsDocument) ([]*Operation, *Error) {
	if len(doc.Operations) == 0 {
		return nil, newDeserializationError(ErrCodeMalformedDocument,
			"/atomic:operations", "No operations found.")
	}

	ops := make([]*Operation, 0, len(doc.Operations))
	for i := range doc.Operations {
		op, err := p.ParseOperation(&doc.Operations[i], i)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// ParseOperation parses one batch element at the given zero-based index.
func (p *Parser) ParseOperation(raw *jsonapi.Operation, index int) (*Operation, *Error) {
	ptr := jsonapi.OperationPointer(index)

	if raw.Href != nil {
		return nil, newDeserializationError(ErrCodeHrefNotSupported,
			jsonapi.JoinPointer(ptr, "href"), "The 'href' element is not supported.")
	}

	switch raw.Op {
	case "add", "update", "remove":
	case "":
		return nil, newDeserializationError(ErrCodeMalformedOperation,
			jsonapi.JoinPointer(ptr, "op"), "The 'op' element is required.")
	default:
		return nil, newDeserializationError(ErrCodeMalformedOperation,
			jsonapi.JoinPointer(ptr, "op"),
			fmt.Sprintf("The value %q is not a known operation code.", raw.Op))
	}

	var ref *Identifier
	var relationship *schema.Relationship
	if raw.Ref != nil {
		var err *Error
		ref, relationship, err = p.parseRef(raw.Ref, ptr)
		if err != nil {
			return nil, err
		}
	}

	if relationship != nil {
		return p.parseRelationshipOperation(raw, index, ptr, ref, relationship)
	}
	return p.parseResourceOperation(raw, index, ptr, ref)
}

// parseRef validates the ref element: type required and known, exactly one
// of id/lid, optional relationship resolved against the type.
func (p *Parser) parseRef(raw *jsonapi.Ref, ptr string) (*Identifier, *schema.Relationship, *Error) {
	refPtr := jsonapi.JoinPointer(ptr, "ref")

	typ, err := p.lookupType(raw.Type, refPtr)
	if err != nil {
		return nil, nil, err
	}

	ident := &Identifier{Type: typ, Pointer: refPtr}
	switch {
	case raw.ID != nil && raw.Lid != nil:
		return nil, nil, newDeserializationError(ErrCodeIDAndLidExclusive, refPtr,
			"The 'id' and 'lid' elements are mutually exclusive.")
	case raw.ID != nil:
		ident.ID = *raw.ID
	case raw.Lid != nil:
		ident.LID = *raw.Lid
	default:
		return nil, nil, newDeserializationError(ErrCodeIDOrLidRequired, refPtr,
			"Exactly one of 'id' or 'lid' is required.")
	}

	var relationship *schema.Relationship
	if raw.Relationship != "" {
		rel, ok := typ.Relationship(raw.Relationship)
		if !ok {
			return nil, nil, newDeserializationError(ErrCodeUnknownRelationship,
				jsonapi.JoinPointer(refPtr, "relationship"),
				fmt.Sprintf("Resource type %q does not contain a relationship named %q.",
					typ.PublicName, raw.Relationship))
		}
		relationship = rel
	}

	return ident, relationship, nil
}

// parseResourceOperation handles create, update, and delete of a primary
// resource.
func (p *Parser) parseResourceOperation(raw *jsonapi.Operation, index int, ptr string, ref *Identifier) (*Operation, *Error) {
	if raw.Op == "remove" {
		if ref == nil {
			return nil, newDeserializationError(ErrCodeMalformedOperation,
				jsonapi.JoinPointer(ptr, "ref"), "The 'ref' element is required.")
		}
		if raw.HasData() {
			return nil, newDeserializationError(ErrCodeMalformedOperation,
				jsonapi.JoinPointer(ptr, "data"),
				"The 'data' element is not supported for delete operations.")
		}
		return &Operation{
			Kind:    KindDeleteResource,
			Index:   index,
			Pointer: ptr,
			Target:  *ref,
		}, nil
	}

	isCreate := raw.Op == "add"

	if !raw.HasData() || raw.DataIsNull() {
		return nil, newDeserializationError(ErrCodeMalformedOperation,
			jsonapi.JoinPointer(ptr, "data"), "The 'data' element is required.")
	}
	if !jsonapi.IsJSONObject(raw.Data) {
		return nil, newDeserializationError(ErrCodeMalformedOperation,
			jsonapi.JoinPointer(ptr, "data"),
			"Expected a single resource object in the 'data' element.")
	}

	dataPtr := jsonapi.JoinPointer(ptr, "data")
	res, decodeErr := jsonapi.DecodeResourceObject(raw.Data)
	if decodeErr != nil {
		return nil, newDeserializationError(ErrCodeMalformedOperation, dataPtr,
			fmt.Sprintf("Invalid resource object: %v.", decodeErr))
	}

	typ, err := p.lookupType(res.Type, dataPtr)
	if err != nil {
		return nil, err
	}

	primary, err := p.parsePrimaryIdentifier(res, typ, dataPtr, isCreate)
	if err != nil {
		return nil, err
	}

	if ref != nil {
		if err := crossCheckRefAndData(ref, primary, dataPtr); err != nil {
			return nil, err
		}
		// Prefer the ref's identifier: the cross-check guaranteed equality
		// where both carried one, and for creates the ref may carry the
		// identity the data omitted.
		if primary.ID == "" && primary.LID == "" {
			primary.ID, primary.LID = ref.ID, ref.LID
		}
		if isCreate && typ.IDStrategy == schema.IDServer && primary.ID != "" {
			return nil, newDeserializationError(ErrCodeClientIDNotAllowed,
				jsonapi.JoinPointer(ptr, "ref", "id"),
				fmt.Sprintf("Resource type %q uses server-generated identifiers; the 'id' element is not allowed.",
					typ.PublicName))
		}
	}

	op := &Operation{
		Index:   index,
		Pointer: ptr,
		Target:  *primary,
	}
	if isCreate {
		op.Kind = KindCreateResource
		op.LocalID = primary.LID
	} else {
		op.Kind = KindUpdateResource
	}

	attrs, err := p.parseAttributes(res, typ, dataPtr)
	if err != nil {
		return nil, err
	}
	op.Attributes = attrs

	toOne, toMany, err := p.parseResourceRelationships(res, typ, dataPtr)
	if err != nil {
		return nil, err
	}
	op.RelsToOne = toOne
	op.RelsToMany = toMany

	return op, nil
}

// parsePrimaryIdentifier applies the identifier rules of the data element:
// exactly one of id/lid, except creates on server-generated types (neither
// allowed to carry a client id; may omit both) and creates on
// client-generated types (id required).
func (p *Parser) parsePrimaryIdentifier(res *jsonapi.ResourceObject, typ *schema.ResourceType, dataPtr string, isCreate bool) (*Identifier, *Error) {
	ident := &Identifier{Type: typ, Pointer: dataPtr}

	if res.ID != nil && res.Lid != nil {
		return nil, newDeserializationError(ErrCodeIDAndLidExclusive, dataPtr,
			"The 'id' and 'lid' elements are mutually exclusive.")
	}

	if !isCreate {
		switch {
		case res.ID != nil:
			ident.ID = *res.ID
		case res.Lid != nil:
			ident.LID = *res.Lid
		default:
			return nil, newDeserializationError(ErrCodeIDOrLidRequired, dataPtr,
				"Exactly one of 'id' or 'lid' is required.")
		}
		return ident, nil
	}

	switch typ.IDStrategy {
	case schema.IDClient:
		if res.ID == nil {
			return nil, newDeserializationError(ErrCodeIDOrLidRequired, dataPtr,
				fmt.Sprintf("Resource type %q uses client-generated identifiers; the 'id' element is required.",
					typ.PublicName))
		}
		ident.ID = *res.ID
	default:
		if res.ID != nil {
			return nil, newDeserializationError(ErrCodeClientIDNotAllowed,
				jsonapi.JoinPointer(dataPtr, "id"),
				fmt.Sprintf("Resource type %q uses server-generated identifiers; the 'id' element is not allowed.",
					typ.PublicName))
		}
		if res.Lid != nil {
			ident.LID = *res.Lid
		}
	}

	return ident, nil
}

// crossCheckRefAndData enforces agreement between the ref element and the
// primary identifier inside data, per the conflict rules: same type, same
// identifier kind, same value.
func crossCheckRefAndData(ref, data *Identifier, dataPtr string) *Error {
	if ref.Type != data.Type {
		return newConflictError(ErrCodeIncompatibleType,
			jsonapi.JoinPointer(dataPtr, "type"),
			fmt.Sprintf("Type %q in 'data' is incompatible with type %q in 'ref'.",
				data.Type.PublicName, ref.Type.PublicName))
	}

	if data.ID == "" && data.LID == "" {
		return nil
	}

	switch {
	case ref.ID != "" && data.ID != "":
		if ref.ID != data.ID {
			return newConflictError(ErrCodeConflictingIDValue,
				jsonapi.JoinPointer(dataPtr, "id"),
				fmt.Sprintf("Resource ID mismatch between 'ref.id' value %q and 'data.id' value %q.",
					ref.ID, data.ID))
		}
	case ref.LID != "" && data.LID != "":
		if ref.LID != data.LID {
			return newConflictError(ErrCodeConflictingLidValue,
				jsonapi.JoinPointer(dataPtr, "lid"),
				fmt.Sprintf("Local ID mismatch between 'ref.lid' value %q and 'data.lid' value %q.",
					ref.LID, data.LID))
		}
	case ref.ID != "":
		return newDeserializationError(ErrCodeIDOrLidRequired,
			jsonapi.JoinPointer(dataPtr, "id"),
			"The 'ref' element uses 'id', so the 'data' element must use 'id' as well.")
	default:
		return newDeserializationError(ErrCodeLidOrIDRequired,
			jsonapi.JoinPointer(dataPtr, "lid"),
			"The 'ref' element uses 'lid', so the 'data' element must use 'lid' as well.")
	}

	return nil
}

// parseAttributes validates and coerces the attributes member against the
// registry: unknown fields, read-only fields, and value types are checked
// here, before any persistence call.
func (p *Parser) parseAttributes(res *jsonapi.ResourceObject, typ *schema.ResourceType, dataPtr string) (map[string]any, *Error) {
	if len(res.Attributes) == 0 {
		return nil, nil
	}

	attrs := make(map[string]any, len(res.Attributes))
	for name, value := range res.Attributes {
		attrPtr := jsonapi.JoinPointer(dataPtr, "attributes", name)

		attr, ok := typ.Attribute(name)
		if !ok {
			return nil, newDeserializationError(ErrCodeUnknownField, attrPtr,
				fmt.Sprintf("Resource type %q does not contain an attribute named %q.",
					typ.PublicName, name))
		}
		if attr.ReadOnly {
			return nil, newDeserializationError(ErrCodeReadOnlyField, attrPtr,
				fmt.Sprintf("Attribute %q on resource type %q is read-only.",
					name, typ.PublicName))
		}

		coerced, err := coerceAttributeValue(attr, value, attrPtr)
		if err != nil {
			return nil, err
		}
		attrs[attr.PublicName] = coerced
	}

	return attrs, nil
}

// coerceAttributeValue converts a decoded JSON value to the attribute's
// native type. JSON numbers arrive as float64; integer attributes require
// an integral value.
func coerceAttributeValue(attr *schema.Attribute, value any, pointer string) (any, *Error) {
	if value == nil {
		return nil, nil
	}

	switch attr.Kind {
	case schema.AttrString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case schema.AttrInt:
		if f, ok := value.(float64); ok && f == math.Trunc(f) {
			return int64(f), nil
		}
	case schema.AttrFloat:
		if f, ok := value.(float64); ok {
			return f, nil
		}
	case schema.AttrBool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	}

	return nil, newDeserializationError(ErrCodeInvalidFieldValue, pointer,
		fmt.Sprintf("Incompatible value for attribute %q: expected %s.",
			attr.PublicName, attr.Kind))
}

// parseResourceRelationships validates the relationships member of a
// resource object: known names, data-bearing relationship objects, and
// linkage shaped by the relationship's cardinality.
func (p *Parser) parseResourceRelationships(res *jsonapi.ResourceObject, typ *schema.ResourceType, dataPtr string) (map[string]*Identifier, map[string][]Identifier, *Error) {
	if len(res.Relationships) == 0 {
		return nil, nil, nil
	}

	toOne := make(map[string]*Identifier)
	toMany := make(map[string][]Identifier)

	for name, relObj := range res.Relationships {
		relPtr := jsonapi.JoinPointer(dataPtr, "relationships", name)

		rel, ok := typ.Relationship(name)
		if !ok {
			return nil, nil, newDeserializationError(ErrCodeUnknownRelationship, relPtr,
				fmt.Sprintf("Resource type %q does not contain a relationship named %q.",
					typ.PublicName, name))
		}
		if !relObj.HasData() {
			return nil, nil, newDeserializationError(ErrCodeMalformedOperation, relPtr,
				"The 'data' element is required in relationship objects.")
		}

		linkPtr := jsonapi.JoinPointer(relPtr, "data")
		switch rel.Kind {
		case schema.RelToOne:
			if relObj.DataIsNull() {
				toOne[rel.PublicName] = nil
				continue
			}
			if !jsonapi.IsJSONObject(relObj.Data) {
				return nil, nil, newDeserializationError(ErrCodeMalformedOperation, linkPtr,
					"Expected a single resource identifier object or null in to-one relationship data.")
			}
			ident, err := p.parseIdentifierRaw(relObj.Data, rel.Target, linkPtr)
			if err != nil {
				return nil, nil, err
			}
			toOne[rel.PublicName] = ident
		case schema.RelToMany:
			idents, err := p.parseIdentifierArray(relObj.Data, rel.Target, linkPtr)
			if err != nil {
				return nil, nil, err
			}
			toMany[rel.PublicName] = idents
		}
	}

	if len(toOne) == 0 {
		toOne = nil
	}
	if len(toMany) == 0 {
		toMany = nil
	}
	return toOne, toMany, nil
}

// parseRelationshipOperation handles the three relationship mutations:
// update (replace), add (append), remove (subtract).
func (p *Parser) parseRelationshipOperation(raw *jsonapi.Operation, index int, ptr string, owner *Identifier, rel *schema.Relationship) (*Operation, *Error) {
	op := &Operation{
		Index:        index,
		Pointer:      ptr,
		Target:       *owner,
		Relationship: rel,
	}

	switch raw.Op {
	case "update":
		op.Kind = KindSetRelationship
	case "add":
		op.Kind = KindAddToRelationship
	case "remove":
		op.Kind = KindRemoveFromRelationship
	}

	if op.Kind != KindSetRelationship && rel.Kind != schema.RelToMany {
		return nil, newDeserializationError(ErrCodeMalformedOperation,
			jsonapi.JoinPointer(ptr, "ref", "relationship"),
			fmt.Sprintf("Only to-many relationships can be targeted by %q operations; %q is to-one.",
				raw.Op, rel.PublicName))
	}

	if !raw.HasData() {
		return nil, newDeserializationError(ErrCodeMalformedOperation,
			jsonapi.JoinPointer(ptr, "data"), "The 'data' element is required.")
	}

	dataPtr := jsonapi.JoinPointer(ptr, "data")

	if rel.Kind == schema.RelToOne {
		if raw.DataIsNull() {
			op.RelOne = nil
			return op, nil
		}
		if !jsonapi.IsJSONObject(raw.Data) {
			return nil, newDeserializationError(ErrCodeMalformedOperation, dataPtr,
				"Expected a single resource identifier object or null in to-one relationship data.")
		}
		ident, err := p.parseIdentifierRaw(raw.Data, rel.Target, dataPtr)
		if err != nil {
			return nil, err
		}
		op.RelOne = ident
		return op, nil
	}

	if raw.DataIsNull() {
		return nil, newDeserializationError(ErrCodeMalformedOperation, dataPtr,
			"Expected an array of resource identifier objects in to-many relationship data.")
	}
	idents, err := p.parseIdentifierArray(raw.Data, rel.Target, dataPtr)
	if err != nil {
		return nil, err
	}
	op.RelMany = idents
	return op, nil
}

// parseIdentifierArray decodes and validates an identifier array for
// to-many linkage.
func (p *Parser) parseIdentifierArray(rawData []byte, target *schema.ResourceType, pointer string) ([]Identifier, *Error) {
	if !jsonapi.IsJSONArray(rawData) {
		return nil, newDeserializationError(ErrCodeMalformedOperation, pointer,
			"Expected an array of resource identifier objects in to-many relationship data.")
	}

	raw, decodeErr := jsonapi.DecodeResourceIdentifiers(rawData)
	if decodeErr != nil {
		return nil, newDeserializationError(ErrCodeMalformedOperation, pointer,
			fmt.Sprintf("Invalid resource identifier array: %v.", decodeErr))
	}

	idents := make([]Identifier, 0, len(raw))
	for i := range raw {
		elemPtr := jsonapi.ElementPointer(pointer, i)
		ident, err := p.parseIdentifier(&raw[i], target, elemPtr)
		if err != nil {
			return nil, err
		}
		idents = append(idents, *ident)
	}
	return idents, nil
}

func (p *Parser) parseIdentifierRaw(rawData []byte, target *schema.ResourceType, pointer string) (*Identifier, *Error) {
	raw, decodeErr := jsonapi.DecodeResourceIdentifier(rawData)
	if decodeErr != nil {
		return nil, newDeserializationError(ErrCodeMalformedOperation, pointer,
			fmt.Sprintf("Invalid resource identifier object: %v.", decodeErr))
	}
	return p.parseIdentifier(raw, target, pointer)
}

// parseIdentifier validates one resource identifier object against the
// relationship's target type.
func (p *Parser) parseIdentifier(raw *jsonapi.ResourceIdentifier, target *schema.ResourceType, pointer string) (*Identifier, *Error) {
	typ, err := p.lookupType(raw.Type, pointer)
	if err != nil {
		return nil, err
	}
	if typ != target {
		return nil, newConflictError(ErrCodeIncompatibleType,
			jsonapi.JoinPointer(pointer, "type"),
			fmt.Sprintf("Type %q is incompatible with relationship target type %q.",
				typ.PublicName, target.PublicName))
	}

	ident := &Identifier{Type: typ, Pointer: pointer}
	switch {
	case raw.ID != nil && raw.Lid != nil:
		return nil, newDeserializationError(ErrCodeIDAndLidExclusive, pointer,
			"The 'id' and 'lid' elements are mutually exclusive.")
	case raw.ID != nil:
		ident.ID = *raw.ID
	case raw.Lid != nil:
		ident.LID = *raw.Lid
	default:
		return nil, newDeserializationError(ErrCodeIDOrLidRequired, pointer,
			"Exactly one of 'id' or 'lid' is required.")
	}

	return ident, nil
}

func (p *Parser) lookupType(name, parentPtr string) (*schema.ResourceType, *Error) {
	if name == "" {
		return nil, newDeserializationError(ErrCodeMalformedOperation,
			jsonapi.JoinPointer(parentPtr, "type"), "The 'type' element is required.")
	}
	typ, ok := p.reg.LookupType(name)
	if !ok {
		return nil, newDeserializationError(ErrCodeUnknownResourceType,
			jsonapi.JoinPointer(parentPtr, "type"),
			fmt.Sprintf("Resource type %q does not exist.", name))
	}
	return typ, nil
}
