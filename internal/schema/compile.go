package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileResources parses the "resources" struct of a CUE value into
// resource type definitions. Uses the CUE SDK's Go API directly (not a CLI
// subprocess).
//
// The CUE value should contain a top-level resources struct, e.g.:
//
//	resources: {
//		musicTracks: {
//			id: "server"
//			attributes: {
//				title: {type: "string"}
//			}
//			relationships: {
//				ownedBy: {kind: "toOne", target: "recordCompanies"}
//			}
//		}
//	}
func CompileResources(v cue.Value) ([]*ResourceType, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	resourcesVal := v.LookupPath(cue.ParsePath("resources"))
	if !resourcesVal.Exists() {
		return nil, &CompileError{
			Field:   "resources",
			Message: "a top-level resources struct is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := resourcesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var types []*ResourceType
	for iter.Next() {
		t, err := compileResourceType(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}

	if len(types) == 0 {
		return nil, &CompileError{
			Field:   "resources",
			Message: "at least one resource type is required",
			Pos:     resourcesVal.Pos(),
		}
	}

	return types, nil
}

func compileResourceType(name string, v cue.Value) (*ResourceType, error) {
	t := &ResourceType{
		PublicName: name,
		IDStrategy: IDServer,
	}

	// id strategy (optional, defaults to server)
	idVal := v.LookupPath(cue.ParsePath("id"))
	if idVal.Exists() {
		strategy, err := idVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		switch IDStrategy(strategy) {
		case IDServer, IDClient:
			t.IDStrategy = IDStrategy(strategy)
		default:
			return nil, &CompileError{
				Field:   name + ".id",
				Message: fmt.Sprintf("invalid id strategy %q: must be server or client", strategy),
				Pos:     idVal.Pos(),
			}
		}
	}

	attrs, err := compileAttributes(name, v)
	if err != nil {
		return nil, err
	}
	t.Attributes = attrs

	rels, err := compileRelationships(name, v)
	if err != nil {
		return nil, err
	}
	t.Relationships = rels

	return t, nil
}

func compileAttributes(typeName string, v cue.Value) ([]*Attribute, error) {
	attrsVal := v.LookupPath(cue.ParsePath("attributes"))
	if !attrsVal.Exists() {
		return nil, nil
	}

	iter, err := attrsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var attrs []*Attribute
	for iter.Next() {
		attrName := iter.Selector().Unquoted()
		attrVal := iter.Value()

		kindVal := attrVal.LookupPath(cue.ParsePath("type"))
		if !kindVal.Exists() {
			return nil, &CompileError{
				Field:   typeName + ".attributes." + attrName,
				Message: "type is required",
				Pos:     attrVal.Pos(),
			}
		}
		kind, err := kindVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		switch AttrKind(kind) {
		case AttrString, AttrInt, AttrFloat, AttrBool:
		default:
			return nil, &CompileError{
				Field:   typeName + ".attributes." + attrName,
				Message: fmt.Sprintf("invalid type %q: must be string, int, float, or bool", kind),
				Pos:     kindVal.Pos(),
			}
		}

		attr := &Attribute{PublicName: attrName, Kind: AttrKind(kind)}

		roVal := attrVal.LookupPath(cue.ParsePath("readonly"))
		if roVal.Exists() {
			ro, err := roVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			attr.ReadOnly = ro
		}

		attrs = append(attrs, attr)
	}

	return attrs, nil
}

func compileRelationships(typeName string, v cue.Value) ([]*Relationship, error) {
	relsVal := v.LookupPath(cue.ParsePath("relationships"))
	if !relsVal.Exists() {
		return nil, nil
	}

	iter, err := relsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rels []*Relationship
	for iter.Next() {
		relName := iter.Selector().Unquoted()
		relVal := iter.Value()

		kindVal := relVal.LookupPath(cue.ParsePath("kind"))
		if !kindVal.Exists() {
			return nil, &CompileError{
				Field:   typeName + ".relationships." + relName,
				Message: "kind is required",
				Pos:     relVal.Pos(),
			}
		}
		kind, err := kindVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if RelKind(kind) != RelToOne && RelKind(kind) != RelToMany {
			return nil, &CompileError{
				Field:   typeName + ".relationships." + relName,
				Message: fmt.Sprintf("invalid kind %q: must be toOne or toMany", kind),
				Pos:     kindVal.Pos(),
			}
		}

		targetVal := relVal.LookupPath(cue.ParsePath("target"))
		if !targetVal.Exists() {
			return nil, &CompileError{
				Field:   typeName + ".relationships." + relName,
				Message: "target is required",
				Pos:     relVal.Pos(),
			}
		}
		target, err := targetVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		rels = append(rels, &Relationship{
			PublicName: relName,
			Kind:       RelKind(kind),
			TargetName: target,
		})
	}

	return rels, nil
}

// CompileError reports a resource definition problem with CUE position info.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	if cueErr, ok := err.(cueerrors.Error); ok {
		return &CompileError{
			Field:   "cue",
			Message: cueerrors.Details(cueErr, nil),
			Pos:     cueErr.Position(),
		}
	}
	return err
}
