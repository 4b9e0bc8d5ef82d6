package schema

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Registry holds every resource type known to the server. It is built once
// at startup and read-only afterwards, so concurrent lookups need no locking.
type Registry struct {
	types  []*ResourceType
	byName map[string]*ResourceType
}

// NewRegistry builds a registry from resource types and links relationship
// targets. It fails on duplicate public names (types, attributes, or
// relationships within one type), name collisions between an attribute and
// a relationship, and relationships pointing at unknown types.
func NewRegistry(types []*ResourceType) (*Registry, error) {
	reg := &Registry{byName: make(map[string]*ResourceType, len(types))}

	for _, t := range types {
		name := normalizeName(t.PublicName)
		if name == "" {
			return nil, fmt.Errorf("resource type with empty public name")
		}
		if _, exists := reg.byName[name]; exists {
			return nil, fmt.Errorf("duplicate resource type %q", t.PublicName)
		}
		if err := indexFields(t); err != nil {
			return nil, err
		}
		reg.byName[name] = t
		reg.types = append(reg.types, t)
	}

	// Second pass: relationship targets may reference types declared later.
	for _, t := range types {
		for _, r := range t.Relationships {
			target, ok := reg.byName[normalizeName(r.TargetName)]
			if !ok {
				return nil, fmt.Errorf("resource type %q: relationship %q targets unknown type %q",
					t.PublicName, r.PublicName, r.TargetName)
			}
			r.Target = target
		}
	}

	return reg, nil
}

// LookupType returns the resource type registered under the given public
// name, NFC-normalized.
func (r *Registry) LookupType(publicName string) (*ResourceType, bool) {
	t, ok := r.byName[normalizeName(publicName)]
	return t, ok
}

// Types returns all registered types in registration order.
func (r *Registry) Types() []*ResourceType {
	return r.types
}

func indexFields(t *ResourceType) error {
	t.attrsByName = make(map[string]*Attribute, len(t.Attributes))
	t.relsByName = make(map[string]*Relationship, len(t.Relationships))

	if t.IDStrategy == "" {
		t.IDStrategy = IDServer
	}
	if t.IDStrategy != IDServer && t.IDStrategy != IDClient {
		return fmt.Errorf("resource type %q: invalid id strategy %q", t.PublicName, t.IDStrategy)
	}

	for _, a := range t.Attributes {
		name := normalizeName(a.PublicName)
		if name == "" || name == "id" || name == "lid" || name == "type" {
			return fmt.Errorf("resource type %q: reserved or empty attribute name %q", t.PublicName, a.PublicName)
		}
		if _, dup := t.attrsByName[name]; dup {
			return fmt.Errorf("resource type %q: duplicate attribute %q", t.PublicName, a.PublicName)
		}
		switch a.Kind {
		case AttrString, AttrInt, AttrFloat, AttrBool:
		default:
			return fmt.Errorf("resource type %q: attribute %q has invalid kind %q", t.PublicName, a.PublicName, a.Kind)
		}
		t.attrsByName[name] = a
	}

	for _, rel := range t.Relationships {
		name := normalizeName(rel.PublicName)
		if name == "" || name == "id" || name == "lid" || name == "type" {
			return fmt.Errorf("resource type %q: reserved or empty relationship name %q", t.PublicName, rel.PublicName)
		}
		if _, dup := t.relsByName[name]; dup {
			return fmt.Errorf("resource type %q: duplicate relationship %q", t.PublicName, rel.PublicName)
		}
		if _, clash := t.attrsByName[name]; clash {
			return fmt.Errorf("resource type %q: relationship %q collides with attribute of the same name", t.PublicName, rel.PublicName)
		}
		if rel.Kind != RelToOne && rel.Kind != RelToMany {
			return fmt.Errorf("resource type %q: relationship %q has invalid kind %q", t.PublicName, rel.PublicName, rel.Kind)
		}
		t.relsByName[name] = rel
	}

	return nil
}

// normalizeName NFC-normalizes a client-supplied member name so that
// lookups are insensitive to Unicode encoding variants of the same text.
func normalizeName(name string) string {
	return norm.NFC.String(name)
}
