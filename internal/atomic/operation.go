package atomic

import (
	"github.com/openarc/strata/internal/schema"
)

// Kind is the closed set of typed operations an op-code/target pair maps
// to. The executor dispatches on Kind exhaustively.
type Kind int

const (
	KindCreateResource Kind = iota + 1
	KindUpdateResource
	KindDeleteResource
	KindSetRelationship
	KindAddToRelationship
	KindRemoveFromRelationship
)

// String returns the kind's name for logging.
func (k Kind) String() string {
	switch k {
	case KindCreateResource:
		return "createResource"
	case KindUpdateResource:
		return "updateResource"
	case KindDeleteResource:
		return "deleteResource"
	case KindSetRelationship:
		return "setRelationship"
	case KindAddToRelationship:
		return "addToRelationship"
	case KindRemoveFromRelationship:
		return "removeFromRelationship"
	default:
		return "unknown"
	}
}

// Identifier is a parsed resource identifier reference: a resolved type
// plus exactly one of server ID or local ID. After resolution every
// identifier carries a concrete server ID.
type Identifier struct {
	Type *schema.ResourceType

	// ID is the server-assigned identifier, empty while LID is set.
	ID string

	// LID is the local identifier consumed from the batch scope; cleared
	// by resolution.
	LID string

	// Pointer locates the identifier in the request document, for error
	// annotation during resolution.
	Pointer string
}

// HasLID reports whether the identifier still needs local ID resolution.
func (i *Identifier) HasLID() bool {
	return i.LID != ""
}

// Operation is one typed element of a batch, produced by the parser and
// consumed by the resolver and executor. Resolution rewrites lid
// identifiers in place; the operation does not change after that. Only
// the fields relevant to its Kind are populated.
type Operation struct {
	Kind  Kind
	Index int

	// Pointer is "/atomic:operations[i]".
	Pointer string

	// Target identifies the primary resource. For creates the identifier
	// may carry the declared local ID (see LocalID) or a client-generated
	// server ID; for everything else it names an existing resource.
	Target Identifier

	// Relationship is set for the three relationship kinds.
	Relationship *schema.Relationship

	// LocalID is the local identifier a create operation declares, empty
	// otherwise.
	LocalID string

	// Attributes carries coerced attribute values for create/update.
	Attributes map[string]any

	// RelsToOne and RelsToMany carry relationship linkage from a
	// create/update resource object. A nil RelsToOne value is an explicit
	// null (clear the relationship).
	RelsToOne  map[string]*Identifier
	RelsToMany map[string][]Identifier

	// RelOne is the replacement target of a to-one SetRelationship; nil
	// means clear.
	RelOne *Identifier

	// RelMany carries the targets of to-many relationship operations.
	RelMany []Identifier
}
