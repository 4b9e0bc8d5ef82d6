package atomic

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/openarc/strata/internal/schema"
)

// localIDBinding tracks one local identifier: the resource type it was
// declared with and, once the producing create operation has executed, the
// server-assigned identifier.
type localIDBinding struct {
	resourceType *schema.ResourceType
	serverID     string
	assigned     bool
}

// LocalIDTracker maps local identifier names to bindings. State is scoped
// to one batch: created fresh per request, discarded at batch end, never
// shared across requests.
//
// Names are NFC-normalized so two Unicode spellings of the same name
// cannot bypass the define-once rule.
type LocalIDTracker struct {
	bindings map[string]*localIDBinding
}

// NewLocalIDTracker creates an empty tracker for one batch.
func NewLocalIDTracker() *LocalIDTracker {
	return &LocalIDTracker{bindings: make(map[string]*localIDBinding)}
}

// Declare registers a local ID for the resource type of a create
// operation. A name may be declared at most once per batch, regardless of
// resource type.
func (t *LocalIDTracker) Declare(name string, resourceType *schema.ResourceType) *Error {
	key := norm.NFC.String(name)
	if _, exists := t.bindings[key]; exists {
		return newLocalIDError(ErrCodeLocalIDConflict,
			"Another local ID with the same name is already defined at this point.",
			fmt.Sprintf("Local ID %q was already defined by an earlier operation.", name))
	}
	t.bindings[key] = &localIDBinding{resourceType: resourceType}
	return nil
}

// Assign records the server-assigned identifier for a declared local ID.
// Called immediately after the declaring create operation executes.
// An unknown name is an internal consistency failure, not a client error.
func (t *LocalIDTracker) Assign(name, serverID string) error {
	binding, ok := t.bindings[norm.NFC.String(name)]
	if !ok {
		return fmt.Errorf("assign local ID %q: not declared", name)
	}
	binding.serverID = serverID
	binding.assigned = true
	return nil
}

// Resolve returns the resource type and server-assigned identifier bound
// to a local ID. Fails if the name was never declared, or declared but not
// yet assigned at this point in the batch (forward references resolve
// here: the tracker simply has no entry yet).
func (t *LocalIDTracker) Resolve(name string) (*schema.ResourceType, string, *Error) {
	binding, ok := t.bindings[norm.NFC.String(name)]
	if !ok || !binding.assigned {
		return nil, "", newLocalIDError(ErrCodeLocalIDNotAvailable,
			"Server-generated value for local ID is not available at this point.",
			fmt.Sprintf("Local ID %q must be defined by an earlier operation in the request.", name))
	}
	return binding.resourceType, binding.serverID, nil
}

// CheckType verifies that a reference to a local ID declares the same
// resource type the local ID was bound to. References to undeclared names
// pass; Resolve reports those.
func (t *LocalIDTracker) CheckType(name string, expected *schema.ResourceType) *Error {
	binding, ok := t.bindings[norm.NFC.String(name)]
	if !ok {
		return nil
	}
	if binding.resourceType != expected {
		return newLocalIDError(ErrCodeLocalIDTypeMismatch,
			"Incompatible type in local ID usage.",
			fmt.Sprintf("Local ID '%s' belongs to resource type '%s' instead of '%s'.",
				name, binding.resourceType.PublicName, expected.PublicName))
	}
	return nil
}

// newSelfReferenceError reports a local ID consumed by the same operation
// that defines it.
func newSelfReferenceError(name string) *Error {
	return newLocalIDError(ErrCodeLocalIDSelfUse,
		"Local ID cannot be both defined and used within the same operation.",
		fmt.Sprintf("Local ID %q is defined and consumed by the same operation.", name))
}
