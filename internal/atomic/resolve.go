package atomic

import (
	"github.com/openarc/strata/internal/jsonapi"
)

// Resolver substitutes local ID references with server-assigned
// identifiers, consulting the batch-scoped tracker. Resolution happens
// strictly in batch order: an operation can only consume local IDs
// declared by strictly earlier operations, because the tracker simply has
// no entry (or no assigned value) for anything later.
type Resolver struct {
	tracker *LocalIDTracker
}

// NewResolver creates a resolver over the given batch-scoped tracker.
func NewResolver(tracker *LocalIDTracker) *Resolver {
	return &Resolver{tracker: tracker}
}

// Resolve prepares one operation for execution:
//
//  1. Reject an operation that both declares a local ID and consumes it
//     anywhere in its own payload.
//  2. Declare the local ID of a create operation (define-once rule).
//  3. Substitute every consumed local ID reference with the bound
//     server identifier, checking type consistency first.
//
// After Resolve succeeds, every identifier in the operation carries a
// concrete server ID except a create's own declared local ID, which the
// executor assigns after persistence.
func (r *Resolver) Resolve(op *Operation) *Error {
	if op.LocalID != "" && consumesLocalID(op, op.LocalID) {
		return newSelfReferenceError(op.LocalID).WithPointer(op.Pointer)
	}

	if op.Kind == KindCreateResource && op.LocalID != "" {
		if err := r.tracker.Declare(op.LocalID, op.Target.Type); err != nil {
			return err.WithPointer(op.Pointer)
		}
	}

	if op.Kind != KindCreateResource && op.Target.HasLID() {
		if err := r.resolveIdentifier(&op.Target); err != nil {
			return err
		}
	}

	for _, ident := range op.RelsToOne {
		if ident != nil && ident.HasLID() {
			if err := r.resolveIdentifier(ident); err != nil {
				return err
			}
		}
	}
	for _, idents := range op.RelsToMany {
		for i := range idents {
			if idents[i].HasLID() {
				if err := r.resolveIdentifier(&idents[i]); err != nil {
					return err
				}
			}
		}
	}
	if op.RelOne != nil && op.RelOne.HasLID() {
		if err := r.resolveIdentifier(op.RelOne); err != nil {
			return err
		}
	}
	for i := range op.RelMany {
		if op.RelMany[i].HasLID() {
			if err := r.resolveIdentifier(&op.RelMany[i]); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *Resolver) resolveIdentifier(ident *Identifier) *Error {
	pointer := jsonapi.JoinPointer(ident.Pointer, "lid")

	if err := r.tracker.CheckType(ident.LID, ident.Type); err != nil {
		return err.WithPointer(pointer)
	}
	_, serverID, err := r.tracker.Resolve(ident.LID)
	if err != nil {
		return err.WithPointer(pointer)
	}

	ident.ID = serverID
	ident.LID = ""
	return nil
}

// consumesLocalID reports whether the operation reads the given local ID
// anywhere other than its own declaration: the target of a non-create, or
// any relationship linkage identifier.
func consumesLocalID(op *Operation, name string) bool {
	if op.Kind != KindCreateResource && op.Target.LID == name {
		return true
	}
	for _, ident := range op.RelsToOne {
		if ident != nil && ident.LID == name {
			return true
		}
	}
	for _, idents := range op.RelsToMany {
		for i := range idents {
			if idents[i].LID == name {
				return true
			}
		}
	}
	if op.RelOne != nil && op.RelOne.LID == name {
		return true
	}
	for i := range op.RelMany {
		if op.RelMany[i].LID == name {
			return true
		}
	}
	return false
}
