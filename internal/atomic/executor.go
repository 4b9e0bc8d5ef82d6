package atomic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openarc/strata/internal/jsonapi"
	"github.com/openarc/strata/internal/schema"
	"github.com/openarc/strata/internal/store"
)

// Executor dispatches resolved operations to the persistence layer. All
// calls run on the single transaction owned by the Processor; a failure
// aborts the remaining operations and the Processor rolls the batch back.
type Executor struct {
	tx      *store.Tx
	tracker *LocalIDTracker
	idgen   IDGenerator
	logger  *slog.Logger
}

// NewExecutor creates an executor bound to one batch transaction.
func NewExecutor(tx *store.Tx, tracker *LocalIDTracker, idgen IDGenerator, logger *slog.Logger) *Executor {
	return &Executor{tx: tx, tracker: tracker, idgen: idgen, logger: logger}
}

// Execute runs one operation. The returned result is non-nil only for
// operations with an observable side effect in their representation;
// deletes and relationship mutations produce nil (a null-data result).
//
// Updates also produce nil: side-effect detection belongs to resource
// hooks, and this persistence layer has none, so an update's stored state
// always equals the requested state. Creates always return the full
// representation because the server assigns the identifier.
func (e *Executor) Execute(ctx context.Context, op *Operation) (*jsonapi.ResourceObject, *Error) {
	e.logger.Debug("executing operation",
		"index", op.Index,
		"kind", op.Kind.String(),
		"type", op.Target.Type.PublicName)

	switch op.Kind {
	case KindCreateResource:
		return e.createResource(ctx, op)
	case KindUpdateResource:
		return nil, e.updateResource(ctx, op)
	case KindDeleteResource:
		return nil, e.deleteResource(ctx, op)
	case KindSetRelationship:
		return nil, e.setRelationship(ctx, op)
	case KindAddToRelationship:
		return nil, e.addToRelationship(ctx, op)
	case KindRemoveFromRelationship:
		return nil, e.removeFromRelationship(ctx, op)
	default:
		return nil, newInternalError(op.Pointer, fmt.Errorf("unhandled operation kind %d", op.Kind))
	}
}

func (e *Executor) createResource(ctx context.Context, op *Operation) (*jsonapi.ResourceObject, *Error) {
	id := op.Target.ID
	if id == "" {
		id = e.idgen.NewID()
	}

	if err := e.checkLinkageExists(ctx, op); err != nil {
		return nil, err
	}

	rec := &store.Record{
		Type:   op.Target.Type.PublicName,
		ID:     id,
		Attrs:  op.Attributes,
		ToOne:  toOneLinkage(op.RelsToOne),
		ToMany: toManyLinkage(op.RelsToMany),
	}
	if err := e.tx.CreateResource(ctx, rec); err != nil {
		return nil, e.mapStoreError(err, op)
	}

	if op.LocalID != "" {
		if err := e.tracker.Assign(op.LocalID, id); err != nil {
			return nil, newInternalError(op.Pointer, err)
		}
	}

	return renderRecord(op.Target.Type, rec), nil
}

func (e *Executor) updateResource(ctx context.Context, op *Operation) *Error {
	if _, err := e.tx.GetResource(ctx, op.Target.Type.PublicName, op.Target.ID); err != nil {
		return e.mapStoreError(err, op)
	}

	if err := e.checkLinkageExists(ctx, op); err != nil {
		return err
	}

	if err := e.tx.UpdateResource(ctx, op.Target.Type.PublicName, op.Target.ID,
		op.Attributes, toOneLinkage(op.RelsToOne)); err != nil {
		return e.mapStoreError(err, op)
	}

	for name, idents := range op.RelsToMany {
		if err := e.tx.ReplaceToMany(ctx, op.Target.Type.PublicName, op.Target.ID,
			name, identifierIDs(idents)); err != nil {
			return e.mapStoreError(err, op)
		}
	}

	return nil
}

// checkLinkageExists verifies every related resource named in a resource
// object's relationship linkage before touching the row, so a dangling
// reference surfaces as 404 rather than a foreign key violation.
func (e *Executor) checkLinkageExists(ctx context.Context, op *Operation) *Error {
	for _, ident := range op.RelsToOne {
		if ident == nil {
			continue
		}
		if err := e.checkTargetsExist(ctx, op, []Identifier{*ident}); err != nil {
			return err
		}
	}
	for _, idents := range op.RelsToMany {
		if err := e.checkTargetsExist(ctx, op, idents); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) deleteResource(ctx context.Context, op *Operation) *Error {
	if err := e.tx.DeleteResource(ctx, op.Target.Type.PublicName, op.Target.ID); err != nil {
		return e.mapStoreError(err, op)
	}
	return nil
}

func (e *Executor) setRelationship(ctx context.Context, op *Operation) *Error {
	if err := e.checkOwnerExists(ctx, op); err != nil {
		return err
	}

	if op.Relationship.Kind == schema.RelToOne {
		var target *string
		if op.RelOne != nil {
			if err := e.checkTargetsExist(ctx, op, []Identifier{*op.RelOne}); err != nil {
				return err
			}
			target = &op.RelOne.ID
		}
		if err := e.tx.SetToOne(ctx, op.Target.Type.PublicName, op.Target.ID,
			op.Relationship.PublicName, target); err != nil {
			return e.mapStoreError(err, op)
		}
		return nil
	}

	if err := e.checkTargetsExist(ctx, op, op.RelMany); err != nil {
		return err
	}
	if err := e.tx.ReplaceToMany(ctx, op.Target.Type.PublicName, op.Target.ID,
		op.Relationship.PublicName, identifierIDs(op.RelMany)); err != nil {
		return e.mapStoreError(err, op)
	}
	return nil
}

func (e *Executor) addToRelationship(ctx context.Context, op *Operation) *Error {
	if err := e.checkOwnerExists(ctx, op); err != nil {
		return err
	}
	if err := e.checkTargetsExist(ctx, op, op.RelMany); err != nil {
		return err
	}
	if err := e.tx.AddToMany(ctx, op.Target.Type.PublicName, op.Target.ID,
		op.Relationship.PublicName, identifierIDs(op.RelMany)); err != nil {
		return e.mapStoreError(err, op)
	}
	return nil
}

func (e *Executor) removeFromRelationship(ctx context.Context, op *Operation) *Error {
	if err := e.checkOwnerExists(ctx, op); err != nil {
		return err
	}
	if err := e.checkTargetsExist(ctx, op, op.RelMany); err != nil {
		return err
	}
	if err := e.tx.RemoveFromToMany(ctx, op.Target.Type.PublicName, op.Target.ID,
		op.Relationship.PublicName, identifierIDs(op.RelMany)); err != nil {
		return e.mapStoreError(err, op)
	}
	return nil
}

func (e *Executor) checkOwnerExists(ctx context.Context, op *Operation) *Error {
	exists, err := e.tx.ResourceExists(ctx, op.Target.Type.PublicName, op.Target.ID)
	if err != nil {
		return newInternalError(op.Pointer, err)
	}
	if !exists {
		return newNotFoundError(op.Pointer,
			fmt.Sprintf("Resource of type %q with ID %q does not exist.",
				op.Target.Type.PublicName, op.Target.ID))
	}
	return nil
}

func (e *Executor) checkTargetsExist(ctx context.Context, op *Operation, idents []Identifier) *Error {
	for i := range idents {
		ident := &idents[i]
		exists, err := e.tx.ResourceExists(ctx, ident.Type.PublicName, ident.ID)
		if err != nil {
			return newInternalError(op.Pointer, err)
		}
		if !exists {
			return newNotFoundError(op.Pointer,
				fmt.Sprintf("Related resource of type %q with ID %q does not exist.",
					ident.Type.PublicName, ident.ID))
		}
	}
	return nil
}

// mapStoreError classifies persistence failures: missing rows map to 404
// with the operation's pointer, constraint violations to 409, and
// everything else to 500.
func (e *Executor) mapStoreError(err error, op *Operation) *Error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return newNotFoundError(op.Pointer,
			fmt.Sprintf("Resource of type %q with ID %q does not exist.",
				op.Target.Type.PublicName, op.Target.ID))
	case errors.Is(err, store.ErrConflict):
		return &Error{
			Code:    ErrCodePersistenceConflict,
			Status:  409,
			Title:   "The operation conflicts with existing data.",
			Detail:  err.Error(),
			Pointer: op.Pointer,
		}
	default:
		return newInternalError(op.Pointer, err)
	}
}

// renderRecord builds the representation of a created resource: type, id,
// and every declared attribute (null when unset). Relationship linkage is
// not embedded; clients fetch it through the regular read endpoints.
func renderRecord(typ *schema.ResourceType, rec *store.Record) *jsonapi.ResourceObject {
	id := rec.ID
	res := &jsonapi.ResourceObject{
		Type: typ.PublicName,
		ID:   &id,
	}
	if len(typ.Attributes) > 0 {
		attrs := make(map[string]any, len(typ.Attributes))
		for _, a := range typ.Attributes {
			attrs[a.PublicName] = rec.Attrs[a.PublicName]
		}
		res.Attributes = attrs
	}
	return res
}

func toOneLinkage(rels map[string]*Identifier) map[string]*string {
	if rels == nil {
		return nil
	}
	out := make(map[string]*string, len(rels))
	for name, ident := range rels {
		if ident == nil {
			out[name] = nil
			continue
		}
		id := ident.ID
		out[name] = &id
	}
	return out
}

func toManyLinkage(rels map[string][]Identifier) map[string][]string {
	if rels == nil {
		return nil
	}
	out := make(map[string][]string, len(rels))
	for name, idents := range rels {
		out[name] = identifierIDs(idents)
	}
	return out
}

func identifierIDs(idents []Identifier) []string {
	ids := make([]string, len(idents))
	for i := range idents {
		ids[i] = idents[i].ID
	}
	return ids
}
