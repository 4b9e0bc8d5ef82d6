package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/openarc/strata/internal/schema"
)

// Tx is one open storage transaction. All resource and relationship
// mutations of an atomic batch run on a single Tx; nothing is visible to
// other connections until Commit.
type Tx struct {
	tx  *sql.Tx
	reg *schema.Registry
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. No-op if already committed.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

// CreateResource inserts a new resource row plus its to-many join rows.
// A duplicate identifier surfaces as ErrConflict.
func (t *Tx) CreateResource(ctx context.Context, rec *Record) error {
	typ, err := t.lookupType(rec.Type)
	if err != nil {
		return err
	}
	table, err := tableName(typ)
	if err != nil {
		return err
	}

	cols := []string{"id"}
	args := []any{rec.ID}

	for _, a := range typ.Attributes {
		val, ok := rec.Attrs[a.PublicName]
		if !ok {
			continue
		}
		col, err := attrColumn(a)
		if err != nil {
			return err
		}
		cols = append(cols, col)
		args = append(args, val)
	}

	for _, rel := range typ.Relationships {
		if rel.Kind != schema.RelToOne {
			continue
		}
		target, ok := rec.ToOne[rel.PublicName]
		if !ok {
			continue
		}
		col, err := toOneColumn(rel)
		if err != nil {
			return err
		}
		cols = append(cols, col)
		if target == nil {
			args = append(args, nil)
		} else {
			args = append(args, *target)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create %s/%s: %w", rec.Type, rec.ID, mapSQLiteError(err))
	}

	for _, rel := range typ.Relationships {
		if rel.Kind != schema.RelToMany {
			continue
		}
		targets, ok := rec.ToMany[rel.PublicName]
		if !ok {
			continue
		}
		if err := t.AddToMany(ctx, rec.Type, rec.ID, rel.PublicName, targets); err != nil {
			return err
		}
	}

	return nil
}

// GetResource loads one resource with its attributes, to-one linkage, and
// to-many identifier sets. Returns ErrNotFound for a missing identifier.
func (t *Tx) GetResource(ctx context.Context, typeName, id string) (*Record, error) {
	typ, err := t.lookupType(typeName)
	if err != nil {
		return nil, err
	}
	table, err := tableName(typ)
	if err != nil {
		return nil, err
	}

	var cols []string
	for _, a := range typ.Attributes {
		col, err := attrColumn(a)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	var toOneRels []*schema.Relationship
	for _, rel := range typ.Relationships {
		if rel.Kind != schema.RelToOne {
			continue
		}
		col, err := toOneColumn(rel)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		toOneRels = append(toOneRels, rel)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", selectList(cols), table)
	dests := make([]any, len(cols))
	raw := make([]any, len(cols))
	for i := range raw {
		dests[i] = &raw[i]
	}
	// A type with no attributes and no to-one relationships still needs a
	// column to select.
	if len(cols) == 0 {
		query = fmt.Sprintf("SELECT id FROM %s WHERE id = ?", table)
		var ignored string
		dests = []any{&ignored}
	}

	row := t.tx.QueryRowContext(ctx, query, id)
	if err := row.Scan(dests...); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s/%s: %w", typeName, id, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s/%s: %w", typeName, id, err)
	}

	rec := &Record{
		Type:   typ.PublicName,
		ID:     id,
		Attrs:  make(map[string]any, len(typ.Attributes)),
		ToOne:  make(map[string]*string, len(toOneRels)),
		ToMany: make(map[string][]string),
	}

	i := 0
	for _, a := range typ.Attributes {
		val, err := attrFromColumn(a, raw[i])
		if err != nil {
			return nil, fmt.Errorf("get %s/%s: %w", typeName, id, err)
		}
		rec.Attrs[a.PublicName] = val
		i++
	}
	for _, rel := range toOneRels {
		rec.ToOne[rel.PublicName] = stringFromColumn(raw[i])
		i++
	}

	for _, rel := range typ.Relationships {
		if rel.Kind != schema.RelToMany {
			continue
		}
		targets, err := t.GetToMany(ctx, typeName, id, rel.PublicName)
		if err != nil {
			return nil, err
		}
		rec.ToMany[rel.PublicName] = targets
	}

	return rec, nil
}

// ResourceExists reports whether a resource row exists.
func (t *Tx) ResourceExists(ctx context.Context, typeName, id string) (bool, error) {
	typ, err := t.lookupType(typeName)
	if err != nil {
		return false, err
	}
	table, err := tableName(typ)
	if err != nil {
		return false, err
	}

	var one int
	err = t.tx.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", table), id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %s/%s: %w", typeName, id, err)
	}
	return true, nil
}

// UpdateResource applies attribute and to-one relationship changes to an
// existing row. Only keys present in the maps are touched. The caller is
// expected to have verified existence; a zero-row update still returns
// ErrNotFound as a safety net.
func (t *Tx) UpdateResource(ctx context.Context, typeName, id string, attrs map[string]any, toOne map[string]*string) error {
	typ, err := t.lookupType(typeName)
	if err != nil {
		return err
	}
	table, err := tableName(typ)
	if err != nil {
		return err
	}

	var sets []string
	var args []any

	for _, a := range typ.Attributes {
		val, ok := attrs[a.PublicName]
		if !ok {
			continue
		}
		col, err := attrColumn(a)
		if err != nil {
			return err
		}
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	for _, rel := range typ.Relationships {
		if rel.Kind != schema.RelToOne {
			continue
		}
		target, ok := toOne[rel.PublicName]
		if !ok {
			continue
		}
		col, err := toOneColumn(rel)
		if err != nil {
			return err
		}
		sets = append(sets, col+" = ?")
		if target == nil {
			args = append(args, nil)
		} else {
			args = append(args, *target)
		}
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", typeName, id, mapSQLiteError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", typeName, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s/%s: %w", typeName, id, ErrNotFound)
	}
	return nil
}

// DeleteResource removes one resource row. Join table rows cascade.
func (t *Tx) DeleteResource(ctx context.Context, typeName, id string) error {
	typ, err := t.lookupType(typeName)
	if err != nil {
		return err
	}
	table, err := tableName(typ)
	if err != nil {
		return err
	}

	res, err := t.tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", typeName, id, mapSQLiteError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", typeName, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s/%s: %w", typeName, id, ErrNotFound)
	}
	return nil
}

func (t *Tx) lookupType(typeName string) (*schema.ResourceType, error) {
	typ, ok := t.reg.LookupType(typeName)
	if !ok {
		return nil, fmt.Errorf("unknown resource type %q", typeName)
	}
	return typ, nil
}

func selectList(cols []string) string {
	return strings.Join(cols, ", ")
}

// attrFromColumn converts a scanned column value to the attribute's native
// Go type. SQLite's column affinity can hand back int64 for REAL columns
// and stores booleans as integers.
func attrFromColumn(a *schema.Attribute, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch a.Kind {
	case schema.AttrString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case schema.AttrInt:
		if v, ok := raw.(int64); ok {
			return v, nil
		}
	case schema.AttrFloat:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		}
	case schema.AttrBool:
		switch v := raw.(type) {
		case int64:
			return v != 0, nil
		case bool:
			return v, nil
		}
	}
	return nil, fmt.Errorf("attribute %q: unexpected column value of type %T", a.PublicName, raw)
}

func stringFromColumn(raw any) *string {
	switch v := raw.(type) {
	case string:
		return &v
	case []byte:
		s := string(v)
		return &s
	default:
		return nil
	}
}
