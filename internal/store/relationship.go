package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/openarc/strata/internal/schema"
)

// SetToOne points a to-one relationship at target, or clears it when
// target is nil.
func (t *Tx) SetToOne(ctx context.Context, typeName, id, relName string, target *string) error {
	typ, rel, err := t.lookupRel(typeName, relName, schema.RelToOne)
	if err != nil {
		return err
	}
	table, err := tableName(typ)
	if err != nil {
		return err
	}
	col, err := toOneColumn(rel)
	if err != nil {
		return err
	}

	var value any
	if target != nil {
		value = *target
	}
	res, err := t.tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", table, col), value, id)
	if err != nil {
		return fmt.Errorf("set %s/%s %s: %w", typeName, id, relName, mapSQLiteError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set %s/%s %s: %w", typeName, id, relName, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s/%s: %w", typeName, id, ErrNotFound)
	}
	return nil
}

// ReplaceToMany replaces the full target set of a to-many relationship.
// An empty targets slice clears the relationship.
func (t *Tx) ReplaceToMany(ctx context.Context, typeName, id, relName string, targets []string) error {
	typ, rel, err := t.lookupRel(typeName, relName, schema.RelToMany)
	if err != nil {
		return err
	}
	table, err := joinTableName(typ, rel)
	if err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE owner_id = ?", table), id); err != nil {
		return fmt.Errorf("replace %s/%s %s: %w", typeName, id, relName, mapSQLiteError(err))
	}
	return t.AddToMany(ctx, typeName, id, relName, targets)
}

// AddToMany appends targets to a to-many relationship. Re-adding an
// existing target is a no-op (ON CONFLICT DO NOTHING), so adds are
// duplicate-safe.
func (t *Tx) AddToMany(ctx context.Context, typeName, id, relName string, targets []string) error {
	typ, rel, err := t.lookupRel(typeName, relName, schema.RelToMany)
	if err != nil {
		return err
	}
	table, err := joinTableName(typ, rel)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (owner_id, target_id)
		VALUES (?, ?)
		ON CONFLICT(owner_id, target_id) DO NOTHING
	`, table)
	for _, target := range targets {
		if _, err := t.tx.ExecContext(ctx, query, id, target); err != nil {
			return fmt.Errorf("add %s/%s %s -> %s: %w", typeName, id, relName, target, mapSQLiteError(err))
		}
	}
	return nil
}

// RemoveFromToMany subtracts targets from a to-many relationship. Targets
// not currently related are ignored.
func (t *Tx) RemoveFromToMany(ctx context.Context, typeName, id, relName string, targets []string) error {
	if len(targets) == 0 {
		return nil
	}
	typ, rel, err := t.lookupRel(typeName, relName, schema.RelToMany)
	if err != nil {
		return err
	}
	table, err := joinTableName(typ, rel)
	if err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(targets)), ", ")
	args := make([]any, 0, len(targets)+1)
	args = append(args, id)
	for _, target := range targets {
		args = append(args, target)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE owner_id = ? AND target_id IN (%s)", table, placeholders)
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove %s/%s %s: %w", typeName, id, relName, mapSQLiteError(err))
	}
	return nil
}

// GetToMany returns the target identifiers of a to-many relationship in
// insertion order.
func (t *Tx) GetToMany(ctx context.Context, typeName, id, relName string) ([]string, error) {
	typ, rel, err := t.lookupRel(typeName, relName, schema.RelToMany)
	if err != nil {
		return nil, err
	}
	table, err := joinTableName(typ, rel)
	if err != nil {
		return nil, err
	}

	rows, err := t.tx.QueryContext(ctx,
		fmt.Sprintf("SELECT target_id FROM %s WHERE owner_id = ? ORDER BY rowid", table), id)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s %s: %w", typeName, id, relName, err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("get %s/%s %s: %w", typeName, id, relName, err)
		}
		targets = append(targets, target)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get %s/%s %s: %w", typeName, id, relName, err)
	}
	return targets, nil
}

func (t *Tx) lookupRel(typeName, relName string, kind schema.RelKind) (*schema.ResourceType, *schema.Relationship, error) {
	typ, err := t.lookupType(typeName)
	if err != nil {
		return nil, nil, err
	}
	rel, ok := typ.Relationship(relName)
	if !ok {
		return nil, nil, fmt.Errorf("resource type %q has no relationship %q", typeName, relName)
	}
	if rel.Kind != kind {
		return nil, nil, fmt.Errorf("relationship %q of %q is not %s", relName, typeName, kind)
	}
	return typ, rel, nil
}
