package store

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/openarc/strata/internal/schema"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or
// underscore. This prevents SQL injection via identifier interpolation:
// every identifier in a generated statement passes through this check.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// generateDDL produces CREATE TABLE statements for every resource type:
// a primary table per type and a join table per to-many relationship.
func generateDDL(reg *schema.Registry) ([]string, error) {
	var stmts []string

	for _, t := range reg.Types() {
		stmt, err := resourceTableSQL(t)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}

	// Join tables second: their foreign keys reference primary tables.
	for _, t := range reg.Types() {
		for _, rel := range t.Relationships {
			if rel.Kind != schema.RelToMany {
				continue
			}
			stmt, err := joinTableSQL(t, rel)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
		}
	}

	return stmts, nil
}

func resourceTableSQL(t *schema.ResourceType) (string, error) {
	table, err := tableName(t)
	if err != nil {
		return "", err
	}

	cols := []string{"id TEXT PRIMARY KEY"}

	for _, a := range t.Attributes {
		col, err := attrColumn(a)
		if err != nil {
			return "", err
		}
		cols = append(cols, fmt.Sprintf("%s %s", col, columnType(a.Kind)))
	}

	for _, rel := range t.Relationships {
		if rel.Kind != schema.RelToOne {
			continue
		}
		col, err := toOneColumn(rel)
		if err != nil {
			return "", err
		}
		targetTable, err := tableName(rel.Target)
		if err != nil {
			return "", err
		}
		cols = append(cols, fmt.Sprintf("%s TEXT REFERENCES %s(id) ON DELETE SET NULL", col, targetTable))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", table, strings.Join(cols, ",\n\t")), nil
}

func joinTableSQL(t *schema.ResourceType, rel *schema.Relationship) (string, error) {
	table, err := joinTableName(t, rel)
	if err != nil {
		return "", err
	}
	ownerTable, err := tableName(t)
	if err != nil {
		return "", err
	}
	targetTable, err := tableName(rel.Target)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	owner_id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
	target_id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
	PRIMARY KEY (owner_id, target_id)
)`, table, ownerTable, targetTable), nil
}

func columnType(kind schema.AttrKind) string {
	switch kind {
	case schema.AttrInt, schema.AttrBool:
		return "INTEGER"
	case schema.AttrFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func tableName(t *schema.ResourceType) (string, error) {
	return safeIdentifier(snakeCase(t.PublicName))
}

func joinTableName(t *schema.ResourceType, rel *schema.Relationship) (string, error) {
	return safeIdentifier(snakeCase(t.PublicName) + "_" + snakeCase(rel.PublicName))
}

func attrColumn(a *schema.Attribute) (string, error) {
	return safeIdentifier(snakeCase(a.PublicName))
}

func toOneColumn(rel *schema.Relationship) (string, error) {
	return safeIdentifier(snakeCase(rel.PublicName) + "_id")
}

func safeIdentifier(name string) (string, error) {
	if !validIdentifier.MatchString(name) {
		return "", fmt.Errorf("public name yields invalid SQL identifier %q", name)
	}
	return name, nil
}

// snakeCase converts a camelCase public name to snake_case:
// "lengthInSeconds" becomes "length_in_seconds".
func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
