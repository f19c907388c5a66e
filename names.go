package pal

import "strings"

// Casing is the identifier casing policy applied to every generated table
// and column name.
type Casing int

const (
	CasingLower Casing = iota
	CasingUpper
	CasingKeep
)

// Casing policy names as they appear in configuration files.
const (
	CasesLower = "lower"
	CasesUpper = "upper"
	CasesKeep  = "keep"
)

// PrimaryKey is the canonical primary key column name.
const PrimaryKey = "id"

// keywordSuffix is appended to column names that collide with SQLite
// keywords.
const keywordSuffix = "_col"

// Apply normalizes an identifier per the policy.
func (c Casing) Apply(s string) string {
	switch c {
	case CasingUpper:
		return strings.ToUpper(s)
	case CasingKeep:
		return s
	default:
		return strings.ToLower(s)
	}
}

// ParseCasing maps a configured policy name to a Casing. Unknown values
// fall back to lower, matching the storage engine's default collation.
func ParseCasing(s string) Casing {
	switch strings.ToLower(s) {
	case CasesUpper:
		return CasingUpper
	case CasesKeep:
		return CasingKeep
	default:
		return CasingLower
	}
}

// sqliteKeywords are the reserved words a bare column name must not equal.
var sqliteKeywords = map[string]struct{}{
	"abort": {}, "add": {}, "all": {}, "alter": {}, "and": {}, "as": {},
	"autoincrement": {}, "between": {}, "case": {}, "check": {}, "collate": {},
	"column": {}, "commit": {}, "constraint": {}, "create": {}, "cross": {},
	"default": {}, "delete": {}, "distinct": {}, "drop": {}, "else": {},
	"escape": {}, "except": {}, "exists": {}, "foreign": {}, "from": {},
	"group": {}, "having": {}, "in": {}, "index": {}, "inner": {},
	"insert": {}, "intersect": {}, "into": {}, "is": {}, "join": {},
	"limit": {}, "not": {}, "null": {}, "on": {}, "or": {}, "order": {},
	"primary": {}, "references": {}, "select": {}, "set": {}, "table": {},
	"then": {}, "to": {}, "transaction": {}, "union": {}, "unique": {},
	"update": {}, "using": {}, "values": {}, "when": {}, "where": {},
}

// EscapeColumn rewrites a column name that collides with a SQLite keyword.
func EscapeColumn(name string) string {
	if _, ok := sqliteKeywords[strings.ToLower(name)]; ok {
		return name + keywordSuffix
	}
	return name
}

// TableName derives a model's table name from its type name.
func TableName(model string, c Casing) string {
	return c.Apply(model)
}

// ForeignKeyColumn derives the FK column name pointing at a table.
func ForeignKeyColumn(table string, c Casing) string {
	return c.Apply(table + "_id")
}

// JoinTableName derives the intermediate table name for a many-to-many
// pair. Participant order is fixed by case-insensitive comparison so both
// sides derive the same name.
func JoinTableName(a, b string, c Casing) string {
	if strings.ToLower(a) > strings.ToLower(b) {
		a, b = b, a
	}
	return c.Apply(a + "_" + b)
}

// GenericTableName derives the side-table name for a collection-of-scalar
// field.
func GenericTableName(table, field string, c Casing) string {
	return c.Apply(table + "_" + field)
}

// GenericOwnerColumn derives the owner-id column of a generic side table.
func GenericOwnerColumn(table string, c Casing) string {
	return c.Apply(table + "_id")
}

// GenericValueColumn derives the value column of a generic side table.
// Self-referential collections store referenced ids and take an _id
// suffix; plain scalar collections use the field name itself.
func GenericValueColumn(field string, selfRef bool, c Casing) string {
	if selfRef {
		return c.Apply(field + "_id")
	}
	return c.Apply(EscapeColumn(field))
}

// IsPrimaryKeyColumn reports whether a column name addresses the primary
// key. Both "id" and "_id" qualify, case-insensitively.
func IsPrimaryKeyColumn(name string) bool {
	l := strings.ToLower(name)
	return l == "id" || l == "_id"
}

// normalizeColumns rewrites caller-supplied column lists: "_id" becomes
// "id", and the primary key always leads, injected when missing.
func normalizeColumns(columns []string, c Casing) []string {
	out := make([]string, 0, len(columns)+1)
	out = append(out, c.Apply(PrimaryKey))
	for _, col := range columns {
		if IsPrimaryKeyColumn(col) {
			continue
		}
		out = append(out, col)
	}
	return out
}
