package pal

import (
	"fmt"
	"strings"
)

// Condition is one where-clause term. It is a sealed value type
// constructed via the functions below.
type Condition struct {
	field    string
	operator string
	value    any
	logic    string
}

// Eq creates a condition for checking equality.
func Eq(field string, value any) Condition {
	return Condition{field: field, operator: "=", value: value, logic: "AND"}
}

// Neq creates a condition for checking inequality.
func Neq(field string, value any) Condition {
	return Condition{field: field, operator: "!=", value: value, logic: "AND"}
}

// Gt creates a condition for checking if a value is greater than another.
func Gt(field string, value any) Condition {
	return Condition{field: field, operator: ">", value: value, logic: "AND"}
}

// Gte creates a condition for checking if a value is greater than or equal to another.
func Gte(field string, value any) Condition {
	return Condition{field: field, operator: ">=", value: value, logic: "AND"}
}

// Lt creates a condition for checking if a value is less than another.
func Lt(field string, value any) Condition {
	return Condition{field: field, operator: "<", value: value, logic: "AND"}
}

// Lte creates a condition for checking if a value is less than or equal to another.
func Lte(field string, value any) Condition {
	return Condition{field: field, operator: "<=", value: value, logic: "AND"}
}

// Like creates a condition for checking if a value matches a pattern.
func Like(field string, value any) Condition {
	return Condition{field: field, operator: "LIKE", value: value, logic: "AND"}
}

// Or creates a condition with OR logic.
func Or(c Condition) Condition {
	c.logic = "OR"
	return c
}

func compileConditions(conds []Condition) (string, []any) {
	if len(conds) == 0 {
		return "", nil
	}
	var b strings.Builder
	args := make([]any, 0, len(conds))
	for i, c := range conds {
		if i > 0 {
			b.WriteString(" " + c.logic + " ")
		}
		b.WriteString(c.field + " " + c.operator + " ?")
		args = append(args, c.value)
	}
	return b.String(), args
}

// Finder is a chainable query builder over one model type.
// Consumers hold a *Finder reference in variables for incremental building.
type Finder struct {
	sess    *Session
	name    string
	columns []string
	conds   []Condition
	orderBy []string
	limit   int
	offset  int
}

// Query creates a new Finder for a model type.
func (s *Session) Query(name string) *Finder {
	return &Finder{sess: s, name: name}
}

// Select restricts the column list. The primary key is always included.
func (f *Finder) Select(columns ...string) *Finder {
	f.columns = append(f.columns, columns...)
	return f
}

// Where adds conditions to the query.
func (f *Finder) Where(conds ...Condition) *Finder {
	f.conds = append(f.conds, conds...)
	return f
}

// OrderBy adds an order clause to the query.
func (f *Finder) OrderBy(column, dir string) *Finder {
	f.orderBy = append(f.orderBy, strings.TrimSpace(column+" "+dir))
	return f
}

// Limit sets the limit for the query.
func (f *Finder) Limit(limit int) *Finder {
	f.limit = limit
	return f
}

// Offset sets the offset for the query.
func (f *Finder) Offset(offset int) *Finder {
	f.offset = offset
	return f
}

func (f *Finder) limitClause() string {
	if f.limit <= 0 {
		return ""
	}
	if f.offset > 0 {
		return fmt.Sprintf("%d,%d", f.offset, f.limit)
	}
	return fmt.Sprintf("%d", f.limit)
}

// Find executes the query and materializes every matching row.
func (f *Finder) Find(eager bool) ([]any, error) {
	where, args := compileConditions(f.conds)
	return f.sess.findModels(f.name, f.columns, where, args, strings.Join(f.orderBy, ", "), f.limitClause(), eager)
}

// First executes the query and returns the first matching row.
func (f *Finder) First(eager bool) (any, error) {
	where, args := compileConditions(f.conds)
	order := strings.Join(f.orderBy, ", ")
	ms, err := f.sess.findModels(f.name, f.columns, where, args, order, "1", eager)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, ErrNotFound
	}
	return ms[0], nil
}

// Last returns the matching row with the highest id. "Last" is defined by
// descending id order, not by insertion time.
func (f *Finder) Last(eager bool) (any, error) {
	where, args := compileConditions(f.conds)
	order := f.sess.casing().Apply(PrimaryKey) + " desc"
	ms, err := f.sess.findModels(f.name, f.columns, where, args, order, "1", eager)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, ErrNotFound
	}
	return ms[0], nil
}

// Find retrieves one row by primary key, optionally eager-loading one
// level of associations.
func (s *Session) Find(name string, id int64, eager bool) (any, error) {
	idCol := s.casing().Apply(PrimaryKey)
	ms, err := s.findModels(name, nil, idCol+" = ?", []any{id}, "", "1", eager)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, ErrNotFound
	}
	return ms[0], nil
}

// FindFirst retrieves the row with the lowest id.
func (s *Session) FindFirst(name string, eager bool) (any, error) {
	idCol := s.casing().Apply(PrimaryKey)
	ms, err := s.findModels(name, nil, "", nil, idCol, "1", eager)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, ErrNotFound
	}
	return ms[0], nil
}

// FindLast retrieves the row with the highest id.
func (s *Session) FindLast(name string, eager bool) (any, error) {
	idCol := s.casing().Apply(PrimaryKey)
	ms, err := s.findModels(name, nil, "", nil, idCol+" desc", "1", eager)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, ErrNotFound
	}
	return ms[0], nil
}

// FindAll retrieves rows by id, or every row when no ids are given,
// ordered by ascending id.
func (s *Session) FindAll(name string, eager bool, ids ...int64) ([]any, error) {
	idCol := s.casing().Apply(PrimaryKey)
	where := ""
	var args []any
	if len(ids) > 0 {
		where = idCol + " in (" + inPlaceholders(len(ids)) + ")"
		args = idArgs(ids)
	}
	return s.findModels(name, nil, where, args, idCol, "", eager)
}

// FindWhere retrieves rows matching a raw condition, with optional column
// restriction, ordering and limit.
func (s *Session) FindWhere(name string, eager bool, columns []string, where string, args []any, orderBy, limit string) ([]any, error) {
	return s.findModels(name, columns, where, args, orderBy, limit, eager)
}

func (s *Session) findModels(name string, columns []string, where string, args []any, orderBy, limit string, eager bool) ([]any, error) {
	if err := checkConditions(where, args); err != nil {
		return nil, err
	}
	sc, err := s.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLocked(sc, columns, where, args, orderBy, limit, eager)
}

// Count returns the number of rows matching a condition.
func (s *Session) Count(name string, where string, args ...any) (int64, error) {
	v, err := s.cluster(name, "count(1)", where, args)
	if err != nil {
		return 0, err
	}
	return asInt64(v), nil
}

// Average returns the mean of a column over the matching rows.
func (s *Session) Average(name, column string, where string, args ...any) (float64, error) {
	v, err := s.cluster(name, "avg("+column+")", where, args)
	if err != nil {
		return 0, err
	}
	return asFloat64(v), nil
}

// Number constrains the result types of the aggregate queries.
type Number interface {
	~int | ~int64 | ~float64
}

// Max returns the largest value of a column over the matching rows.
func Max[T Number](s *Session, name, column string, where string, args ...any) (T, error) {
	return aggregate[T](s, name, "max("+column+")", where, args)
}

// Min returns the smallest value of a column over the matching rows.
func Min[T Number](s *Session, name, column string, where string, args ...any) (T, error) {
	return aggregate[T](s, name, "min("+column+")", where, args)
}

// Sum returns the total of a column over the matching rows.
func Sum[T Number](s *Session, name, column string, where string, args ...any) (T, error) {
	return aggregate[T](s, name, "sum("+column+")", where, args)
}

func aggregate[T Number](s *Session, name, expr, where string, args []any) (T, error) {
	var zero T
	v, err := s.cluster(name, expr, where, args)
	if err != nil {
		return zero, err
	}
	switch p := any(&zero).(type) {
	case *int:
		*p = int(asInt64(v))
	case *int64:
		*p = asInt64(v)
	case *float64:
		*p = asFloat64(v)
	}
	return zero, nil
}

// cluster runs one aggregate expression against a model's table.
func (s *Session) cluster(name, expr, where string, args []any) (any, error) {
	if err := checkConditions(where, args); err != nil {
		return nil, err
	}
	sc, err := s.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	table := sc.Table(s.casing())
	sql := "select " + expr + " from " + table
	if where != "" {
		sql += " where " + where
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.eng.RawQuery(sql, args)
	if err != nil {
		return nil, persistErr("query "+table, err)
	}
	defer rows.Close()
	var v any
	if rows.Next() {
		if err := rows.Scan(&v); err != nil {
			return nil, persistErr("scan aggregate", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate aggregate", err)
	}
	return v, nil
}
