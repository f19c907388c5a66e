// Package sqlite adapts an embedded SQLite database to the pal storage
// engine interface, using the cgo-free modernc driver through
// database/sql.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/palhub/pal"
)

// ErrNoTransaction is returned by End and MarkSuccessful without a
// matching Begin.
var ErrNoTransaction = errors.New("sqlite: no open transaction")

// ErrNestedTransaction is returned by Begin while a transaction is open.
var ErrNestedTransaction = errors.New("sqlite: transaction already open")

// Engine implements pal.Engine over one SQLite database file.
// It is driven under pal's session lock and is not safe for unmanaged
// concurrent use.
type Engine struct {
	db *sql.DB
	tx *sql.Tx
	ok bool
}

// Open opens or creates a database file. ":memory:" works as usual.
func Open(path string) (*Engine, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One writer at a time; matches the session's locking model and
	// avoids SQLITE_BUSY under the pure-Go driver.
	db.SetMaxOpenConns(1)
	return &Engine{db: db}, nil
}

// Close releases the underlying database handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

type runner interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
}

func (e *Engine) runner() runner {
	if e.tx != nil {
		return e.tx
	}
	return e.db
}

// Begin opens the single transaction. Nesting is rejected.
func (e *Engine) Begin() error {
	if e.tx != nil {
		return ErrNestedTransaction
	}
	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	e.tx = tx
	e.ok = false
	return nil
}

// MarkSuccessful flags the open transaction for commit.
func (e *Engine) MarkSuccessful() {
	e.ok = true
}

// End finalizes the open transaction: commit when marked successful,
// rollback otherwise.
func (e *Engine) End() error {
	if e.tx == nil {
		return ErrNoTransaction
	}
	tx := e.tx
	ok := e.ok
	e.tx = nil
	e.ok = false
	if ok {
		return tx.Commit()
	}
	return tx.Rollback()
}

// BuildSelect assembles one SELECT statement from structured query
// parameters. Exported for statement-level testing.
func BuildSelect(table string, columns []string, selection, groupBy, having, orderBy, limit string) string {
	var b strings.Builder
	b.WriteString("select ")
	if len(columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(columns, ", "))
	}
	b.WriteString(" from " + table)
	if selection != "" {
		b.WriteString(" where " + selection)
	}
	if groupBy != "" {
		b.WriteString(" group by " + groupBy)
		if having != "" {
			b.WriteString(" having " + having)
		}
	}
	if orderBy != "" {
		b.WriteString(" order by " + orderBy)
	}
	if limit != "" {
		if offset, count, ok := strings.Cut(limit, ","); ok {
			b.WriteString(" limit " + count + " offset " + offset)
		} else {
			b.WriteString(" limit " + limit)
		}
	}
	return b.String()
}

// Query runs a structured single-table query.
func (e *Engine) Query(table string, columns []string, selection string, args []any, groupBy, having, orderBy, limit string) (pal.Rows, error) {
	rows, err := e.runner().Query(BuildSelect(table, columns, selection, groupBy, having, orderBy, limit), args...)
	if err != nil {
		return nil, err
	}
	return &rowSet{rows: rows}, nil
}

// RawQuery runs an arbitrary SQL query.
func (e *Engine) RawQuery(query string, args []any) (pal.Rows, error) {
	rows, err := e.runner().Query(query, args...)
	if err != nil {
		return nil, err
	}
	return &rowSet{rows: rows}, nil
}

// Insert creates one row and returns its generated id. Map iteration
// order is not stable, so columns are sorted for deterministic SQL.
func (e *Engine) Insert(table string, values map[string]any) (int64, error) {
	if len(values) == 0 {
		res, err := e.runner().Exec("insert into " + table + " default values")
		if err != nil {
			return -1, err
		}
		return res.LastInsertId()
	}

	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	holders := make([]string, len(cols))
	for i, col := range cols {
		args[i] = values[col]
		holders[i] = "?"
	}
	stmt := "insert into " + table + " (" + strings.Join(cols, ", ") + ") values (" + strings.Join(holders, ", ") + ")"
	res, err := e.runner().Exec(stmt, args...)
	if err != nil {
		return -1, err
	}
	return res.LastInsertId()
}

// Update rewrites matching rows and returns the affected count.
func (e *Engine) Update(table string, values map[string]any, selection string, args []any) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	setArgs := make([]any, 0, len(cols)+len(args))
	for i, col := range cols {
		sets[i] = col + " = ?"
		setArgs = append(setArgs, values[col])
	}
	setArgs = append(setArgs, args...)

	stmt := "update " + table + " set " + strings.Join(sets, ", ")
	if selection != "" {
		stmt += " where " + selection
	}
	res, err := e.runner().Exec(stmt, setArgs...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes matching rows and returns the affected count. An empty
// selection removes every row.
func (e *Engine) Delete(table string, selection string, args []any) (int64, error) {
	stmt := "delete from " + table
	if selection != "" {
		stmt += " where " + selection
	}
	res, err := e.runner().Exec(stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Exec runs one statement without results, e.g. DDL.
func (e *Engine) Exec(query string, args []any) error {
	_, err := e.runner().Exec(query, args...)
	return err
}

type rowSet struct {
	rows *sql.Rows
}

func (r *rowSet) Next() bool                 { return r.rows.Next() }
func (r *rowSet) Scan(dest ...any) error     { return r.rows.Scan(dest...) }
func (r *rowSet) Columns() ([]string, error) { return r.rows.Columns() }
func (r *rowSet) Close() error               { return r.rows.Close() }
func (r *rowSet) Err() error                 { return r.rows.Err() }
