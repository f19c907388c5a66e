package pal

// Engine is the storage abstraction. It must remain implementable over
// sql.DB, in-memory fakes, and any embedded store exposing parameterized
// query/insert/update/delete primitives.
//
// Transactions follow a begin / mark-successful / end protocol: End
// commits when MarkSuccessful was called since Begin, otherwise it rolls
// back. Exactly one End per Begin.
type Engine interface {
	Query(table string, columns []string, selection string, args []any, groupBy, having, orderBy, limit string) (Rows, error)
	RawQuery(sql string, args []any) (Rows, error)
	// Insert returns the generated row id, or a non-positive value when
	// no row was created. A nil map value stores NULL; an empty values
	// map still creates a row with defaults.
	Insert(table string, values map[string]any) (int64, error)
	Update(table string, values map[string]any, selection string, args []any) (int64, error)
	Delete(table string, selection string, args []any) (int64, error)
	Exec(sql string, args []any) error
	Begin() error
	MarkSuccessful()
	End() error
}

// Rows is an iterator over query results.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close() error
	Err() error
}
