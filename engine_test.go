package pal

import (
	"errors"
	"fmt"
)

// call records one engine invocation for assertions.
type call struct {
	op        string
	table     string
	values    map[string]any
	selection string
	args      []any
	sql       string
	columns   []string
	orderBy   string
	limit     string
}

// fakeRows serves canned result rows. Scan targets are *any pointers,
// matching how the materializer reads.
type fakeRows struct {
	cols []string
	data [][]any
	i    int
}

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.i-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: want %d destinations, got %d", len(row), len(dest))
	}
	for i, v := range row {
		p, ok := dest[i].(*any)
		if !ok {
			return fmt.Errorf("scan: destination %d is not *any", i)
		}
		*p = v
	}
	return nil
}

func (r *fakeRows) Columns() ([]string, error) { return r.cols, nil }
func (r *fakeRows) Close() error               { return nil }
func (r *fakeRows) Err() error                 { return nil }

// fakeEngine records every call, assigns autoincrement ids per table, and
// can be scripted to fail on the Nth write or to serve rows per query.
type fakeEngine struct {
	calls      []call
	nextID     map[string]int64
	writeCount int
	failAt     int // 1-based write index that fails; 0 disables
	deleteN    map[string]int64
	onQuery    func(c call) *fakeRows
	onRaw      func(sql string, args []any) *fakeRows

	inTx       bool
	marked     bool
	committed  int
	rolledBack int
}

var errScripted = errors.New("scripted engine failure")

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		nextID:  make(map[string]int64),
		deleteN: make(map[string]int64),
	}
}

func (e *fakeEngine) failWrite() bool {
	e.writeCount++
	return e.failAt > 0 && e.writeCount == e.failAt
}

func (e *fakeEngine) Insert(table string, values map[string]any) (int64, error) {
	e.calls = append(e.calls, call{op: "insert", table: table, values: values})
	if e.failWrite() {
		return -1, errScripted
	}
	e.nextID[table]++
	return e.nextID[table], nil
}

func (e *fakeEngine) Update(table string, values map[string]any, selection string, args []any) (int64, error) {
	e.calls = append(e.calls, call{op: "update", table: table, values: values, selection: selection, args: args})
	if e.failWrite() {
		return 0, errScripted
	}
	return 1, nil
}

func (e *fakeEngine) Delete(table string, selection string, args []any) (int64, error) {
	e.calls = append(e.calls, call{op: "delete", table: table, selection: selection, args: args})
	if e.failWrite() {
		return 0, errScripted
	}
	return e.deleteN[table], nil
}

func (e *fakeEngine) Exec(sql string, args []any) error {
	e.calls = append(e.calls, call{op: "exec", sql: sql, args: args})
	if e.failWrite() {
		return errScripted
	}
	return nil
}

func (e *fakeEngine) Query(table string, columns []string, selection string, args []any, groupBy, having, orderBy, limit string) (Rows, error) {
	c := call{op: "query", table: table, columns: columns, selection: selection, args: args, orderBy: orderBy, limit: limit}
	e.calls = append(e.calls, c)
	if e.onQuery != nil {
		if rows := e.onQuery(c); rows != nil {
			return rows, nil
		}
	}
	return &fakeRows{}, nil
}

func (e *fakeEngine) RawQuery(sql string, args []any) (Rows, error) {
	e.calls = append(e.calls, call{op: "raw", sql: sql, args: args})
	if e.onRaw != nil {
		if rows := e.onRaw(sql, args); rows != nil {
			return rows, nil
		}
	}
	return &fakeRows{}, nil
}

func (e *fakeEngine) Begin() error {
	e.calls = append(e.calls, call{op: "begin"})
	e.inTx = true
	e.marked = false
	return nil
}

func (e *fakeEngine) MarkSuccessful() {
	e.marked = true
}

func (e *fakeEngine) End() error {
	e.calls = append(e.calls, call{op: "end"})
	e.inTx = false
	if e.marked {
		e.committed++
	} else {
		e.rolledBack++
	}
	return nil
}

func (e *fakeEngine) callsOf(op string) []call {
	var out []call
	for _, c := range e.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (e *fakeEngine) callsOn(op, table string) []call {
	var out []call
	for _, c := range e.callsOf(op) {
		if c.table == table {
			out = append(out, c)
		}
	}
	return out
}
