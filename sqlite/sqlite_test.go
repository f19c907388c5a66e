package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSelect(t *testing.T) {
	cases := []struct {
		name      string
		columns   []string
		selection string
		groupBy   string
		having    string
		orderBy   string
		limit     string
		want      string
	}{
		{
			name: "all columns",
			want: "select * from person",
		},
		{
			name:    "column list",
			columns: []string{"id", "name"},
			want:    "select id, name from person",
		},
		{
			name:      "where clause",
			selection: "age > ?",
			want:      "select * from person where age > ?",
		},
		{
			name:    "group and having",
			columns: []string{"age", "count(1)"},
			groupBy: "age",
			having:  "count(1) > 1",
			want:    "select age, count(1) from person group by age having count(1) > 1",
		},
		{
			name:   "having without group is dropped",
			having: "count(1) > 1",
			want:   "select * from person",
		},
		{
			name:    "order and limit",
			orderBy: "id desc",
			limit:   "5",
			want:    "select * from person order by id desc limit 5",
		},
		{
			name:  "offset limit",
			limit: "2,5",
			want:  "select * from person limit 5 offset 2",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := BuildSelect("person", tc.columns, tc.selection, tc.groupBy, tc.having, tc.orderBy, tc.limit)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTransactionProtocol(t *testing.T) {
	eng, err := Open(":memory:")
	assert.NoError(t, err)
	defer eng.Close()

	assert.ErrorIs(t, eng.End(), ErrNoTransaction)

	assert.NoError(t, eng.Begin())
	assert.ErrorIs(t, eng.Begin(), ErrNestedTransaction)
	eng.MarkSuccessful()
	assert.NoError(t, eng.End())
	assert.ErrorIs(t, eng.End(), ErrNoTransaction)
}

func TestEngineRoundTrip(t *testing.T) {
	eng, err := Open(":memory:")
	assert.NoError(t, err)
	defer eng.Close()

	assert.NoError(t, eng.Exec("create table person (id integer primary key autoincrement, name text, age integer)", nil))

	id, err := eng.Insert("person", map[string]any{"name": "Tom", "age": 30})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), id)

	n, err := eng.Update("person", map[string]any{"age": 31}, "id = ?", []any{id})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := eng.Query("person", []string{"name", "age"}, "id = ?", []any{id}, "", "", "", "")
	assert.NoError(t, err)
	var name string
	var age int64
	assert.True(t, rows.Next())
	assert.NoError(t, rows.Scan(&name, &age))
	assert.NoError(t, rows.Close())
	assert.Equal(t, "Tom", name)
	assert.Equal(t, int64(31), age)

	n, err = eng.Delete("person", "id = ?", []any{id})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	eng, err := Open(":memory:")
	assert.NoError(t, err)
	defer eng.Close()

	assert.NoError(t, eng.Exec("create table note (id integer primary key autoincrement, title text)", nil))

	assert.NoError(t, eng.Begin())
	_, err = eng.Insert("note", map[string]any{"title": "draft"})
	assert.NoError(t, err)
	assert.NoError(t, eng.End()) // never marked successful

	rows, err := eng.RawQuery("select count(1) from note", nil)
	assert.NoError(t, err)
	var count int64
	assert.True(t, rows.Next())
	assert.NoError(t, rows.Scan(&count))
	assert.NoError(t, rows.Close())
	assert.Zero(t, count)
}

func TestInsertEmptyValues(t *testing.T) {
	eng, err := Open(":memory:")
	assert.NoError(t, err)
	defer eng.Close()

	assert.NoError(t, eng.Exec("create table marker (id integer primary key autoincrement)", nil))

	id, err := eng.Insert("marker", nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), id)
}
