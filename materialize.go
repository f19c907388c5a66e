package pal

import "strings"

// queryLocked executes one table query and reconstructs instances from
// the result rows. With eager set, one level of associations is resolved:
// FK columns this row carries become object lookups, and other tables are
// queried for the rows pointing back here. Callers hold the session lock.
func (s *Session) queryLocked(sc *Schema, columns []string, where string, args []any, orderBy, limit string, eager bool) ([]any, error) {
	cs := s.casing()
	assocs, err := s.reg.AssociationsOf(sc.Name)
	if err != nil {
		return nil, err
	}

	cols := s.queryColumns(sc, columns, eager, assocs)
	table := sc.Table(cs)
	rows, err := s.eng.Query(table, cols, where, args, "", "", orderBy, limit)
	if err != nil {
		return nil, persistErr("query "+table, err)
	}
	models, fks, err := s.scanRows(sc, rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	for i, m := range models {
		if err := s.loadGenerics(sc, m); err != nil {
			return nil, err
		}
		if eager {
			if err := s.loadAssociations(sc, m, assocs, fks[i]); err != nil {
				return nil, err
			}
		}
	}
	return models, nil
}

// queryColumns builds the customized column list: generic field names are
// stripped (they are not real columns), the primary key is always
// injected, and eager loading adds each FK column this model's table
// carries. An empty request selects all columns.
func (s *Session) queryColumns(sc *Schema, requested []string, eager bool, assocs []*Association) []string {
	if len(requested) == 0 {
		return nil
	}
	cs := s.casing()

	filtered := make([]string, 0, len(requested))
	for _, col := range requested {
		if sc.generic(col) != nil {
			continue
		}
		filtered = append(filtered, col)
	}
	cols := normalizeColumns(filtered, cs)

	if eager {
		for _, a := range assocs {
			if a.SelfRef == nil || a.Holder != a.Self {
				continue
			}
			fk := a.FKColumn(cs)
			present := false
			for _, col := range cols {
				if strings.EqualFold(col, fk) {
					present = true
					break
				}
			}
			if !present {
				cols = append(cols, fk)
			}
		}
	}
	return cols
}

// scanRows drains a result set into fresh instances. The column plan
// (which index feeds which field) is computed once and reused for every
// row. Columns that match no scalar field are kept as raw values keyed by
// lowercased name; eager loading reads FK values from them.
func (s *Session) scanRows(sc *Schema, rows Rows) ([]any, []map[string]int64, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, persistErr("read columns", err)
	}
	cs := s.casing()

	fieldAt := make([]*Field, len(cols))
	idAt := -1
	for i, col := range cols {
		if IsPrimaryKeyColumn(col) {
			idAt = i
			continue
		}
		for _, f := range sc.Fields {
			if strings.EqualFold(f.Column(cs), col) {
				fieldAt[i] = f
				break
			}
		}
	}

	var models []any
	var fks []map[string]int64
	for rows.Next() {
		raws := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range raws {
			dest[i] = &raws[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, persistErr("scan "+sc.Name, err)
		}

		m := sc.New()
		extra := make(map[string]int64)
		for i, raw := range raws {
			switch {
			case i == idAt:
				sc.SetID(m, asInt64(raw))
			case fieldAt[i] != nil:
				if err := decodeField(fieldAt[i], m, raw, s.ciph); err != nil {
					return nil, nil, err
				}
			default:
				extra[strings.ToLower(cols[i])] = asInt64(raw)
			}
		}
		models = append(models, m)
		fks = append(fks, extra)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, persistErr("iterate "+sc.Name, err)
	}
	return models, fks, nil
}

// loadGenerics populates every collection-of-scalar field from its side
// table.
func (s *Session) loadGenerics(sc *Schema, m any) error {
	id := sc.GetID(m)
	if id <= 0 {
		return nil
	}
	cs := s.casing()
	owner := sc.Table(CasingKeep)
	ownerCol := GenericOwnerColumn(owner, cs)
	for _, g := range sc.Generics {
		table := GenericTableName(owner, g.Name, cs)
		valueCol := g.ValueColumn(cs)
		rows, err := s.eng.Query(table, []string{valueCol}, ownerCol+" = ?", []any{id}, "", "", "", "")
		if err != nil {
			return persistErr("query "+table, err)
		}
		var vals []any
		for rows.Next() {
			var raw any
			if err := rows.Scan(&raw); err != nil {
				rows.Close()
				return persistErr("scan "+table, err)
			}
			vals = append(vals, decodeElem(g.Elem, raw))
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return persistErr("iterate "+table, err)
		}
		g.Set(m, vals)
	}
	return nil
}

// loadAssociations resolves one level of an instance's associations.
// Associated objects are materialized non-eagerly, so loading never
// recurses further.
func (s *Session) loadAssociations(sc *Schema, m any, assocs []*Association, fks map[string]int64) error {
	cs := s.casing()
	id := sc.GetID(m)

	for _, a := range assocs {
		switch {
		case a.Kind == ManyToMany:
			members, err := s.queryJoinedLocked(sc, a, id)
			if err != nil {
				return err
			}
			for _, member := range members {
				a.SelfList.Append(m, member)
			}

		case a.Holder == a.Self && a.SelfRef != nil:
			fk := fks[strings.ToLower(a.FKColumn(cs))]
			if fk <= 0 {
				continue
			}
			obj, err := s.findOneLocked(a.Other, fk)
			if err != nil {
				return err
			}
			if obj != nil {
				a.SelfRef.Set(m, obj)
			}

		case a.Holder != a.Self:
			fkCol := ForeignKeyColumn(sc.Table(CasingKeep), cs)
			members, err := s.queryLocked(a.Other, nil, fkCol+" = ?", []any{id}, "", "", false)
			if err != nil {
				return err
			}
			if a.SelfRef != nil {
				if len(members) > 0 {
					a.SelfRef.Set(m, members[0])
				}
			} else {
				for _, member := range members {
					a.SelfList.Append(m, member)
				}
			}
		}
	}
	return nil
}

func (s *Session) findOneLocked(sc *Schema, id int64) (any, error) {
	idCol := s.casing().Apply(PrimaryKey)
	ms, err := s.queryLocked(sc, nil, idCol+" = ?", []any{id}, "", "1", false)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, nil
	}
	return ms[0], nil
}

// queryJoinedLocked fetches the far side of a many-to-many pair through
// its join table.
func (s *Session) queryJoinedLocked(sc *Schema, a *Association, id int64) ([]any, error) {
	cs := s.casing()
	otherTable := a.Other.Table(cs)
	joinTable := a.JoinTable(cs)
	selfFK := ForeignKeyColumn(sc.Table(CasingKeep), cs)
	otherFK := ForeignKeyColumn(a.Other.Table(CasingKeep), cs)
	idCol := cs.Apply(PrimaryKey)

	sql := "select a.* from " + otherTable + " a inner join " + joinTable +
		" b on a." + idCol + " = b." + otherFK + " where b." + selfFK + " = ?"
	rows, err := s.eng.RawQuery(sql, []any{id})
	if err != nil {
		return nil, persistErr("query "+joinTable, err)
	}
	members, _, err := s.scanRows(a.Other, rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	for _, member := range members {
		if err := s.loadGenerics(a.Other, member); err != nil {
			return nil, err
		}
	}
	return members, nil
}
