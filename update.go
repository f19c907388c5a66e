package pal

import "go.uber.org/zap"

// Update rewrites one row by id inside a transaction. Scalar fields whose
// value equals the type's zero default are omitted, so columns the caller
// never touched stay intact; naming a field in toDefault forces it into
// the value set at its default, which is the only way to write a default
// value back. Generic side tables are rewritten from the instance, and
// association state (FK columns, join rows) is brought in line with the
// instance's current object graph.
func (s *Session) Update(m Model, id int64, toDefault ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows int64
	err := s.transact(func() error {
		var err error
		rows, err = s.updateByIDLocked(m, id, toDefault)
		return err
	})
	return rows, err
}

// UpdateAll rewrites every row matching a condition. Only diffed scalar
// values and forced defaults apply; per-row association maintenance is
// skipped since the affected ids are unknown here.
func (s *Session) UpdateAll(m Model, where string, args []any, toDefault ...string) (int64, error) {
	if err := checkConditions(where, args); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows int64
	err := s.transact(func() error {
		sc, err := s.reg.schemaOf(m)
		if err != nil {
			return err
		}
		values, err := s.diffValues(sc, m, toDefault, nil)
		if err != nil {
			return err
		}
		if len(values) == 0 {
			return nil
		}
		table := sc.Table(s.casing())
		rows, err = s.eng.Update(table, values, where, args)
		if err != nil {
			return persistErr("update "+table, err)
		}
		s.log.Debug("updated", zap.String("table", table), zap.Int64("rows", rows))
		return nil
	})
	return rows, err
}

func (s *Session) updateByIDLocked(m Model, id int64, toDefault []string) (int64, error) {
	sc, err := s.reg.schemaOf(m)
	if err != nil {
		return 0, err
	}
	assocs, err := s.reg.AssociationsOf(sc.Name)
	if err != nil {
		return 0, err
	}
	cs := s.casing()

	t := newTracker()
	for _, a := range assocs {
		t.analyze(cs, m, a)
	}

	values, err := s.diffValues(sc, m, toDefault, t)
	if err != nil {
		return 0, err
	}

	if err := s.writeGenerics(sc, m, id); err != nil {
		return 0, err
	}

	var rows int64
	table := sc.Table(cs)
	if len(values) > 0 {
		rows, err = s.eng.Update(table, values, cs.Apply(PrimaryKey)+" = ?", []any{id})
		if err != nil {
			return 0, persistErr("update "+table, err)
		}
	}

	if err := s.applyAssocRows(sc, t, id); err != nil {
		return 0, err
	}
	if err := s.clearAssocRows(sc, t, id); err != nil {
		return 0, err
	}
	if err := s.writeJoinRows(sc, t, id, true); err != nil {
		return 0, err
	}

	s.log.Debug("updated", zap.String("table", table), zap.Int64("id", id))
	return rows, nil
}

// diffValues builds the update value set: forced defaults first, then
// every scalar whose value differs from a freshly constructed empty
// instance, then the FK writes and clears the analyzers scheduled.
func (s *Session) diffValues(sc *Schema, m any, toDefault []string, t *tracker) (map[string]any, error) {
	cs := s.casing()
	empty := sc.New()

	forced := make(map[string]struct{}, len(toDefault))
	for _, name := range toDefault {
		if sc.field(name) == nil {
			if sc.generic(name) != nil {
				// Generic collections reset through the side-table
				// rewrite; nothing to force here.
				continue
			}
			return nil, schemaErr("%s has no field %q to reset", sc.Name, name)
		}
		forced[name] = struct{}{}
	}

	values := make(map[string]any)
	for _, f := range sc.Fields {
		if _, ok := forced[f.Name]; ok {
			v, err := encodeField(f, empty, s.ciph)
			if err != nil {
				return nil, err
			}
			values[f.Column(cs)] = v
			continue
		}
		if isDefaultValue(f, m, empty) {
			continue
		}
		v, err := encodeField(f, m, s.ciph)
		if err != nil {
			return nil, err
		}
		values[f.Column(cs)] = v
	}

	if t != nil {
		for col, v := range t.fkValues {
			values[col] = v
		}
		for col := range t.fkClear {
			values[col] = nil
		}
	}
	return values, nil
}
