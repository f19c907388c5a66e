package pal

import "go.uber.org/zap"

// Save persists an instance inside one transaction: the row itself, its
// generic side-table rows, FK columns on associated tables pointing back
// at it, and any join-table rows. Saving an already-persisted instance
// (id > 0) rewrites its row and association state instead of inserting.
func (s *Session) Save(m Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transact(func() error {
		return s.saveLocked(m)
	})
}

// TrySave is the fire-and-forget variant of Save: any error is logged and
// reported as false.
func (s *Session) TrySave(m Model) bool {
	if err := s.Save(m); err != nil {
		s.log.Error("save failed",
			zap.String("model", m.ModelName()),
			zap.Error(err))
		return false
	}
	return true
}

// SaveAll persists a collection inside a single transaction. A failure on
// any element rolls back every element: all saved, or none saved.
func (s *Session) SaveAll(ms []Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transact(func() error {
		for _, m := range ms {
			if err := s.saveLocked(m); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Session) saveLocked(m Model) error {
	sc, err := s.reg.schemaOf(m)
	if err != nil {
		return err
	}
	assocs, err := s.reg.AssociationsOf(sc.Name)
	if err != nil {
		return err
	}
	cs := s.casing()

	// Pre-pass: discover the FK values this row must carry before insert.
	t := newTracker()
	for _, a := range assocs {
		t.analyze(cs, m, a)
	}

	if sc.GetID(m) > 0 {
		return s.resaveLocked(sc, m, assocs, t)
	}

	values := make(map[string]any, len(sc.Fields)+len(t.fkValues))
	for _, f := range sc.Fields {
		v, err := encodeField(f, m, s.ciph)
		if err != nil {
			return err
		}
		values[f.Column(cs)] = v
	}
	for col, id := range t.fkValues {
		values[col] = id
	}
	if len(values) == 0 {
		values[cs.Apply(PrimaryKey)] = nil
	}

	table := sc.Table(cs)
	id, err := s.eng.Insert(table, values)
	if err != nil {
		return persistErr("insert into "+table, err)
	}
	if id <= 0 {
		return ErrSaveFailed
	}
	sc.SetID(m, id)

	// Post-pass: associations that could only resolve once this row has
	// an id, e.g. join rows referencing it.
	post := newTracker()
	for _, a := range assocs {
		post.analyze(cs, m, a)
	}

	if err := s.writeGenerics(sc, m, id); err != nil {
		return err
	}
	if err := s.applyAssocRows(sc, post, id); err != nil {
		return err
	}
	if err := s.writeJoinRows(sc, post, id, false); err != nil {
		return err
	}

	s.log.Debug("saved", zap.String("table", table), zap.Int64("id", id))
	return nil
}

// resaveLocked handles Save on an instance that already has an identity.
func (s *Session) resaveLocked(sc *Schema, m Model, assocs []*Association, t *tracker) error {
	cs := s.casing()
	id := sc.GetID(m)

	values := make(map[string]any, len(sc.Fields))
	for _, f := range sc.Fields {
		v, err := encodeField(f, m, s.ciph)
		if err != nil {
			return err
		}
		values[f.Column(cs)] = v
	}
	for col, v := range t.fkValues {
		values[col] = v
	}
	for col := range t.fkClear {
		values[col] = nil
	}

	table := sc.Table(cs)
	if _, err := s.eng.Update(table, values, cs.Apply(PrimaryKey)+" = ?", []any{id}); err != nil {
		return persistErr("update "+table, err)
	}
	if err := s.writeGenerics(sc, m, id); err != nil {
		return err
	}
	if err := s.applyAssocRows(sc, t, id); err != nil {
		return err
	}
	if err := s.clearAssocRows(sc, t, id); err != nil {
		return err
	}
	if err := s.writeJoinRows(sc, t, id, true); err != nil {
		return err
	}

	s.log.Debug("resaved", zap.String("table", table), zap.Int64("id", id))
	return nil
}

// writeGenerics rewrites every generic side table for one owner row:
// delete then reinsert, keyed by the owner id.
func (s *Session) writeGenerics(sc *Schema, m any, id int64) error {
	cs := s.casing()
	owner := sc.Table(CasingKeep)
	ownerCol := GenericOwnerColumn(owner, cs)
	for _, g := range sc.Generics {
		table := GenericTableName(owner, g.Name, cs)
		if _, err := s.eng.Delete(table, ownerCol+" = ?", []any{id}); err != nil {
			return persistErr("clear "+table, err)
		}
		valueCol := g.ValueColumn(cs)
		for _, v := range g.Get(m) {
			row := map[string]any{
				ownerCol: id,
				valueCol: encodeElem(g.Elem, v),
			}
			if _, err := s.eng.Insert(table, row); err != nil {
				return persistErr("insert into "+table, err)
			}
		}
	}
	return nil
}

// applyAssocRows points other tables' FK columns at this row.
func (s *Session) applyAssocRows(sc *Schema, t *tracker, id int64) error {
	cs := s.casing()
	fkCol := ForeignKeyColumn(sc.Table(CasingKeep), cs)
	for otherTable, ids := range t.assocRows {
		if len(ids) == 0 {
			continue
		}
		table := cs.Apply(otherTable)
		selection := cs.Apply(PrimaryKey) + " in (" + inPlaceholders(len(ids)) + ")"
		if _, err := s.eng.Update(table, map[string]any{fkCol: id}, selection, idArgs(ids)); err != nil {
			return persistErr("update "+table, err)
		}
	}
	return nil
}

// clearAssocRows nulls other tables' FK columns that still point at this
// row after the association was dropped.
func (s *Session) clearAssocRows(sc *Schema, t *tracker, id int64) error {
	cs := s.casing()
	fkCol := ForeignKeyColumn(sc.Table(CasingKeep), cs)
	for otherTable := range t.assocClear {
		table := cs.Apply(otherTable)
		if _, err := s.eng.Update(table, map[string]any{fkCol: nil}, fkCol+" = ?", []any{id}); err != nil {
			return persistErr("update "+table, err)
		}
	}
	return nil
}

// writeJoinRows materializes pending many-to-many pairings. With clear
// set, existing rows for this owner are removed first, so repeated
// identical updates never duplicate join rows.
func (s *Session) writeJoinRows(sc *Schema, t *tracker, id int64, clear bool) error {
	cs := s.casing()
	selfFK := ForeignKeyColumn(sc.Table(CasingKeep), cs)
	for otherName, ids := range t.joinRows {
		other, err := s.reg.Lookup(otherName)
		if err != nil {
			return err
		}
		table := JoinTableName(sc.Table(CasingKeep), other.Table(CasingKeep), cs)
		otherFK := ForeignKeyColumn(other.Table(CasingKeep), cs)
		if clear {
			if _, err := s.eng.Delete(table, selfFK+" = ?", []any{id}); err != nil {
				return persistErr("clear "+table, err)
			}
		}
		seen := make(map[int64]struct{}, len(ids))
		for _, oid := range ids {
			if _, dup := seen[oid]; dup {
				continue
			}
			seen[oid] = struct{}{}
			row := map[string]any{selfFK: id, otherFK: oid}
			if _, err := s.eng.Insert(table, row); err != nil {
				return persistErr("insert into "+table, err)
			}
		}
	}
	return nil
}
