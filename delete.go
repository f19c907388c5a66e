package pal

import "go.uber.org/zap"

// Delete removes a persisted instance's row and cascades: rows in tables
// holding a FK pointing at it, its join-table rows, and its generic
// side-table rows all go in the same transaction. The instance's identity
// and the identities of cascade-deleted associates are reset to zero so
// the in-memory object graph reflects storage.
func (s *Session) Delete(m Model) (int64, error) {
	sc, err := s.reg.schemaOf(m)
	if err != nil {
		return 0, err
	}
	id := sc.GetID(m)
	if id <= 0 {
		return 0, nil
	}
	assocs, err := s.reg.AssociationsOf(sc.Name)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	err = s.transact(func() error {
		var err error
		affected, err = s.deleteByIDLocked(sc, assocs, id)
		return err
	})
	if err != nil {
		return 0, err
	}

	sc.SetID(m, 0)
	resetAssociatedIDs(m, assocs)
	return affected, nil
}

// DeleteByID removes one row addressed by primary key, with full cascade.
func (s *Session) DeleteByID(name string, id int64) (int64, error) {
	sc, err := s.reg.Lookup(name)
	if err != nil {
		return 0, err
	}
	assocs, err := s.reg.AssociationsOf(name)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	err = s.transact(func() error {
		var err error
		affected, err = s.deleteByIDLocked(sc, assocs, id)
		return err
	})
	return affected, err
}

// DeleteAll removes every row matching a condition. Cascade is skipped
// for conditioned bulk deletes; the unconditional form cascades fully,
// since nothing dependent can survive without any owner left: generic
// side tables and join tables are emptied, and rows in other tables
// holding a FK pointing here are removed.
func (s *Session) DeleteAll(name string, where string, args ...any) (int64, error) {
	if err := checkConditions(where, args); err != nil {
		return 0, err
	}
	sc, err := s.reg.Lookup(name)
	if err != nil {
		return 0, err
	}
	assocs, err := s.reg.AssociationsOf(name)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.casing()
	var affected int64
	err = s.transact(func() error {
		if where == "" {
			owner := sc.Table(CasingKeep)
			for _, g := range sc.Generics {
				gt := GenericTableName(owner, g.Name, cs)
				n, err := s.eng.Delete(gt, "", nil)
				if err != nil {
					return persistErr("clear "+gt, err)
				}
				affected += n
			}
			fkCol := ForeignKeyColumn(owner, cs)
			for _, a := range assocs {
				switch {
				case a.Kind == ManyToMany:
					n, err := s.eng.Delete(a.JoinTable(cs), "", nil)
					if err != nil {
						return persistErr("clear "+a.JoinTable(cs), err)
					}
					affected += n
				case a.Holder != a.Self:
					other := a.Other.Table(cs)
					n, err := s.eng.Delete(other, fkCol+" is not null", nil)
					if err != nil {
						return persistErr("delete from "+other, err)
					}
					affected += n
				}
			}
		}
		table := sc.Table(cs)
		n, err := s.eng.Delete(table, where, args)
		if err != nil {
			return persistErr("delete from "+table, err)
		}
		affected += n
		s.log.Debug("deleted", zap.String("table", table), zap.Int64("rows", n))
		return nil
	})
	return affected, err
}

// deleteByIDLocked performs the cascade for one row: generic side tables,
// FK-holding rows in other tables, join rows, then the row itself. The
// returned count covers everything removed.
func (s *Session) deleteByIDLocked(sc *Schema, assocs []*Association, id int64) (int64, error) {
	cs := s.casing()
	owner := sc.Table(CasingKeep)
	var affected int64

	ownerCol := GenericOwnerColumn(owner, cs)
	for _, g := range sc.Generics {
		table := GenericTableName(owner, g.Name, cs)
		n, err := s.eng.Delete(table, ownerCol+" = ?", []any{id})
		if err != nil {
			return 0, persistErr("delete from "+table, err)
		}
		affected += n
	}

	fkCol := ForeignKeyColumn(owner, cs)
	for _, a := range assocs {
		switch {
		case a.Kind == ManyToMany:
			table := a.JoinTable(cs)
			n, err := s.eng.Delete(table, fkCol+" = ?", []any{id})
			if err != nil {
				return 0, persistErr("delete from "+table, err)
			}
			affected += n
		case a.Holder != a.Self:
			table := a.Other.Table(cs)
			n, err := s.eng.Delete(table, fkCol+" = ?", []any{id})
			if err != nil {
				return 0, persistErr("delete from "+table, err)
			}
			affected += n
		}
	}

	table := sc.Table(cs)
	n, err := s.eng.Delete(table, cs.Apply(PrimaryKey)+" = ?", []any{id})
	if err != nil {
		return 0, persistErr("delete from "+table, err)
	}
	affected += n

	s.log.Debug("deleted", zap.String("table", table), zap.Int64("id", id),
		zap.Int64("rows", affected))
	return affected, nil
}

// resetAssociatedIDs zeroes the identity of every associate whose row was
// cascade-deleted along with the instance.
func resetAssociatedIDs(m any, assocs []*Association) {
	for _, a := range assocs {
		if a.Kind == ManyToMany || a.Holder == a.Self {
			continue
		}
		if a.SelfRef != nil {
			if assoc := a.SelfRef.Get(m); assoc != nil {
				a.Other.SetID(assoc, 0)
			}
		}
		if a.SelfList != nil {
			for _, member := range a.SelfList.Get(m) {
				if member != nil {
					a.Other.SetID(member, 0)
				}
			}
		}
	}
}
