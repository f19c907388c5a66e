package pal

// tracker collects the side effects one save/update needs beyond the row
// itself. It lives for a single orchestrated operation and replaces any
// bookkeeping state on the model instances themselves.
type tracker struct {
	// fkValues are this row's own FK columns and the ids they must hold.
	fkValues map[string]int64
	// fkClear are this row's own FK columns to null out.
	fkClear map[string]struct{}
	// assocRows are rows in other tables whose FK column pointing back at
	// this row must be set to this row's id after insert. Keyed by the
	// other table's name (CasingKeep form).
	assocRows map[string][]int64
	// assocClear are other tables whose FK column pointing at this row
	// must be nulled because the association was dropped.
	assocClear map[string]struct{}
	// joinRows are pending join-table pairings, keyed by the other
	// model's name. An entry exists even when empty, so an update pass
	// clears stale join rows for an emptied collection.
	joinRows map[string][]int64
}

func newTracker() *tracker {
	return &tracker{
		fkValues:   make(map[string]int64),
		fkClear:    make(map[string]struct{}),
		assocRows:  make(map[string][]int64),
		assocClear: make(map[string]struct{}),
		joinRows:   make(map[string][]int64),
	}
}

// analyze runs the analyzer matching the association's kind. It mutates
// the tracker and forces bidirectional consistency on the instances; it
// performs no I/O.
func (t *tracker) analyze(cs Casing, m any, a *Association) {
	switch a.Kind {
	case OneToOne:
		t.analyzeOneToOne(cs, m, a)
	case ManyToOne:
		t.analyzeManyToOne(cs, m, a)
	case ManyToMany:
		t.analyzeManyToMany(m, a)
	}
}

func (t *tracker) analyzeOneToOne(cs Casing, m any, a *Association) {
	assoc := a.SelfRef.Get(m)
	if assoc == nil {
		if a.Holder == a.Self {
			t.fkClear[a.FKColumn(cs)] = struct{}{}
		} else {
			t.assocClear[a.Other.Table(CasingKeep)] = struct{}{}
		}
		return
	}
	if a.OtherRef != nil {
		// Build bidirectionality even when the caller set only one side.
		a.OtherRef.Set(assoc, m)
	}
	id := a.Other.GetID(assoc)
	if id <= 0 {
		return
	}
	if a.Holder == a.Self {
		t.fkValues[a.FKColumn(cs)] = id
	} else {
		t.assocRows[a.Other.Table(CasingKeep)] = append(t.assocRows[a.Other.Table(CasingKeep)], id)
	}
}

func (t *tracker) analyzeManyToOne(cs Casing, m any, a *Association) {
	if a.Holder == a.Self {
		// This instance is the many side and owns the FK column.
		assoc := a.SelfRef.Get(m)
		if assoc == nil {
			t.fkClear[a.FKColumn(cs)] = struct{}{}
			return
		}
		if a.OtherList != nil && !containsModel(a.OtherList.Get(assoc), m) {
			a.OtherList.Append(assoc, m)
		}
		if id := a.Other.GetID(assoc); id > 0 {
			t.fkValues[a.FKColumn(cs)] = id
		} else {
			t.fkClear[a.FKColumn(cs)] = struct{}{}
		}
		return
	}

	// This instance is the one side; each collection member's row must
	// point back here.
	members := a.SelfList.Get(m)
	if len(members) == 0 {
		t.assocClear[a.Other.Table(CasingKeep)] = struct{}{}
		return
	}
	for _, member := range members {
		if member == nil {
			continue
		}
		if a.OtherRef != nil {
			a.OtherRef.Set(member, m)
		}
		if id := a.Other.GetID(member); id > 0 {
			t.assocRows[a.Other.Table(CasingKeep)] = append(t.assocRows[a.Other.Table(CasingKeep)], id)
		}
	}
}

func (t *tracker) analyzeManyToMany(m any, a *Association) {
	key := a.Other.Name
	if _, ok := t.joinRows[key]; !ok {
		t.joinRows[key] = nil
	}
	for _, member := range a.SelfList.Get(m) {
		if member == nil {
			continue
		}
		if a.OtherList != nil && !containsModel(a.OtherList.Get(member), m) {
			a.OtherList.Append(member, m)
		}
		if id := a.Other.GetID(member); id > 0 {
			t.joinRows[key] = append(t.joinRows[key], id)
		}
	}
}

// containsModel reports whether a collection already holds the exact
// instance. Models are pointers, so interface identity is the right
// comparison.
func containsModel(members []any, m any) bool {
	for _, member := range members {
		if member == m {
			return true
		}
	}
	return false
}
