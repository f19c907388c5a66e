package pal

import "strings"

// AssocKind is the classified kind of an association between two models.
type AssocKind int

const (
	OneToOne AssocKind = iota
	ManyToOne
	ManyToMany
)

func (k AssocKind) String() string {
	switch k {
	case OneToOne:
		return "one2one"
	case ManyToOne:
		return "many2one"
	default:
		return "many2many"
	}
}

// Association describes one classified relationship, seen from Self's
// side. Holder is the schema whose table carries the FK column; nil for
// many-to-many, where a join table carries both ids. The field handles for
// both sides are carried so analyzers can read and write through them.
type Association struct {
	Kind   AssocKind
	Self   *Schema
	Other  *Schema
	Holder *Schema

	SelfRef   *RefField  // singular field on Self, nil if Self declares a collection
	SelfList  *ListField // collection field on Self, nil if singular
	OtherRef  *RefField  // reverse singular field on Other, nil if absent
	OtherList *ListField // reverse collection field on Other, nil if absent
}

// FKColumn is the foreign key column on the holder's table, pointing at
// the other participant.
func (a *Association) FKColumn(c Casing) string {
	target := a.Other
	if a.Holder == a.Other {
		target = a.Self
	}
	return ForeignKeyColumn(target.Table(CasingKeep), c)
}

// JoinTable is the intermediate table name for a many-to-many pair.
func (a *Association) JoinTable(c Casing) string {
	return JoinTableName(a.Self.Table(CasingKeep), a.Other.Table(CasingKeep), c)
}

// key dedups descriptors produced independently from each side.
func (a *Association) key() string {
	holder := ""
	if a.Holder != nil {
		holder = a.Holder.Name
	}
	x, y := a.Self.Name, a.Other.Name
	if x > y {
		x, y = y, x
	}
	return a.Kind.String() + "|" + holder + "|" + x + "|" + y
}

// firstTable picks the FK holder for a bidirectional one-to-one pair: the
// side whose table name sorts first. Classification from either side then
// converges on the same descriptor.
func firstTable(a, b *Schema) *Schema {
	if strings.ToLower(b.Table(CasingKeep)) < strings.ToLower(a.Table(CasingKeep)) {
		return b
	}
	return a
}

func reverseRef(other *Schema, selfName string) *RefField {
	for _, rf := range other.Refs {
		if rf.Target == selfName {
			return rf
		}
	}
	return nil
}

func reverseList(other *Schema, selfName string) *ListField {
	for _, lf := range other.Lists {
		if lf.Target == selfName {
			return lf
		}
	}
	return nil
}

// AssociationsOf classifies every association field of one model type,
// inspecting the reverse side's fields to fix kind and FK ownership.
// Self-referential collections are absent here: they are registered as
// generic side tables and never reach the classifier.
func (r *Registry) AssociationsOf(name string) ([]*Association, error) {
	self, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	var out []*Association
	seen := make(map[string]struct{})
	add := func(a *Association) {
		if _, dup := seen[a.key()]; dup {
			return
		}
		seen[a.key()] = struct{}{}
		out = append(out, a)
	}

	for _, rf := range self.Refs {
		other, err := r.Lookup(rf.Target)
		if err != nil {
			return nil, err
		}
		switch {
		case reverseRef(other, self.Name) != nil:
			add(&Association{
				Kind:     OneToOne,
				Self:     self,
				Other:    other,
				Holder:   firstTable(self, other),
				SelfRef:  rf,
				OtherRef: reverseRef(other, self.Name),
			})
		case reverseList(other, self.Name) != nil:
			// Self holds the singular side of a collection pair, so
			// self is the many side and carries the FK.
			add(&Association{
				Kind:      ManyToOne,
				Self:      self,
				Other:     other,
				Holder:    self,
				SelfRef:   rf,
				OtherList: reverseList(other, self.Name),
			})
		default:
			add(&Association{
				Kind:    OneToOne,
				Self:    self,
				Other:   other,
				Holder:  self,
				SelfRef: rf,
			})
		}
	}

	for _, lf := range self.Lists {
		if lf.Target == self.Name {
			continue
		}
		other, err := r.Lookup(lf.Target)
		if err != nil {
			return nil, err
		}
		switch {
		case reverseRef(other, self.Name) != nil:
			add(&Association{
				Kind:     ManyToOne,
				Self:     self,
				Other:    other,
				Holder:   other,
				SelfList: lf,
				OtherRef: reverseRef(other, self.Name),
			})
		case reverseList(other, self.Name) != nil:
			add(&Association{
				Kind:      ManyToMany,
				Self:      self,
				Other:     other,
				SelfList:  lf,
				OtherList: reverseList(other, self.Name),
			})
		default:
			// No reverse field at all; the collection element side is
			// assumed to carry the FK.
			add(&Association{
				Kind:     ManyToOne,
				Self:     self,
				Other:    other,
				Holder:   other,
				SelfList: lf,
			})
		}
	}

	return out, nil
}

// AssociationsFor is the bulk classification used for table generation:
// the union of every named type's associations, deduplicated so each
// relationship appears once no matter how many sides contributed it.
func (r *Registry) AssociationsFor(names ...string) ([]*Association, error) {
	var out []*Association
	seen := make(map[string]struct{})
	for _, name := range names {
		assocs, err := r.AssociationsOf(name)
		if err != nil {
			return nil, err
		}
		for _, a := range assocs {
			if _, dup := seen[a.key()]; dup {
				continue
			}
			seen[a.key()] = struct{}{}
			out = append(out, a)
		}
	}
	return out, nil
}
