package pal

import (
	"strings"

	"go.uber.org/zap"
)

// CreateTables generates the schema for every mapped model inside one
// transaction: model tables with their FK columns, generic side tables,
// many-to-many join tables, and declared indexes. Existing tables are
// left alone.
func (s *Session) CreateTables() error {
	names := s.cfg.Models
	if len(names) == 0 {
		names = s.reg.Names()
	}

	schemas := make([]*Schema, 0, len(names))
	for _, name := range names {
		sc, err := s.reg.Lookup(name)
		if err != nil {
			return err
		}
		schemas = append(schemas, sc)
	}
	assocs, err := s.reg.AssociationsFor(names...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transact(func() error {
		for _, sc := range schemas {
			for _, stmt := range s.tableDDL(sc, assocs) {
				if err := s.eng.Exec(stmt, nil); err != nil {
					return persistErr("create table for "+sc.Name, err)
				}
			}
		}
		for _, stmt := range s.joinTableDDL(assocs) {
			if err := s.eng.Exec(stmt, nil); err != nil {
				return persistErr("create join table", err)
			}
		}
		s.log.Info("tables created",
			zap.String("database", s.cfg.Database),
			zap.Int("models", len(schemas)))
		return nil
	})
}

// tableDDL builds the CREATE TABLE and CREATE INDEX statements for one
// model, plus its generic side tables.
func (s *Session) tableDDL(sc *Schema, assocs []*Association) []string {
	cs := s.casing()
	table := sc.Table(cs)

	cols := []string{cs.Apply(PrimaryKey) + " integer primary key autoincrement"}
	var indexes []string
	for _, f := range sc.Fields {
		col := f.Column(cs)
		def := col + " " + sqlType(f.Kind)
		if f.Flags&FlagNotNull != 0 {
			def += " not null"
		}
		if f.Flags&FlagUnique != 0 {
			def += " unique"
		}
		if f.Default != "" {
			def += " default " + defaultLiteral(f)
		}
		cols = append(cols, def)
		if f.Flags&FlagIndexed != 0 {
			indexes = append(indexes,
				"create index if not exists "+table+"_"+col+"_index on "+table+" ("+col+")")
		}
	}
	for _, a := range assocs {
		if a.Kind == ManyToMany || a.Holder == nil || a.Holder.Name != sc.Name {
			continue
		}
		cols = append(cols, a.FKColumn(cs)+" integer")
	}

	out := []string{"create table if not exists " + table + " (" + strings.Join(cols, ", ") + ")"}
	out = append(out, indexes...)

	owner := sc.Table(CasingKeep)
	ownerCol := GenericOwnerColumn(owner, cs)
	for _, g := range sc.Generics {
		gt := GenericTableName(owner, g.Name, cs)
		out = append(out, "create table if not exists "+gt+" ("+
			cs.Apply(PrimaryKey)+" integer primary key autoincrement, "+
			ownerCol+" integer, "+
			g.ValueColumn(cs)+" "+sqlType(g.Elem)+")")
	}
	return out
}

// joinTableDDL builds one CREATE TABLE per distinct many-to-many pair.
func (s *Session) joinTableDDL(assocs []*Association) []string {
	cs := s.casing()
	seen := make(map[string]struct{})
	var out []string
	for _, a := range assocs {
		if a.Kind != ManyToMany {
			continue
		}
		table := a.JoinTable(cs)
		if _, dup := seen[table]; dup {
			continue
		}
		seen[table] = struct{}{}
		selfFK := ForeignKeyColumn(a.Self.Table(CasingKeep), cs)
		otherFK := ForeignKeyColumn(a.Other.Table(CasingKeep), cs)
		out = append(out, "create table if not exists "+table+" ("+
			cs.Apply(PrimaryKey)+" integer primary key autoincrement, "+
			selfFK+" integer, "+otherFK+" integer)")
	}
	return out
}

func sqlType(k Kind) string {
	switch k {
	case KindFloat:
		return "real"
	case KindString:
		return "text"
	case KindBytes:
		return "blob"
	default:
		return "integer"
	}
}

func defaultLiteral(f *Field) string {
	switch f.Kind {
	case KindString:
		return "'" + strings.ReplaceAll(f.Default, "'", "''") + "'"
	case KindTime:
		if t, err := parseDefaultDate(f.Default); err == nil {
			return t
		}
		return "0"
	default:
		return f.Default
	}
}
