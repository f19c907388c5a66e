package pal

// Kind is the abstract storage kind of a scalar model field.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
	KindBytes
	KindTime
)

// Flag is a bitmask of field-level annotations.
type Flag int

const FlagNone Flag = 0

const (
	FlagUnique Flag = 1 << iota
	FlagNotNull
	FlagIndexed
)

// Field describes one scalar column of a model. Get and Set are accessor
// closures produced at registration time; they replace reflective
// getter/setter lookup entirely.
type Field struct {
	Name    string // declared field name
	Kind    Kind
	Flags   Flag
	Default string // declared default literal, empty if none
	Cipher  string // CipherAES, CipherMD5 or empty
	Get     func(m any) any
	Set     func(m any, v any)
}

// Column derives the field's column name under a casing policy.
func (f *Field) Column(c Casing) string {
	return c.Apply(EscapeColumn(f.Name))
}

// GenericField describes a collection-of-scalar field persisted into its
// own side table. A self-referential collection of the owning model's own
// type is also carried here, holding referenced ids as plain integers.
type GenericField struct {
	Name    string
	Elem    Kind // element kind; KindInt when SelfRef
	SelfRef bool
	IsSet   bool
	Get     func(m any) []any
	Set     func(m any, vs []any)
}

// ValueColumn derives the side table's value column name.
func (g *GenericField) ValueColumn(c Casing) string {
	return GenericValueColumn(g.Name, g.SelfRef, c)
}

// RefField describes a singular reference to another model. Get returns
// nil when the field is unset.
type RefField struct {
	Name   string
	Target string // associated model type name
	Get    func(m any) any
	Set    func(m any, v any)
}

// ListField describes a collection of another model's instances.
type ListField struct {
	Name   string
	Target string
	IsSet  bool
	Get    func(m any) []any
	Append func(m any, v any)
}

// Schema is the structural descriptor of one model type, built by
// generated registration code rather than runtime reflection. The identity
// column is not listed among Fields; it is reached through GetID/SetID and
// always maps to the canonical primary key column.
type Schema struct {
	Name     string
	Fields   []*Field
	Generics []*GenericField
	Refs     []*RefField
	Lists    []*ListField
	New      func() any
	GetID    func(m any) int64
	SetID    func(m any, id int64)
}

// Table derives the model's table name under a casing policy.
func (s *Schema) Table(c Casing) string {
	return TableName(s.Name, c)
}

func (s *Schema) field(name string) *Field {
	for _, f := range s.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (s *Schema) generic(name string) *GenericField {
	for _, g := range s.Generics {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// Model is implemented by every persistable type. Generated code supplies
// the method when the type does not declare it.
type Model interface {
	ModelName() string
}
