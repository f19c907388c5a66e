package pal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// The model fixtures below mirror what palgen emits: plain structs plus
// hand-built schemas with accessor closures.

type Person struct {
	ID        int64
	Name      string
	Age       int
	Nicknames []string
	Cars      []*Car
}

func (m *Person) ModelName() string { return "Person" }

func personSchema() *Schema {
	return &Schema{
		Name:  "Person",
		New:   func() any { return &Person{} },
		GetID: func(m any) int64 { return m.(*Person).ID },
		SetID: func(m any, id int64) { m.(*Person).ID = id },
		Fields: []*Field{
			{
				Name: "Name", Kind: KindString,
				Get: func(m any) any { return m.(*Person).Name },
				Set: func(m any, v any) { m.(*Person).Name = v.(string) },
			},
			{
				Name: "Age", Kind: KindInt,
				Get: func(m any) any { return int64(m.(*Person).Age) },
				Set: func(m any, v any) { m.(*Person).Age = int(v.(int64)) },
			},
		},
		Generics: []*GenericField{
			{
				Name: "Nicknames", Elem: KindString,
				Get: func(m any) []any {
					out := make([]any, len(m.(*Person).Nicknames))
					for i, v := range m.(*Person).Nicknames {
						out[i] = v
					}
					return out
				},
				Set: func(m any, vs []any) {
					out := make([]string, len(vs))
					for i, v := range vs {
						out[i] = v.(string)
					}
					m.(*Person).Nicknames = out
				},
			},
		},
		Lists: []*ListField{
			{
				Name: "Cars", Target: "Car", IsSet: true,
				Get: func(m any) []any {
					out := make([]any, len(m.(*Person).Cars))
					for i, v := range m.(*Person).Cars {
						out[i] = v
					}
					return out
				},
				Append: func(m any, v any) { m.(*Person).Cars = append(m.(*Person).Cars, v.(*Car)) },
			},
		},
	}
}

type Car struct {
	ID    int64
	Name  string
	Owner *Person
}

func (m *Car) ModelName() string { return "Car" }

func carSchema() *Schema {
	return &Schema{
		Name:  "Car",
		New:   func() any { return &Car{} },
		GetID: func(m any) int64 { return m.(*Car).ID },
		SetID: func(m any, id int64) { m.(*Car).ID = id },
		Fields: []*Field{
			{
				Name: "Name", Kind: KindString,
				Get: func(m any) any { return m.(*Car).Name },
				Set: func(m any, v any) { m.(*Car).Name = v.(string) },
			},
		},
		Refs: []*RefField{
			{
				Name: "Owner", Target: "Person",
				Get: func(m any) any {
					if m.(*Car).Owner == nil {
						return nil
					}
					return m.(*Car).Owner
				},
				Set: func(m any, v any) { m.(*Car).Owner = v.(*Person) },
			},
		},
	}
}

type Teacher struct {
	ID       int64
	Name     string
	Students []*Student
}

func (m *Teacher) ModelName() string { return "Teacher" }

func teacherSchema() *Schema {
	return &Schema{
		Name:  "Teacher",
		New:   func() any { return &Teacher{} },
		GetID: func(m any) int64 { return m.(*Teacher).ID },
		SetID: func(m any, id int64) { m.(*Teacher).ID = id },
		Fields: []*Field{
			{
				Name: "Name", Kind: KindString,
				Get: func(m any) any { return m.(*Teacher).Name },
				Set: func(m any, v any) { m.(*Teacher).Name = v.(string) },
			},
		},
		Lists: []*ListField{
			{
				Name: "Students", Target: "Student", IsSet: true,
				Get: func(m any) []any {
					out := make([]any, len(m.(*Teacher).Students))
					for i, v := range m.(*Teacher).Students {
						out[i] = v
					}
					return out
				},
				Append: func(m any, v any) { m.(*Teacher).Students = append(m.(*Teacher).Students, v.(*Student)) },
			},
		},
	}
}

type Student struct {
	ID       int64
	Name     string
	Teachers []*Teacher
}

func (m *Student) ModelName() string { return "Student" }

func studentSchema() *Schema {
	return &Schema{
		Name:  "Student",
		New:   func() any { return &Student{} },
		GetID: func(m any) int64 { return m.(*Student).ID },
		SetID: func(m any, id int64) { m.(*Student).ID = id },
		Fields: []*Field{
			{
				Name: "Name", Kind: KindString,
				Get: func(m any) any { return m.(*Student).Name },
				Set: func(m any, v any) { m.(*Student).Name = v.(string) },
			},
		},
		Lists: []*ListField{
			{
				Name: "Teachers", Target: "Teacher", IsSet: true,
				Get: func(m any) []any {
					out := make([]any, len(m.(*Student).Teachers))
					for i, v := range m.(*Student).Teachers {
						out[i] = v
					}
					return out
				},
				Append: func(m any, v any) { m.(*Student).Teachers = append(m.(*Student).Teachers, v.(*Teacher)) },
			},
		},
	}
}

type Account struct {
	ID      int64
	Email   string
	Profile *Profile
}

func (m *Account) ModelName() string { return "Account" }

func accountSchema() *Schema {
	return &Schema{
		Name:  "Account",
		New:   func() any { return &Account{} },
		GetID: func(m any) int64 { return m.(*Account).ID },
		SetID: func(m any, id int64) { m.(*Account).ID = id },
		Fields: []*Field{
			{
				Name: "Email", Kind: KindString,
				Get: func(m any) any { return m.(*Account).Email },
				Set: func(m any, v any) { m.(*Account).Email = v.(string) },
			},
		},
		Refs: []*RefField{
			{
				Name: "Profile", Target: "Profile",
				Get: func(m any) any {
					if m.(*Account).Profile == nil {
						return nil
					}
					return m.(*Account).Profile
				},
				Set: func(m any, v any) { m.(*Account).Profile = v.(*Profile) },
			},
		},
	}
}

type Profile struct {
	ID      int64
	Bio     string
	Account *Account
}

func (m *Profile) ModelName() string { return "Profile" }

func profileSchema() *Schema {
	return &Schema{
		Name:  "Profile",
		New:   func() any { return &Profile{} },
		GetID: func(m any) int64 { return m.(*Profile).ID },
		SetID: func(m any, id int64) { m.(*Profile).ID = id },
		Fields: []*Field{
			{
				Name: "Bio", Kind: KindString,
				Get: func(m any) any { return m.(*Profile).Bio },
				Set: func(m any, v any) { m.(*Profile).Bio = v.(string) },
			},
		},
		Refs: []*RefField{
			{
				Name: "Account", Target: "Account",
				Get: func(m any) any {
					if m.(*Profile).Account == nil {
						return nil
					}
					return m.(*Profile).Account
				},
				Set: func(m any, v any) { m.(*Profile).Account = v.(*Account) },
			},
		},
	}
}

type Note struct {
	ID    int64
	Title string
	Stars int
	Ratio float64
	Done  bool
	Due   time.Time
}

func (m *Note) ModelName() string { return "Note" }

func noteSchema() *Schema {
	return &Schema{
		Name:  "Note",
		New:   func() any { return &Note{} },
		GetID: func(m any) int64 { return m.(*Note).ID },
		SetID: func(m any, id int64) { m.(*Note).ID = id },
		Fields: []*Field{
			{
				Name: "Title", Kind: KindString,
				Get: func(m any) any { return m.(*Note).Title },
				Set: func(m any, v any) { m.(*Note).Title = v.(string) },
			},
			{
				Name: "Stars", Kind: KindInt,
				Get: func(m any) any { return int64(m.(*Note).Stars) },
				Set: func(m any, v any) { m.(*Note).Stars = int(v.(int64)) },
			},
			{
				Name: "Ratio", Kind: KindFloat,
				Get: func(m any) any { return m.(*Note).Ratio },
				Set: func(m any, v any) { m.(*Note).Ratio = v.(float64) },
			},
			{
				Name: "Done", Kind: KindBool,
				Get: func(m any) any { return m.(*Note).Done },
				Set: func(m any, v any) { m.(*Note).Done = v.(bool) },
			},
			{
				Name: "Due", Kind: KindTime,
				Get: func(m any) any { return m.(*Note).Due },
				Set: func(m any, v any) { m.(*Note).Due = v.(time.Time) },
			},
		},
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, sc := range []*Schema{
		personSchema(), carSchema(),
		teacherSchema(), studentSchema(),
		accountSchema(), profileSchema(),
		noteSchema(),
	} {
		require.NoError(t, r.Register(sc))
	}
	return r
}

func newTestSession(t *testing.T, eng Engine) *Session {
	t.Helper()
	s, err := NewSession(Config{Database: "test"}, eng, newTestRegistry(t), zap.NewNop())
	require.NoError(t, err)
	return s
}
