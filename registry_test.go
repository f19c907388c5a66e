package pal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterValidatesSchema(t *testing.T) {
	r := NewRegistry()

	assert.ErrorIs(t, r.Register(nil), ErrSchema)
	assert.ErrorIs(t, r.Register(&Schema{}), ErrSchema)
	assert.ErrorIs(t, r.Register(&Schema{Name: "X"}), ErrSchema)
	assert.ErrorIs(t, r.Register(&Schema{
		Name: "X",
		New:  func() any { return nil },
	}), ErrSchema)
	assert.ErrorIs(t, r.Register(&Schema{
		Name:  "X",
		New:   func() any { return nil },
		GetID: func(m any) int64 { return 0 },
		SetID: func(m any, id int64) {},
		Refs:  []*RefField{{Name: "Broken"}},
	}), ErrSchema)
	assert.ErrorIs(t, r.Register(&Schema{
		Name:  "X",
		New:   func() any { return nil },
		GetID: func(m any) int64 { return 0 },
		SetID: func(m any, id int64) {},
		Lists: []*ListField{{Name: "Broken", Target: "Y"}},
	}), ErrSchema)
}

func TestRegistryNamesAreSorted(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t,
		[]string{"Account", "Car", "Note", "Person", "Profile", "Student", "Teacher"},
		r.Names())
}

func TestRegistryReset(t *testing.T) {
	r := newTestRegistry(t)
	r.Reset()
	assert.Empty(t, r.Names())

	_, err := r.Lookup("Person")
	assert.ErrorIs(t, err, ErrTypeResolution)
}

func TestSchemaOfResolvesByModelName(t *testing.T) {
	r := newTestRegistry(t)
	sc, err := r.schemaOf(&Person{})
	require.NoError(t, err)
	assert.Equal(t, "Person", sc.Name)
}
