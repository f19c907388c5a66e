package pal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const generatorFixture = `package blog

import "time"

type Post struct {
	ID       int64
	Title    string ` + "`pal:\"unique,not_null,index\"`" + `
	Views    int    ` + "`pal:\"default=0\"`" + `
	Secret   string ` + "`pal:\"encrypt=aes\"`" + `
	Draft    bool
	Written  time.Time
	Tags     []string
	Related  []*Post
	Author   *Author
	Comments []*Comment ` + "`pal:\"set\"`" + `
	cache    map[string]string
	Skipped  string ` + "`pal:\"-\"`" + `
}

func (p *Post) ModelName() string { return "Post" }

type Author struct {
	ID   int64
	Name string
}

type Comment struct {
	ID   int64
	Body string
	Post *Post
}
`

func writeModelFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "model.go")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseStruct(t *testing.T) {
	g := NewGenerator(t.TempDir(), nil)
	path := writeModelFile(t, generatorFixture)

	meta, err := g.ParseStruct("Post", path)
	require.NoError(t, err)

	assert.Equal(t, "Post", meta.Name)
	assert.Equal(t, "blog", meta.PackageName)
	assert.True(t, meta.HasID)
	assert.True(t, meta.HasModelName)

	require.Len(t, meta.Fields, 5)
	title := meta.Fields[0]
	assert.Equal(t, "Title", title.Name)
	assert.Equal(t, KindString, title.Kind)
	assert.Equal(t, []string{"pal.FlagUnique", "pal.FlagNotNull", "pal.FlagIndexed"}, title.Flags)
	assert.Equal(t, "0", meta.Fields[1].Default)
	assert.Equal(t, "aes", meta.Fields[2].Cipher)
	assert.Equal(t, KindBool, meta.Fields[3].Kind)
	assert.Equal(t, KindTime, meta.Fields[4].Kind)

	// []string is a generic collection; []*Post is a self-referential one
	// carried as ids.
	wantGenerics := []genGeneric{
		{Name: "Tags", ElemGoType: "string", Elem: KindString},
		{Name: "Related", Elem: KindInt, SelfRef: true},
	}
	if diff := cmp.Diff(wantGenerics, meta.Generics); diff != "" {
		t.Errorf("generics mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]genRef{{Name: "Author", Target: "Author"}}, meta.Refs); diff != "" {
		t.Errorf("refs mismatch (-want +got):\n%s", diff)
	}

	wantLists := []genList{{Name: "Comments", Target: "Comment", IsSet: true}}
	if diff := cmp.Diff(wantLists, meta.Lists); diff != "" {
		t.Errorf("lists mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStructWithoutModelName(t *testing.T) {
	g := NewGenerator(t.TempDir(), nil)
	path := writeModelFile(t, generatorFixture)

	meta, err := g.ParseStruct("Author", path)
	require.NoError(t, err)
	assert.False(t, meta.HasModelName)
}

func TestParseStructRequiresID(t *testing.T) {
	g := NewGenerator(t.TempDir(), nil)
	path := writeModelFile(t, `package blog

type NoKey struct {
	Name string
}

type BadKey struct {
	ID   int
	Name string
}
`)

	_, err := g.ParseStruct("NoKey", path)
	assert.ErrorContains(t, err, "no ID int64 field")

	_, err = g.ParseStruct("BadKey", path)
	assert.ErrorContains(t, err, "must be int64")
}

func TestParseStructNotFound(t *testing.T) {
	g := NewGenerator(t.TempDir(), nil)
	path := writeModelFile(t, "package blog\n")

	_, err := g.ParseStruct("Ghost", path)
	assert.ErrorContains(t, err, "not found")
}

func TestGenerateForFile(t *testing.T) {
	g := NewGenerator(t.TempDir(), nil)
	path := writeModelFile(t, generatorFixture)

	var metas []StructMeta
	for _, name := range []string{"Post", "Author", "Comment"} {
		meta, err := g.ParseStruct(name, path)
		require.NoError(t, err)
		metas = append(metas, meta)
	}
	require.NoError(t, g.GenerateForFile(metas, path))

	outPath := filepath.Join(filepath.Dir(path), "model_pal.go")
	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	src := string(out)

	assert.Contains(t, src, "// Code generated by palgen; DO NOT EDIT.")
	assert.Contains(t, src, "package blog")
	assert.Contains(t, src, `"time"`)
	assert.Contains(t, src, "func PostSchema() *pal.Schema {")
	assert.Contains(t, src, "func RegisterPost(r *pal.Registry) error")
	assert.Contains(t, src, "func FindPost(s *pal.Session, id int64, eager bool) (*Post, error)")
	assert.Contains(t, src, "func FindAllComment(s *pal.Session, eager bool, ids ...int64) ([]*Comment, error)")

	// Post declares ModelName itself; Author does not.
	assert.NotContains(t, src, `func (m *Post) ModelName() string`)
	assert.Contains(t, src, `func (m *Author) ModelName() string { return "Author" }`)
}

func TestGeneratorRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.go"), []byte(generatorFixture), 0o644))

	g := NewGenerator(dir, nil)
	require.NoError(t, g.Run())

	_, err := os.Stat(filepath.Join(dir, "model_pal.go"))
	assert.NoError(t, err)
}

func TestGeneratorRunWithoutModels(t *testing.T) {
	g := NewGenerator(t.TempDir(), nil)
	assert.ErrorContains(t, g.Run(), "no model structs")
}
