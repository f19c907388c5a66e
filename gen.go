package pal

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// genField is one scalar column found in a model struct.
type genField struct {
	Name    string
	GoType  string
	Kind    Kind
	Flags   []string
	Default string
	Cipher  string
}

// genGeneric is a collection-of-scalar field, or a self-referential
// collection carried as plain ids.
type genGeneric struct {
	Name       string
	ElemGoType string
	Elem       Kind
	SelfRef    bool
	IsSet      bool
}

// genRef is a singular pointer to another model struct.
type genRef struct {
	Name   string
	Target string
}

// genList is a collection of pointers to another model struct.
type genList struct {
	Name   string
	Target string
	IsSet  bool
}

// StructMeta is the parsed shape of one model struct.
type StructMeta struct {
	Name         string
	PackageName  string
	SourceFile   string
	HasModelName bool
	HasID        bool
	Fields       []genField
	Generics     []genGeneric
	Refs         []genRef
	Lists        []genList
}

// Generator scans model source files and emits schema registration code,
// replacing runtime reflection with generated accessor closures.
type Generator struct {
	rootDir string
	log     *zap.Logger
}

// NewGenerator creates a Generator rooted at a directory tree.
func NewGenerator(rootDir string, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{rootDir: rootDir, log: log}
}

// scalarKind maps a Go type literal to its storage kind.
func scalarKind(goType string) (Kind, bool) {
	switch goType {
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64":
		return KindInt, true
	case "float32", "float64":
		return KindFloat, true
	case "bool":
		return KindBool, true
	case "string":
		return KindString, true
	case "[]byte":
		return KindBytes, true
	case "time.Time":
		return KindTime, true
	default:
		return 0, false
	}
}

// detectModelName scans the AST for func (X) ModelName() string.
func detectModelName(node *ast.File, structName string) bool {
	for _, decl := range node.Decls {
		funcDecl, ok := decl.(*ast.FuncDecl)
		if !ok || funcDecl.Recv == nil || len(funcDecl.Recv.List) == 0 {
			continue
		}
		if funcDecl.Name.Name != "ModelName" {
			continue
		}
		recv := funcDecl.Recv.List[0].Type
		recvName := ""
		if ident, ok := recv.(*ast.Ident); ok {
			recvName = ident.Name
		} else if star, ok := recv.(*ast.StarExpr); ok {
			if ident, ok := star.X.(*ast.Ident); ok {
				recvName = ident.Name
			}
		}
		if recvName == structName {
			return true
		}
	}
	return false
}

func typeLiteral(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		if pkg, ok := t.X.(*ast.Ident); ok {
			return pkg.Name + "." + t.Sel.Name
		}
	case *ast.ArrayType:
		if elt, ok := t.Elt.(*ast.Ident); ok && elt.Name == "byte" {
			return "[]byte"
		}
	}
	return ""
}

type palTag struct {
	ignore  bool
	flags   []string
	def     string
	cipher  string
	setLike bool
}

func parsePalTag(tagValue string) palTag {
	var out palTag
	raw := strings.Trim(tagValue, "`")
	tag := ""
	for _, part := range strings.Fields(raw) {
		if strings.HasPrefix(part, `pal:"`) {
			tag = strings.TrimSuffix(strings.TrimPrefix(part, `pal:"`), `"`)
			break
		}
	}
	if tag == "" {
		return out
	}
	for _, p := range strings.Split(tag, ",") {
		switch {
		case p == "-":
			out.ignore = true
		case p == "unique":
			out.flags = append(out.flags, "pal.FlagUnique")
		case p == "not_null":
			out.flags = append(out.flags, "pal.FlagNotNull")
		case p == "index":
			out.flags = append(out.flags, "pal.FlagIndexed")
		case p == "set":
			out.setLike = true
		case strings.HasPrefix(p, "default="):
			out.def = strings.TrimPrefix(p, "default=")
		case strings.HasPrefix(p, "encrypt="):
			out.cipher = strings.TrimPrefix(p, "encrypt=")
		}
	}
	return out
}

// ParseStruct parses a single struct from a Go file and returns its
// persistence metadata.
func (g *Generator) ParseStruct(structName, goFile string) (StructMeta, error) {
	if structName == "" || goFile == "" {
		return StructMeta{}, fmt.Errorf("pal: struct name and file are required")
	}

	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, goFile, nil, parser.ParseComments)
	if err != nil {
		return StructMeta{}, fmt.Errorf("pal: parsing %s: %w", goFile, err)
	}

	var target *ast.StructType
	ast.Inspect(node, func(n ast.Node) bool {
		if ts, ok := n.(*ast.TypeSpec); ok && ts.Name.Name == structName {
			if st, ok := ts.Type.(*ast.StructType); ok {
				target = st
				return false
			}
		}
		return true
	})
	if target == nil {
		return StructMeta{}, fmt.Errorf("pal: struct %s not found in %s", structName, goFile)
	}

	meta := StructMeta{
		Name:         structName,
		PackageName:  node.Name.Name,
		SourceFile:   goFile,
		HasModelName: detectModelName(node, structName),
	}

	for _, field := range target.Fields.List {
		if len(field.Names) == 0 {
			continue
		}
		name := field.Names[0].Name
		if !ast.IsExported(name) {
			continue
		}
		tag := palTag{}
		if field.Tag != nil {
			tag = parsePalTag(field.Tag.Value)
		}
		if tag.ignore {
			continue
		}

		if name == "ID" {
			if lit := typeLiteral(field.Type); lit == "int64" {
				meta.HasID = true
				continue
			}
			return StructMeta{}, fmt.Errorf("pal: %s.ID must be int64", structName)
		}

		switch t := field.Type.(type) {
		case *ast.StarExpr:
			if ident, ok := t.X.(*ast.Ident); ok && ast.IsExported(ident.Name) {
				meta.Refs = append(meta.Refs, genRef{Name: name, Target: ident.Name})
				continue
			}

		case *ast.ArrayType:
			if star, ok := t.Elt.(*ast.StarExpr); ok {
				if ident, ok := star.X.(*ast.Ident); ok && ast.IsExported(ident.Name) {
					if ident.Name == structName {
						meta.Generics = append(meta.Generics, genGeneric{
							Name: name, Elem: KindInt, SelfRef: true, IsSet: tag.setLike,
						})
					} else {
						meta.Lists = append(meta.Lists, genList{
							Name: name, Target: ident.Name, IsSet: tag.setLike,
						})
					}
					continue
				}
			}
			elem := typeLiteral(t.Elt)
			if elem == "byte" || typeLiteral(field.Type) == "[]byte" {
				meta.Fields = append(meta.Fields, genField{
					Name: name, GoType: "[]byte", Kind: KindBytes,
					Flags: tag.flags, Default: tag.def,
				})
				continue
			}
			if kind, ok := scalarKind(elem); ok {
				meta.Generics = append(meta.Generics, genGeneric{
					Name: name, ElemGoType: elem, Elem: kind, IsSet: tag.setLike,
				})
				continue
			}
		}

		lit := typeLiteral(field.Type)
		if kind, ok := scalarKind(lit); ok {
			meta.Fields = append(meta.Fields, genField{
				Name: name, GoType: lit, Kind: kind,
				Flags: tag.flags, Default: tag.def, Cipher: tag.cipher,
			})
			continue
		}

		g.log.Warn("skipping unmappable field",
			zap.String("struct", structName),
			zap.String("field", name),
			zap.String("type", lit))
	}

	if !meta.HasID {
		return StructMeta{}, fmt.Errorf("pal: %s has no ID int64 field", structName)
	}
	return meta, nil
}

// collectStructs walks the root directory and parses every struct found
// in model.go / models.go files.
func (g *Generator) collectStructs() ([]StructMeta, []string, error) {
	var metas []StructMeta
	var fileOrder []string
	fileSeen := make(map[string]bool)

	err := filepath.Walk(g.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			name := info.Name()
			if name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
				if path != g.rootDir {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if info.Name() != "model.go" && info.Name() != "models.go" {
			return nil
		}

		fset := token.NewFileSet()
		node, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			g.log.Warn("skipping unparseable file", zap.String("file", path), zap.Error(err))
			return nil
		}
		for _, decl := range node.Decls {
			genDecl, ok := decl.(*ast.GenDecl)
			if !ok || genDecl.Tok != token.TYPE {
				continue
			}
			for _, spec := range genDecl.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				if _, ok := ts.Type.(*ast.StructType); !ok {
					continue
				}
				meta, err := g.ParseStruct(ts.Name.Name, path)
				if err != nil {
					g.log.Warn("skipping struct", zap.String("struct", ts.Name.Name), zap.Error(err))
					continue
				}
				metas = append(metas, meta)
				if !fileSeen[path] {
					fileSeen[path] = true
					fileOrder = append(fileOrder, path)
				}
			}
		}
		return nil
	})
	return metas, fileOrder, err
}

// Run is the generator entry point: collect every model struct, then emit
// one generated file per source file.
func (g *Generator) Run() error {
	metas, fileOrder, err := g.collectStructs()
	if err != nil {
		return fmt.Errorf("pal: walking %s: %w", g.rootDir, err)
	}
	if len(metas) == 0 {
		return fmt.Errorf("pal: no model structs found under %s", g.rootDir)
	}

	byFile := make(map[string][]StructMeta)
	for _, meta := range metas {
		byFile[meta.SourceFile] = append(byFile[meta.SourceFile], meta)
	}
	for _, sourceFile := range fileOrder {
		if err := g.GenerateForFile(byFile[sourceFile], sourceFile); err != nil {
			return err
		}
		g.log.Info("generated",
			zap.String("source", sourceFile),
			zap.Int("structs", len(byFile[sourceFile])))
	}
	return nil
}

// getExpr builds the expression converting a struct field to its storage
// scalar; setExpr builds the reverse.
func getExpr(goType, sel string) string {
	switch goType {
	case "int64", "float64", "bool", "string", "[]byte", "time.Time":
		return sel
	case "float32":
		return "float64(" + sel + ")"
	default:
		return "int64(" + sel + ")"
	}
}

func setExpr(goType, val string) string {
	switch goType {
	case "int64":
		return val + ".(int64)"
	case "float64":
		return val + ".(float64)"
	case "bool":
		return val + ".(bool)"
	case "string":
		return val + ".(string)"
	case "[]byte":
		return val + ".([]byte)"
	case "time.Time":
		return val + ".(time.Time)"
	case "float32":
		return "float32(" + val + ".(float64))"
	default:
		return goType + "(" + val + ".(int64))"
	}
}

func kindLiteral(k Kind) string {
	switch k {
	case KindInt:
		return "pal.KindInt"
	case KindFloat:
		return "pal.KindFloat"
	case KindBool:
		return "pal.KindBool"
	case KindBytes:
		return "pal.KindBytes"
	case KindTime:
		return "pal.KindTime"
	default:
		return "pal.KindString"
	}
}

// GenerateForFile writes the registration code for all structs of one
// source file into <file>_pal.go.
func (g *Generator) GenerateForFile(metas []StructMeta, sourceFile string) error {
	if len(metas) == 0 {
		return nil
	}
	var b strings.Builder

	fmt.Fprintf(&b, "// Code generated by palgen; DO NOT EDIT.\n")
	fmt.Fprintf(&b, "package %s\n\n", metas[0].PackageName)

	needsTime := false
	for _, meta := range metas {
		for _, f := range meta.Fields {
			if f.GoType == "time.Time" {
				needsTime = true
			}
		}
		for _, gen := range meta.Generics {
			if gen.ElemGoType == "time.Time" {
				needsTime = true
			}
		}
	}
	b.WriteString("import (\n")
	if needsTime {
		b.WriteString("\t\"time\"\n\n")
	}
	b.WriteString("\t\"github.com/palhub/pal\"\n)\n\n")

	for _, meta := range metas {
		g.writeStruct(&b, meta)
	}

	outName := strings.TrimSuffix(sourceFile, ".go") + "_pal.go"
	return os.WriteFile(outName, []byte(b.String()), 0o644)
}

func (g *Generator) writeStruct(b *strings.Builder, meta StructMeta) {
	recv := "m.(*" + meta.Name + ")"

	if !meta.HasModelName {
		fmt.Fprintf(b, "func (m *%s) ModelName() string { return %q }\n\n", meta.Name, meta.Name)
	}

	fmt.Fprintf(b, "// %sSchema builds the structural descriptor for %s.\n", meta.Name, meta.Name)
	fmt.Fprintf(b, "func %sSchema() *pal.Schema {\n", meta.Name)
	fmt.Fprintf(b, "\treturn &pal.Schema{\n")
	fmt.Fprintf(b, "\t\tName: %q,\n", meta.Name)
	fmt.Fprintf(b, "\t\tNew:  func() any { return &%s{} },\n", meta.Name)
	fmt.Fprintf(b, "\t\tGetID: func(m any) int64 { return %s.ID },\n", recv)
	fmt.Fprintf(b, "\t\tSetID: func(m any, id int64) { %s.ID = id },\n", recv)

	if len(meta.Fields) > 0 {
		fmt.Fprintf(b, "\t\tFields: []*pal.Field{\n")
		for _, f := range meta.Fields {
			fmt.Fprintf(b, "\t\t\t{\n")
			fmt.Fprintf(b, "\t\t\t\tName: %q,\n", f.Name)
			fmt.Fprintf(b, "\t\t\t\tKind: %s,\n", kindLiteral(f.Kind))
			if len(f.Flags) > 0 {
				fmt.Fprintf(b, "\t\t\t\tFlags: %s,\n", strings.Join(f.Flags, " | "))
			}
			if f.Default != "" {
				fmt.Fprintf(b, "\t\t\t\tDefault: %q,\n", f.Default)
			}
			if f.Cipher != "" {
				fmt.Fprintf(b, "\t\t\t\tCipher: %q,\n", f.Cipher)
			}
			fmt.Fprintf(b, "\t\t\t\tGet: func(m any) any { return %s },\n", getExpr(f.GoType, recv+"."+f.Name))
			fmt.Fprintf(b, "\t\t\t\tSet: func(m any, v any) { %s.%s = %s },\n", recv, f.Name, setExpr(f.GoType, "v"))
			fmt.Fprintf(b, "\t\t\t},\n")
		}
		fmt.Fprintf(b, "\t\t},\n")
	}

	if len(meta.Generics) > 0 {
		fmt.Fprintf(b, "\t\tGenerics: []*pal.GenericField{\n")
		for _, gen := range meta.Generics {
			fmt.Fprintf(b, "\t\t\t{\n")
			fmt.Fprintf(b, "\t\t\t\tName: %q,\n", gen.Name)
			fmt.Fprintf(b, "\t\t\t\tElem: %s,\n", kindLiteral(gen.Elem))
			if gen.SelfRef {
				fmt.Fprintf(b, "\t\t\t\tSelfRef: true,\n")
			}
			if gen.IsSet {
				fmt.Fprintf(b, "\t\t\t\tIsSet: true,\n")
			}
			if gen.SelfRef {
				fmt.Fprintf(b, "\t\t\t\tGet: func(m any) []any {\n")
				fmt.Fprintf(b, "\t\t\t\t\tout := make([]any, 0, len(%s.%s))\n", recv, gen.Name)
				fmt.Fprintf(b, "\t\t\t\t\tfor _, v := range %s.%s {\n", recv, gen.Name)
				fmt.Fprintf(b, "\t\t\t\t\t\tif v != nil && v.ID > 0 {\n")
				fmt.Fprintf(b, "\t\t\t\t\t\t\tout = append(out, v.ID)\n")
				fmt.Fprintf(b, "\t\t\t\t\t\t}\n\t\t\t\t\t}\n\t\t\t\t\treturn out\n\t\t\t\t},\n")
				fmt.Fprintf(b, "\t\t\t\tSet: func(m any, vs []any) {\n")
				fmt.Fprintf(b, "\t\t\t\t\tout := make([]*%s, len(vs))\n", meta.Name)
				fmt.Fprintf(b, "\t\t\t\t\tfor i, v := range vs {\n")
				fmt.Fprintf(b, "\t\t\t\t\t\tout[i] = &%s{ID: v.(int64)}\n", meta.Name)
				fmt.Fprintf(b, "\t\t\t\t\t}\n\t\t\t\t\t%s.%s = out\n\t\t\t\t},\n", recv, gen.Name)
			} else {
				fmt.Fprintf(b, "\t\t\t\tGet: func(m any) []any {\n")
				fmt.Fprintf(b, "\t\t\t\t\tout := make([]any, len(%s.%s))\n", recv, gen.Name)
				fmt.Fprintf(b, "\t\t\t\t\tfor i, v := range %s.%s {\n", recv, gen.Name)
				fmt.Fprintf(b, "\t\t\t\t\t\tout[i] = %s\n", getExpr(gen.ElemGoType, "v"))
				fmt.Fprintf(b, "\t\t\t\t\t}\n\t\t\t\t\treturn out\n\t\t\t\t},\n")
				fmt.Fprintf(b, "\t\t\t\tSet: func(m any, vs []any) {\n")
				fmt.Fprintf(b, "\t\t\t\t\tout := make([]%s, len(vs))\n", gen.ElemGoType)
				fmt.Fprintf(b, "\t\t\t\t\tfor i, v := range vs {\n")
				fmt.Fprintf(b, "\t\t\t\t\t\tout[i] = %s\n", setExpr(gen.ElemGoType, "v"))
				fmt.Fprintf(b, "\t\t\t\t\t}\n\t\t\t\t\t%s.%s = out\n\t\t\t\t},\n", recv, gen.Name)
			}
			fmt.Fprintf(b, "\t\t\t},\n")
		}
		fmt.Fprintf(b, "\t\t},\n")
	}

	if len(meta.Refs) > 0 {
		fmt.Fprintf(b, "\t\tRefs: []*pal.RefField{\n")
		for _, rf := range meta.Refs {
			fmt.Fprintf(b, "\t\t\t{\n")
			fmt.Fprintf(b, "\t\t\t\tName:   %q,\n", rf.Name)
			fmt.Fprintf(b, "\t\t\t\tTarget: %q,\n", rf.Target)
			fmt.Fprintf(b, "\t\t\t\tGet: func(m any) any {\n")
			fmt.Fprintf(b, "\t\t\t\t\tif %s.%s == nil {\n\t\t\t\t\t\treturn nil\n\t\t\t\t\t}\n", recv, rf.Name)
			fmt.Fprintf(b, "\t\t\t\t\treturn %s.%s\n\t\t\t\t},\n", recv, rf.Name)
			fmt.Fprintf(b, "\t\t\t\tSet: func(m any, v any) { %s.%s = v.(*%s) },\n", recv, rf.Name, rf.Target)
			fmt.Fprintf(b, "\t\t\t},\n")
		}
		fmt.Fprintf(b, "\t\t},\n")
	}

	if len(meta.Lists) > 0 {
		fmt.Fprintf(b, "\t\tLists: []*pal.ListField{\n")
		for _, lf := range meta.Lists {
			fmt.Fprintf(b, "\t\t\t{\n")
			fmt.Fprintf(b, "\t\t\t\tName:   %q,\n", lf.Name)
			fmt.Fprintf(b, "\t\t\t\tTarget: %q,\n", lf.Target)
			if lf.IsSet {
				fmt.Fprintf(b, "\t\t\t\tIsSet:  true,\n")
			}
			fmt.Fprintf(b, "\t\t\t\tGet: func(m any) []any {\n")
			fmt.Fprintf(b, "\t\t\t\t\tout := make([]any, len(%s.%s))\n", recv, lf.Name)
			fmt.Fprintf(b, "\t\t\t\t\tfor i, v := range %s.%s {\n", recv, lf.Name)
			fmt.Fprintf(b, "\t\t\t\t\t\tout[i] = v\n")
			fmt.Fprintf(b, "\t\t\t\t\t}\n\t\t\t\t\treturn out\n\t\t\t\t},\n")
			fmt.Fprintf(b, "\t\t\t\tAppend: func(m any, v any) { %s.%s = append(%s.%s, v.(*%s)) },\n",
				recv, lf.Name, recv, lf.Name, lf.Target)
			fmt.Fprintf(b, "\t\t\t},\n")
		}
		fmt.Fprintf(b, "\t\t},\n")
	}

	fmt.Fprintf(b, "\t}\n}\n\n")

	fmt.Fprintf(b, "func Register%s(r *pal.Registry) error { return r.Register(%sSchema()) }\n\n", meta.Name, meta.Name)

	fmt.Fprintf(b, "func Find%s(s *pal.Session, id int64, eager bool) (*%s, error) {\n", meta.Name, meta.Name)
	fmt.Fprintf(b, "\tm, err := s.Find(%q, id, eager)\n", meta.Name)
	fmt.Fprintf(b, "\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	fmt.Fprintf(b, "\treturn m.(*%s), nil\n}\n\n", meta.Name)

	fmt.Fprintf(b, "func FindAll%s(s *pal.Session, eager bool, ids ...int64) ([]*%s, error) {\n", meta.Name, meta.Name)
	fmt.Fprintf(b, "\tms, err := s.FindAll(%q, eager, ids...)\n", meta.Name)
	fmt.Fprintf(b, "\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	fmt.Fprintf(b, "\tout := make([]*%s, len(ms))\n", meta.Name)
	fmt.Fprintf(b, "\tfor i, m := range ms {\n\t\tout[i] = m.(*%s)\n\t}\n", meta.Name)
	fmt.Fprintf(b, "\treturn out, nil\n}\n\n")
}
