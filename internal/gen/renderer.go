package gen

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"unicode"

	"github.com/mickamy/ormcoll/collection"
	"github.com/mickamy/ormcoll/internal/naming"
	"github.com/mickamy/ormcoll/orm"
)

// RenderOption controls the output of RenderFile.
type RenderOption struct {
	DestPkg      string // output package name (empty = same as source)
	SourceImport string // import path for source package (required when DestPkg is set)
}

// Render generates the Go source code for a single StructInfo.
// The returned bytes are formatted by gofmt.
func Render(info *StructInfo) ([]byte, error) {
	return RenderFile([]*StructInfo{info}, RenderOption{})
}

// RenderFile generates a single Go source file for all given StructInfos.
// The returned bytes are formatted by gofmt.
func RenderFile(infos []*StructInfo, opt RenderOption) ([]byte, error) {
	if len(infos) == 0 {
		return nil, errors.New("no structs to render")
	}
	if opt.DestPkg != "" && opt.SourceImport == "" {
		return nil, errors.New("destination package requires the source import path")
	}

	pkg := opt.DestPkg
	if pkg == "" {
		pkg = infos[0].Package
	}

	typePrefix := ""
	if opt.SourceImport != "" {
		// e.g. "github.com/example/model" → "model."
		parts := strings.Split(opt.SourceImport, "/")
		typePrefix = parts[len(parts)-1] + "."
	}

	structs := make([]templateData, 0, len(infos))
	used := make(map[string]string)

	for _, info := range infos {
		pk, err := info.PrimaryKeyField()
		if err != nil {
			return nil, err
		}

		fields := make([]FieldInfo, len(info.Fields))
		for i, f := range info.Fields {
			f.GoType = qualify(f.GoType, typePrefix)
			fields[i] = f
			collectImports(used, info.Imports, f.GoType)
		}

		colls := make([]collectionTemplateData, 0, len(info.Collections))
		for _, c := range info.Collections {
			if err := validateCollection(info, c); err != nil {
				return nil, err
			}
			prefix := info.Name + c.Name
			d := collectionTemplateData{
				CollectionInfo: c,
				RoleVar:        prefix + "Role",
				TableVar:       prefix + "Table",
				PreloadFunc:    "preload" + prefix,
				ShapeConst:     shapeConst(c.Shape),
			}
			d.ElemType = qualify(c.ElemType, typePrefix)
			d.IndexType = qualify(c.IndexType, typePrefix)
			collectImports(used, info.Imports, d.ElemType, d.IndexType)
			colls = append(colls, d)
		}

		structs = append(structs, templateData{
			Entity:      info.Name,
			TypeName:    typePrefix + info.Name,
			TableName:   info.TableName,
			FactoryName: naming.SnakeToCamel(info.TableName),
			PK:          pk,
			Fields:      fields,
			ColumnsVar:  unexportedName(naming.SnakeToCamel(info.TableName) + "Columns"),
			MapFunc:     "map" + info.Name,
			KeyFunc:     unexportedName(info.Name + "Key"),
			Collections: colls,
		})
	}

	fileData := fileTemplateData{
		Package:      pkg,
		SourceImport: opt.SourceImport,
		ExtraImports: sortedImports(used),
		Structs:      structs,
	}

	var buf bytes.Buffer
	if err := fileTmpl.Execute(&buf, fileData); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("gofmt: %w", err)
	}
	return src, nil
}

type fileTemplateData struct {
	Package      string
	SourceImport string
	ExtraImports []string
	Structs      []templateData
}

type templateData struct {
	Entity      string // owner entity name, e.g. "User"
	TypeName    string // "model.User" or "User"
	TableName   string
	FactoryName string
	PK          *FieldInfo
	Fields      []FieldInfo
	ColumnsVar  string
	MapFunc     string
	KeyFunc     string
	Collections []collectionTemplateData
}

type collectionTemplateData struct {
	CollectionInfo
	RoleVar     string // "UserTagsRole"
	TableVar    string // "UserTagsTable"
	PreloadFunc string // "preloadUserTags"
	ShapeConst  string // "Set"
}

func (d collectionTemplateData) IsMap() bool   { return d.Shape == collection.Map }
func (d collectionTemplateData) IsArray() bool { return d.Shape == collection.Array }

// validateCollection checks c against the rules the runtime applies to
// roles and collection tables.
func validateCollection(info *StructInfo, c CollectionInfo) error {
	role := &collection.Role{
		Name:      info.Name + "." + c.Name,
		Owner:     info.Name,
		Shape:     c.Shape,
		IDColumn:  c.ID,
		BaseIndex: c.Base,
		Size:      c.Size,
	}
	if err := role.Validate(); err != nil {
		return err //nolint:wrapcheck // names the role
	}
	table := orm.CollectionTable{Table: c.Table, Key: c.Key, Element: c.Element, Index: c.Index, ID: c.ID}
	return table.Validate(role) //nolint:wrapcheck // names the role
}

func shapeConst(s collection.Shape) string {
	name := s.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

var builtinTypes = map[string]bool{
	"bool": true, "string": true, "byte": true, "rune": true, "any": true, "error": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float64": true,
}

// qualify prefixes the source package's own named types with prefix, for
// code rendered into another package.
func qualify(goType, prefix string) string {
	if prefix == "" || goType == "" {
		return goType
	}
	switch {
	case strings.HasPrefix(goType, "*"):
		return "*" + qualify(goType[1:], prefix)
	case strings.HasPrefix(goType, "[]"):
		return "[]" + qualify(goType[2:], prefix)
	case strings.Contains(goType, "."), builtinTypes[goType]:
		return goType
	}
	if r := []rune(goType)[0]; !unicode.IsUpper(r) {
		return goType
	}
	return prefix + goType
}

var selectorPattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\.`)

// collectImports records the import path of every package referenced by
// goTypes.
func collectImports(used, imports map[string]string, goTypes ...string) {
	for _, t := range goTypes {
		for _, m := range selectorPattern.FindAllStringSubmatch(t, -1) {
			if path, ok := imports[m[1]]; ok {
				used[m[1]] = path
			}
		}
	}
}

func sortedImports(used map[string]string) []string {
	out := make([]string, 0, len(used))
	for _, path := range used {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func unexportedName(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

var funcMap = template.FuncMap{
	"quote": func(s string) string {
		return `"` + s + `"`
	},
}

var fileTmpl = template.Must(template.New("gen").Funcs(funcMap).Parse(fileTemplate))

const fileTemplate = `// Code generated by ormcoll; DO NOT EDIT.
package {{.Package}}

import (
{{- if .ExtraImports}}
{{- range .ExtraImports}}
	"{{.}}"
{{- end}}
{{end}}
	"github.com/mickamy/ormcoll/collection"
	"github.com/mickamy/ormcoll/orm"
	{{- if .SourceImport}}
	"{{.SourceImport}}"
	{{- end}}
)
{{range .Structs}}{{$s := .}}
// {{.FactoryName}} returns a new Query for the {{.TableName}} table.
func {{.FactoryName}}(db orm.Querier) *orm.Query[{{.TypeName}}] {
	q := orm.NewQuery[{{.TypeName}}](
		db, orm.ResolveTableName[{{.TypeName}}]("{{.TableName}}"), {{.ColumnsVar}}, "{{.PK.Column}}", {{.MapFunc}},
	).Owner("{{.Entity}}", {{.KeyFunc}})
	{{- range .Collections}}
	q.RegisterCollection("{{.Name}}", orm.CollectionFetch[{{$s.TypeName}}]{
		Role: {{.RoleVar}}, Table: {{.TableVar}}, Assign: {{.PreloadFunc}},
	})
	{{- end}}
	return q
}

var {{.ColumnsVar}} = []string{ {{- range $i, $f := .Fields}}{{if $i}}, {{end}}{{quote $f.Column}}{{end -}} }

func {{.MapFunc}}(row collection.Row) ({{.TypeName}}, error) {
	var (
		v   {{.TypeName}}
		err error
	)
	{{- range $i, $f := .Fields}}
	if v.{{$f.Name}}, err = orm.Value[{{$f.GoType}}](row, {{$i}}); err != nil {
		return v, err
	}
	{{- end}}
	return v, nil
}

func {{.KeyFunc}}(v {{.TypeName}}) any { return v.{{.PK.Name}} }
{{- range .Collections}}

// {{.RoleVar}} describes the {{.Name}} collection of {{$s.Entity}}.
var {{.RoleVar}} = &collection.Role{
	Name:        "{{$s.Entity}}.{{.Name}}",
	Owner:       "{{$s.Entity}}",
	Shape:       collection.{{.ShapeConst}},
	ElementType: "{{.ElemType}}",
	{{- if .IndexType}}
	IndexType:   "{{.IndexType}}",
	{{- end}}
	{{- if .ID}}
	IDColumn:    "{{.ID}}",
	{{- end}}
	KeyColumns:  []string{"{{.Key}}"},
	{{- if .Base}}
	BaseIndex:   {{.Base}},
	{{- end}}
	{{- if .Size}}
	Size:        {{.Size}},
	{{- end}}
}

// {{.TableVar}} is the table storing {{.RoleVar}}.
var {{.TableVar}} = orm.CollectionTable{
	Table:   "{{.Table}}",
	Key:     "{{.Key}}",
	Element: "{{.Element}}",
	{{- if .Index}}
	Index:   "{{.Index}}",
	{{- end}}
	{{- if .ID}}
	ID:      "{{.ID}}",
	OrderBy: "{{.ID}}",
	{{- end}}
}

func {{.PreloadFunc}}(s *collection.Session, results []{{$s.TypeName}}) error {
	{{- if .IsMap}}
	return orm.AssignEntries[{{$s.TypeName}}, {{.IndexType}}, {{.ElemType}}]({{.RoleVar}}, {{$s.KeyFunc}}, func(v *{{$s.TypeName}}, m map[{{.IndexType}}]{{.ElemType}}) {
		v.{{.Name}} = m
	})(s, results)
	{{- else if .IsArray}}
	return orm.AssignElements[{{$s.TypeName}}, {{.ElemType}}]({{.RoleVar}}, {{$s.KeyFunc}}, func(v *{{$s.TypeName}}, elems []{{.ElemType}}) {
		copy(v.{{.Name}}[:], elems)
	})(s, results)
	{{- else}}
	return orm.AssignElements[{{$s.TypeName}}, {{.ElemType}}]({{.RoleVar}}, {{$s.KeyFunc}}, func(v *{{$s.TypeName}}, elems []{{.ElemType}}) {
		v.{{.Name}} = elems
	})(s, results)
	{{- end}}
}
{{- end}}
{{end}}`
