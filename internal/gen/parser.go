package gen

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"
	"strings"

	"github.com/mickamy/ormcoll/collection"
	"github.com/mickamy/ormcoll/internal/naming"
)

// FieldInfo holds parsed metadata for one column field.
type FieldInfo struct {
	Name       string // Go field name, e.g. "ID"
	Column     string // DB column name from `db:"id"` tag
	GoType     string // Go type as string, e.g. "int", "string", "time.Time"
	PrimaryKey bool   // true if tag contains "primaryKey"
}

// CollectionInfo holds parsed metadata for one field tagged with `coll`.
type CollectionInfo struct {
	Name      string           // Go field name, e.g. "Tags"
	GoType    string           // e.g. "[]string", "map[string]int", "[3]string"
	Shape     collection.Shape // from the first tag option
	ElemType  string           // element, or map value, Go type
	IndexType string           // map key Go type; "int" for lists and arrays
	Table     string
	Key       string
	Element   string
	Index     string
	ID        string
	Base      int
	Size      int
}

// StructInfo holds parsed metadata for the target struct.
type StructInfo struct {
	Name        string           // Go struct name, e.g. "User"
	Package     string           // Package name, e.g. "model"
	Fields      []FieldInfo      // Non-skipped db fields
	Collections []CollectionInfo // coll-tagged fields
	TableName   string           // Derived from Name; the caller may override it
	Imports     map[string]string // package name → import path of the source file
}

// PrimaryKeyField returns the primary key field, or an error if none or
// multiple are defined.
func (s *StructInfo) PrimaryKeyField() (*FieldInfo, error) {
	var pk *FieldInfo
	for i := range s.Fields {
		if s.Fields[i].PrimaryKey {
			if pk != nil {
				return nil, fmt.Errorf("multiple primary keys: %s and %s", pk.Name, s.Fields[i].Name)
			}
			pk = &s.Fields[i]
		}
	}
	if pk == nil {
		return nil, fmt.Errorf("no primary key defined for %s", s.Name)
	}
	return pk, nil
}

// Parse reads the Go file at path and returns StructInfo for every struct
// that has at least one column field.
func Parse(filePath string) ([]*StructInfo, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse file: %w", err)
	}

	pkg := file.Name.Name
	imports := fileImports(file)
	var (
		infos    []*StructInfo
		parseErr error
	)

	ast.Inspect(file, func(n ast.Node) bool {
		if parseErr != nil {
			return false
		}
		ts, ok := n.(*ast.TypeSpec)
		if !ok {
			return true
		}

		st, ok := ts.Type.(*ast.StructType)
		if !ok {
			return true
		}

		info := &StructInfo{
			Name:      ts.Name.Name,
			Package:   pkg,
			TableName: naming.TableName(ts.Name.Name),
			Imports:   imports,
		}
		if err := parseStructFields(info, st); err != nil {
			parseErr = fmt.Errorf("%s: %w", ts.Name.Name, err)
			return false
		}
		if len(info.Fields) == 0 {
			return true
		}

		infos = append(infos, info)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return infos, nil
}

// parseStructFields sorts the fields of st into columns and collections.
func parseStructFields(info *StructInfo, st *ast.StructType) error {
	for _, field := range st.Fields.List {
		if len(field.Names) == 0 || !field.Names[0].IsExported() {
			continue // embedded or unexported
		}
		tag := reflect.StructTag("")
		if field.Tag != nil {
			tag = reflect.StructTag(strings.Trim(field.Tag.Value, "`"))
		}
		if spec, ok := tag.Lookup("coll"); ok {
			ci, err := parseCollection(info.Name, field, spec)
			if err != nil {
				return err
			}
			info.Collections = append(info.Collections, ci)
			continue
		}
		if fi, ok := parseField(field, tag); ok {
			info.Fields = append(info.Fields, fi)
		}
	}
	return nil
}

func parseField(field *ast.Field, tag reflect.StructTag) (FieldInfo, bool) {
	name := field.Names[0].Name

	// Defaults: column inferred from field name, ID field is primary key.
	column := naming.CamelToSnake(name)
	primaryKey := name == "ID"

	if dbTag, ok := tag.Lookup("db"); ok {
		if dbTag == "-" {
			return FieldInfo{}, false
		}
		parts := strings.Split(dbTag, ",")
		if parts[0] != "" {
			column = parts[0]
		}
		for _, opt := range parts[1:] {
			if opt == "primaryKey" {
				primaryKey = true
			}
		}
	}

	return FieldInfo{
		Name:       name,
		Column:     column,
		GoType:     typeToString(field.Type),
		PrimaryKey: primaryKey,
	}, true
}

// parseCollection reads a `coll:"<shape>[,option:value...]"` tag.
func parseCollection(owner string, field *ast.Field, spec string) (CollectionInfo, error) {
	name := field.Names[0].Name
	parts := strings.Split(spec, ",")
	shape, err := collection.ParseShape(strings.TrimSpace(parts[0]))
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("field %s: %w", name, err)
	}

	ci := CollectionInfo{
		Name:    name,
		GoType:  typeToString(field.Type),
		Shape:   shape,
		Table:   naming.CollectionTable(owner, name),
		Key:     naming.ForeignKey(owner),
		Element: naming.Element(name),
	}
	if err := ci.setTypes(field.Type); err != nil {
		return CollectionInfo{}, fmt.Errorf("field %s: %w", name, err)
	}
	switch shape {
	case collection.List, collection.Array:
		ci.Index = "idx"
	case collection.Map:
		ci.Index = "key"
	case collection.Bag, collection.Set:
	}

	for _, opt := range parts[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(opt), ":")
		if !ok || v == "" {
			return CollectionInfo{}, fmt.Errorf("field %s: malformed option %q", name, opt)
		}
		switch k {
		case "table":
			ci.Table = v
		case "key":
			ci.Key = v
		case "element":
			ci.Element = v
		case "index":
			ci.Index = v
		case "id":
			ci.ID = v
		case "base", "size":
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return CollectionInfo{}, fmt.Errorf("field %s: %s must be a non-negative integer, got %q", name, k, v)
			}
			if k == "base" {
				ci.Base = n
			} else {
				ci.Size = n
			}
		default:
			return CollectionInfo{}, fmt.Errorf("field %s: unknown option %q", name, k)
		}
	}

	if ci.ID != "" && shape != collection.Bag {
		return CollectionInfo{}, fmt.Errorf("field %s: id column on a %s", name, shape)
	}
	if shape == collection.Array && ci.Size == 0 {
		return CollectionInfo{}, fmt.Errorf("field %s: array without size", name)
	}
	return ci, nil
}

// setTypes derives element and index types from the field's Go type and
// checks that the type can hold the shape.
func (ci *CollectionInfo) setTypes(expr ast.Expr) error {
	switch t := expr.(type) {
	case *ast.ArrayType:
		if ci.Shape == collection.Map {
			return fmt.Errorf("map collection of type %s", ci.GoType)
		}
		ci.ElemType = typeToString(t.Elt)
		if ci.Shape.Indexed() {
			ci.IndexType = "int"
		}
		if t.Len == nil {
			return nil
		}
		if ci.Shape != collection.Array {
			return fmt.Errorf("%s collection of fixed-size type %s", ci.Shape, ci.GoType)
		}
		lit, ok := t.Len.(*ast.BasicLit)
		if !ok || lit.Kind != token.INT {
			return fmt.Errorf("array length of %s is not a literal", ci.GoType)
		}
		n, err := strconv.Atoi(lit.Value)
		if err != nil {
			return fmt.Errorf("array length of %s: %w", ci.GoType, err)
		}
		ci.Size = n
		return nil
	case *ast.MapType:
		if ci.Shape != collection.Map {
			return fmt.Errorf("%s collection of type %s", ci.Shape, ci.GoType)
		}
		ci.IndexType = typeToString(t.Key)
		ci.ElemType = typeToString(t.Value)
		return nil
	default:
		return fmt.Errorf("collection of non-collection type %s", ci.GoType)
	}
}

// fileImports maps the name each import is referred to by to its path.
func fileImports(file *ast.File) map[string]string {
	imports := make(map[string]string, len(file.Imports))
	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := path[strings.LastIndex(path, "/")+1:]
		if spec.Name != nil {
			name = spec.Name.Name
		}
		imports[name] = path
	}
	return imports
}

func typeToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		return typeToString(t.X) + "." + t.Sel.Name
	case *ast.StarExpr:
		return "*" + typeToString(t.X)
	case *ast.BasicLit:
		return t.Value
	case *ast.ArrayType:
		if t.Len == nil {
			return "[]" + typeToString(t.Elt)
		}
		return fmt.Sprintf("[%s]%s", typeToString(t.Len), typeToString(t.Elt))
	case *ast.MapType:
		return fmt.Sprintf("map[%s]%s", typeToString(t.Key), typeToString(t.Value))
	default:
		return fmt.Sprintf("%T", expr)
	}
}
