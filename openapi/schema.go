package openapi

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
)

var (
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
	uuidType     = reflect.TypeFor[uuid.UUID]()
)

// schemaGenerator converts Go types to schemas. Named struct types are
// collected as component schemas and referenced by $ref.
type schemaGenerator struct {
	schemas   openapi3.Schemas
	visited   map[reflect.Type]bool
	typeNames map[reflect.Type]string
	nameTypes map[string]reflect.Type
}

func newSchemaGenerator() *schemaGenerator {
	return &schemaGenerator{
		schemas:   make(openapi3.Schemas),
		visited:   make(map[reflect.Type]bool),
		typeNames: make(map[reflect.Type]string),
		nameTypes: make(map[string]reflect.Type),
	}
}

func (g *schemaGenerator) generate(t reflect.Type) *openapi3.SchemaRef {
	nullable := false
	if t.Kind() == reflect.Pointer {
		nullable = true
		t = t.Elem()
	}

	if t.Kind() == reflect.Struct && !isScalarStruct(t) {
		if name := g.schemaName(t); name != "" {
			if !g.visited[t] {
				g.visited[t] = true
				g.schemas[name] = g.structSchema(t).NewRef()
			}

			ref := openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
			if nullable {
				return (&openapi3.Schema{AllOf: openapi3.SchemaRefs{ref}, Nullable: true}).NewRef()
			}
			return ref
		}
	}

	schema := g.inline(t)
	if schema == nil {
		return nil
	}
	schema.Nullable = nullable
	return schema.NewRef()
}

func isScalarStruct(t reflect.Type) bool {
	return t == timeType || t == uuidType
}

func (g *schemaGenerator) inline(t reflect.Type) *openapi3.Schema {
	switch t {
	case timeType:
		return openapi3.NewDateTimeSchema()
	case durationType:
		return openapi3.NewStringSchema().WithFormat("duration")
	case uuidType:
		return openapi3.NewUUIDSchema()
	}

	switch t.Kind() {
	case reflect.Bool:
		return openapi3.NewBoolSchema()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Uint, reflect.Uint8, reflect.Uint16:
		return openapi3.NewIntegerSchema()
	case reflect.Int32, reflect.Uint32:
		return openapi3.NewInt32Schema()
	case reflect.Int64, reflect.Uint64:
		return openapi3.NewInt64Schema()
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema()
	case reflect.String:
		return openapi3.NewStringSchema()
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return openapi3.NewBytesSchema()
		}
		s := openapi3.NewArraySchema()
		s.Items = g.generate(t.Elem())
		return s
	case reflect.Map:
		s := openapi3.NewObjectSchema()
		if t.Key().Kind() == reflect.String {
			if item := g.generate(t.Elem()); item != nil {
				s.AdditionalProperties = openapi3.AdditionalProperties{Schema: item}
			}
		}
		return s
	case reflect.Struct:
		return g.structSchema(t)
	case reflect.Interface:
		return &openapi3.Schema{}
	}

	return nil
}

func (g *schemaGenerator) structSchema(t reflect.Type) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	g.collectFields(t, schema, false)
	return schema
}

// collectFields adds the JSON-visible fields of t. Fields of embedded
// pointer structs are optional.
func (g *schemaGenerator) collectFields(t reflect.Type, schema *openapi3.Schema, allOptional bool) {
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		name, omitempty := parseJSONTag(jsonTag)

		if field.Anonymous && name == "" {
			ft := field.Type
			isPtr := ft.Kind() == reflect.Pointer
			if isPtr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				g.collectFields(ft, schema, allOptional || isPtr)
				continue
			}
		}

		if name == "" {
			name = field.Name
		}

		ref := g.generate(field.Type)
		if ref == nil {
			continue
		}
		if ref.Value != nil {
			applyOpenAPITag(ref.Value, field.Tag.Get("openapi"))
		}

		schema.Properties[name] = ref
		if !omitempty && !allOptional && !strings.Contains(field.Tag.Get("validate"), "omitempty") {
			schema.Required = append(schema.Required, name)
		}
	}
}

func parseJSONTag(tag string) (string, bool) {
	name, rest, _ := strings.Cut(tag, ",")
	return name, strings.Contains(rest, "omitempty") || strings.Contains(rest, "omitzero")
}

// applyOpenAPITag applies an `openapi:"description=...,minimum=1"` struct
// tag to schema.
func applyOpenAPITag(schema *openapi3.Schema, tag string) {
	if tag == "" {
		return
	}

	for part := range strings.SplitSeq(tag, ",") {
		key, value, _ := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "description":
			schema.Description = value
		case "example":
			schema.Example = parseExampleValue(schema, value)
		case "format":
			schema.Format = value
		case "minimum":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				schema.Min = &v
			}
		case "maximum":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				schema.Max = &v
			}
		case "minLength":
			if v, err := strconv.ParseUint(value, 10, 64); err == nil {
				schema.MinLength = v
			}
		case "maxLength":
			if v, err := strconv.ParseUint(value, 10, 64); err == nil {
				schema.MaxLength = &v
			}
		case "pattern":
			schema.Pattern = value
		case "enum":
			for v := range strings.SplitSeq(value, "|") {
				schema.Enum = append(schema.Enum, parseExampleValue(schema, v))
			}
		case "deprecated":
			schema.Deprecated = true
		case "readOnly":
			schema.ReadOnly = true
		case "writeOnly":
			schema.WriteOnly = true
		case "title":
			schema.Title = value
		}
	}
}

func parseExampleValue(schema *openapi3.Schema, value string) any {
	switch {
	case schema.Type.Is(openapi3.TypeInteger):
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	case schema.Type.Is(openapi3.TypeNumber):
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	case schema.Type.Is(openapi3.TypeBoolean):
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return value
}

// schemaName returns a unique component name for t. A second type with
// the same simple name gets its package name as prefix, then a number.
func (g *schemaGenerator) schemaName(t reflect.Type) string {
	simple := sanitizeSchemaName(t.Name())
	if simple == "" || t.PkgPath() == "" {
		return ""
	}

	if name, ok := g.typeNames[t]; ok {
		return name
	}

	name := simple
	if existing, ok := g.nameTypes[name]; ok && existing != t {
		name = pkgPrefix(t.PkgPath()) + simple
		if existing, ok := g.nameTypes[name]; ok && existing != t {
			base := name
			for i := 2; ; i++ {
				candidate := base + strconv.Itoa(i)
				if _, ok := g.nameTypes[candidate]; !ok {
					name = candidate
					break
				}
			}
		}
	}

	g.typeNames[t] = name
	g.nameTypes[name] = t
	return name
}

func pkgPrefix(pkgPath string) string {
	if idx := strings.LastIndexByte(pkgPath, '/'); idx >= 0 {
		pkgPath = pkgPath[idx+1:]
	}
	if pkgPath == "" {
		return ""
	}
	pkgPath = strings.NewReplacer("-", "_", ".", "_").Replace(pkgPath)
	return strings.ToUpper(pkgPath[:1]) + pkgPath[1:]
}

// sanitizeSchemaName turns generic names such as "Page[[]pkg.User]" into
// "PageUserList".
func sanitizeSchemaName(name string) string {
	idx := strings.IndexByte(name, '[')
	if idx < 0 {
		return name
	}

	base := name[:idx]
	inner := name[idx+1 : len(name)-1]

	isList := strings.HasPrefix(inner, "[]")
	inner = strings.TrimPrefix(inner, "[]")
	if dot := strings.LastIndexByte(inner, '.'); dot >= 0 {
		inner = inner[dot+1:]
	}

	if isList {
		return base + inner + "List"
	}
	return base + inner
}
