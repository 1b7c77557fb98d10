package openapi

import (
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/vitalvas/routeprobe/action"
	"github.com/vitalvas/routeprobe/mux"
	"github.com/vitalvas/routeprobe/pipeline"
)

// macroSchemas maps route variable macros to schemas.
var macroSchemas = map[string]func() *openapi3.Schema{
	"uuid":   openapi3.NewUUIDSchema,
	"int":    openapi3.NewIntegerSchema,
	"uint":   func() *openapi3.Schema { return openapi3.NewIntegerSchema().WithMin(0) },
	"float":  openapi3.NewFloat64Schema,
	"bool":   openapi3.NewBoolSchema,
	"date":   func() *openapi3.Schema { return openapi3.NewStringSchema().WithFormat("date") },
	"domain": func() *openapi3.Schema { return openapi3.NewStringSchema().WithFormat("hostname") },
}

// Export builds an OpenAPI 3 document describing table. Prefix routes and
// routes without a path are left out; routes without methods are listed
// under GET with the x-any-method extension.
func Export(table *pipeline.Table, info openapi3.Info) *openapi3.T {
	gen := newSchemaGenerator()
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &info,
		Paths:   openapi3.NewPaths(),
	}

	used := make(map[string]int)
	tags := make(map[string]struct{})

	for _, e := range table.Entries() {
		if e.Template == "" || e.Prefix {
			continue
		}

		path, pathParams := parsePath(e.Route)
		op := buildOperation(gen, e, pathParams)
		for _, tag := range op.Tags {
			tags[tag] = struct{}{}
		}

		methods := e.Methods
		if len(methods) == 0 {
			methods = []string{http.MethodGet}
			if op.Extensions == nil {
				op.Extensions = make(map[string]any)
			}
			op.Extensions["x-any-method"] = true
		}
		for _, m := range methods {
			// operation ids must be unique per method
			cp := *op
			cp.OperationID = uniqueID(used, operationID(e))
			doc.AddOperation(path, m, &cp)
		}
	}

	if len(gen.schemas) > 0 {
		doc.Components = &openapi3.Components{Schemas: gen.schemas}
	}

	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		doc.Tags = append(doc.Tags, &openapi3.Tag{Name: name})
	}

	return doc
}

func operationID(e pipeline.Entry) string {
	if e.Name != "" {
		return e.Name
	}
	return e.Handler.String()
}

func uniqueID(used map[string]int, id string) string {
	used[id]++
	if n := used[id]; n > 1 {
		return id + "_" + strconv.Itoa(n)
	}
	return id
}

// parsePath converts a route template such as "/items/{id:int}" to
// "/items/{id}" and returns a path parameter per variable.
func parsePath(route *mux.Route) (string, map[string]*openapi3.Parameter) {
	tpl, _ := route.GetPathTemplate()
	patterns := route.GetVarPatterns()
	params := make(map[string]*openapi3.Parameter)

	var b strings.Builder
	depth, start := 0, 0
	for i, c := range tpl {
		switch c {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 {
				name, _, _ := strings.Cut(tpl[start+1:i], ":")
				b.WriteString("{" + name + "}")
				params[name] = openapi3.NewPathParameter(name).WithSchema(varSchema(patterns[name]))
			}
		default:
			if depth == 0 {
				b.WriteRune(c)
			}
		}
	}

	return b.String(), params
}

func varSchema(pattern string) *openapi3.Schema {
	if pattern == "" {
		return openapi3.NewStringSchema()
	}
	if fn, ok := macroSchemas[pattern]; ok {
		return fn()
	}
	if mux.IsMacro(pattern) {
		return openapi3.NewStringSchema()
	}
	return openapi3.NewStringSchema().WithPattern("^" + pattern + "$")
}

func buildOperation(gen *schemaGenerator, e pipeline.Entry, pathParams map[string]*openapi3.Parameter) *openapi3.Operation {
	op := openapi3.NewOperation()
	if e.Handler.Controller != "" {
		op.Tags = []string{e.Handler.Controller}
	}
	op.Summary = e.Handler.String()

	if tokens := e.Route.GetDataTokens(); len(tokens) > 0 {
		op.Extensions = map[string]any{"x-data-tokens": tokens}
	}

	seen := make(map[string]bool)
	var form *openapi3.Schema

	if e.Action != nil {
		for _, p := range e.Action.Params() {
			switch p.Source {
			case action.SourcePath:
				seen[p.Key] = true
				op.AddParameter(typedParam(gen, openapi3.NewPathParameter(p.Key), p))
			case action.SourceRoute:
				if _, ok := pathParams[p.Key]; ok {
					seen[p.Key] = true
					op.AddParameter(typedParam(gen, openapi3.NewPathParameter(p.Key), p))
				} else {
					op.AddParameter(typedParam(gen, openapi3.NewQueryParameter(p.Key), p))
				}
			case action.SourceQuery:
				op.AddParameter(typedParam(gen, openapi3.NewQueryParameter(p.Key), p))
			case action.SourceHeader:
				op.AddParameter(typedParam(gen, openapi3.NewHeaderParameter(p.Key), p))
			case action.SourceForm:
				if form == nil {
					form = openapi3.NewObjectSchema()
				}
				form.Properties[p.Key] = gen.generate(p.Type)
				if !p.Optional && !p.HasDefault() {
					form.Required = append(form.Required, p.Key)
				}
			case action.SourceBody:
				body := openapi3.NewRequestBody().WithRequired(!p.Optional)
				op.RequestBody = &openapi3.RequestBodyRef{Value: body.WithContent(bodyContent(gen, e.Action, p))}
			}
		}
	}

	if form != nil && op.RequestBody == nil {
		body := openapi3.NewRequestBody().WithRequired(len(form.Required) > 0).WithFormDataSchema(form)
		op.RequestBody = &openapi3.RequestBodyRef{Value: body}
	}

	names := make([]string, 0, len(pathParams))
	for name := range pathParams {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if !seen[name] {
			op.AddParameter(pathParams[name])
		}
	}

	op.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("OK")}),
	)

	return op
}

func typedParam(gen *schemaGenerator, param *openapi3.Parameter, p action.Param) *openapi3.Parameter {
	ref := gen.generate(p.Type)
	if ref == nil {
		ref = openapi3.NewStringSchema().NewRef()
	}
	param.Schema = ref
	if param.In != openapi3.ParameterInPath {
		param.Required = !p.Optional && !p.HasDefault()
	}
	if p.HasDefault() && ref.Value != nil {
		ref.Value.Default = p.Default
	}
	return param
}

func bodyContent(gen *schemaGenerator, a *action.Action, p action.Param) openapi3.Content {
	types := []string{"application/json"}
	for _, f := range a.Filters() {
		if c, ok := f.(*action.ConsumesFilter); ok {
			types = c.ContentTypes()
		}
	}

	ref := gen.generate(p.Type)
	if p.Type == reflect.TypeFor[[]byte]() || p.Type == reflect.TypeFor[string]() {
		ref = openapi3.NewBytesSchema().NewRef()
	}

	content := openapi3.NewContent()
	for _, t := range types {
		content[t] = openapi3.NewMediaType().WithSchemaRef(ref)
	}
	return content
}
