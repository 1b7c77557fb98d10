package openapi

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/vitalvas/routeprobe/action"
	"github.com/vitalvas/routeprobe/mux"
	"github.com/vitalvas/routeprobe/pipeline"
)

// OperationIDToken is the data token holding an imported operation's
// operationId.
const OperationIDToken = "operationId"

// Identity derives a handler identity from an operationId. "Items.Show"
// splits at the last dot; otherwise the first tag is the controller.
func Identity(op *openapi3.Operation) action.Identity {
	if i := strings.LastIndexByte(op.OperationID, '.'); i > 0 && i < len(op.OperationID)-1 {
		return action.Identity{Controller: op.OperationID[:i], Action: op.OperationID[i+1:]}
	}
	id := action.Identity{Action: op.OperationID}
	if len(op.Tags) > 0 {
		id.Controller = op.Tags[0]
	}
	return id
}

// Registrar returns a registrar adding one route per operation in doc.
// Operations found in handlers by operationId dispatch to that action;
// all others get an action declared from the operation's parameters and
// request body. Operations without an operationId are skipped.
func Registrar(doc *openapi3.T, handlers map[string]*action.Action) pipeline.RouteRegistrar {
	return pipeline.RegistrarFunc(func(r *mux.Router) {
		if doc == nil || doc.Paths == nil {
			return
		}

		items := doc.Paths.Map()
		paths := make([]string, 0, len(items))
		for path := range items {
			paths = append(paths, path)
		}
		slices.Sort(paths)

		for _, path := range paths {
			item := items[path]

			ops := item.Operations()
			methods := make([]string, 0, len(ops))
			for m := range ops {
				methods = append(methods, m)
			}
			slices.Sort(methods)

			for _, method := range methods {
				op := ops[method]
				if op.OperationID == "" {
					continue
				}

				h, ok := handlers[op.OperationID]
				if !ok {
					h = Declare(item, op)
				}

				r.Handle(path, h).
					Methods(method).
					Name(op.OperationID).
					DataToken(OperationIDToken, op.OperationID)
			}
		}
	})
}

// Declare builds a declared action for op. Path-level parameters are
// merged with the operation's, the operation winning on conflicts.
func Declare(item *openapi3.PathItem, op *openapi3.Operation) *action.Action {
	var opts []action.Option

	params := make(map[string]*openapi3.Parameter)
	var order []string
	add := func(refs openapi3.Parameters) {
		for _, ref := range refs {
			if ref == nil || ref.Value == nil {
				continue
			}
			key := ref.Value.In + ":" + ref.Value.Name
			if _, seen := params[key]; !seen {
				order = append(order, key)
			}
			params[key] = ref.Value
		}
	}
	if item != nil {
		add(item.Parameters)
	}
	add(op.Parameters)

	for _, key := range order {
		if opt, ok := paramOption(params[key]); ok {
			opts = append(opts, opt)
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		opts = append(opts, bodyOptions(op.RequestBody.Value)...)
	}

	return action.Declare(Identity(op), opts...)
}

func paramOption(p *openapi3.Parameter) (action.Option, bool) {
	var src action.Source
	switch p.In {
	case openapi3.ParameterInPath:
		src = action.SourcePath
	case openapi3.ParameterInQuery:
		src = action.SourceQuery
	case openapi3.ParameterInHeader:
		src = action.SourceHeader
	default:
		return nil, false
	}

	var schema *openapi3.Schema
	if p.Schema != nil {
		schema = p.Schema.Value
	}

	popts := []action.ParamOption{action.OfType(goType(schema))}
	if !p.Required {
		popts = append(popts, action.Optional())
	}
	if rules := validationRules(schema, !p.Required); rules != "" {
		popts = append(popts, action.Validate(rules))
	}
	if schema != nil && schema.Default != nil && !p.Required {
		popts = append(popts, action.Default(schema.Default))
	}

	return action.Declared(p.Name, src, popts...), true
}

func bodyOptions(body *openapi3.RequestBody) []action.Option {
	var types []string
	for ct := range body.Content {
		types = append(types, ct)
	}
	slices.Sort(types)

	var opts []action.Option
	if len(types) > 0 {
		opts = append(opts, action.Filters(action.Consumes(types...)))
	}

	if form := body.Content.Get("application/x-www-form-urlencoded"); form != nil && form.Schema != nil && form.Schema.Value != nil {
		s := form.Schema.Value
		names := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			prop := s.Properties[name].Value
			required := slices.Contains(s.Required, name)
			popts := []action.ParamOption{action.OfType(goType(prop))}
			if !required {
				popts = append(popts, action.Optional())
			}
			if rules := validationRules(prop, !required); rules != "" {
				popts = append(popts, action.Validate(rules))
			}
			opts = append(opts, action.Form(name, popts...))
		}
		return opts
	}

	var schema *openapi3.Schema
	if mt := body.Content.Get("application/json"); mt != nil && mt.Schema != nil {
		schema = mt.Schema.Value
	}
	t := goType(schema)
	if schema == nil {
		t = reflect.TypeFor[[]byte]()
	}

	popts := []action.ParamOption{action.OfType(t)}
	if !body.Required {
		popts = append(popts, action.Optional())
	}
	return append(opts, action.Body("body", popts...))
}

// goType maps a schema to the Go type its values bind to.
func goType(s *openapi3.Schema) reflect.Type {
	if s == nil {
		return reflect.TypeFor[string]()
	}

	switch {
	case s.Type.Is(openapi3.TypeInteger):
		switch s.Format {
		case "int32":
			return reflect.TypeFor[int32]()
		case "int64":
			return reflect.TypeFor[int64]()
		}
		return reflect.TypeFor[int]()
	case s.Type.Is(openapi3.TypeNumber):
		if s.Format == "float" {
			return reflect.TypeFor[float32]()
		}
		return reflect.TypeFor[float64]()
	case s.Type.Is(openapi3.TypeBoolean):
		return reflect.TypeFor[bool]()
	case s.Type.Is(openapi3.TypeArray):
		var items *openapi3.Schema
		if s.Items != nil {
			items = s.Items.Value
		}
		return reflect.SliceOf(goType(items))
	case s.Type.Is(openapi3.TypeObject):
		return reflect.TypeFor[map[string]any]()
	case s.Type.Is(openapi3.TypeString):
		switch s.Format {
		case "date-time":
			return timeType
		case "uuid":
			return uuidType
		case "duration":
			return durationType
		}
		return reflect.TypeFor[string]()
	}
	return reflect.TypeFor[string]()
}

// validationRules turns schema constraints into validator rules.
func validationRules(s *openapi3.Schema, optional bool) string {
	if s == nil {
		return ""
	}

	var rules []string
	numeric := s.Type.Is(openapi3.TypeInteger) || s.Type.Is(openapi3.TypeNumber)
	if numeric {
		if s.Min != nil {
			op := "gte"
			if s.ExclusiveMin {
				op = "gt"
			}
			rules = append(rules, op+"="+formatNumber(*s.Min))
		}
		if s.Max != nil {
			op := "lte"
			if s.ExclusiveMax {
				op = "lt"
			}
			rules = append(rules, op+"="+formatNumber(*s.Max))
		}
	} else {
		if s.MinLength > 0 {
			rules = append(rules, "min="+strconv.FormatUint(s.MinLength, 10))
		}
		if s.MaxLength != nil {
			rules = append(rules, "max="+strconv.FormatUint(*s.MaxLength, 10))
		}
	}

	if len(s.Enum) > 0 && (numeric || s.Type.Is(openapi3.TypeString)) {
		values := make([]string, len(s.Enum))
		for i, v := range s.Enum {
			values[i] = fmt.Sprint(v)
		}
		rules = append(rules, "oneof="+strings.Join(values, " "))
	}

	if len(rules) == 0 {
		return ""
	}
	if optional {
		rules = append([]string{"omitempty"}, rules...)
	}
	return strings.Join(rules, ",")
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
