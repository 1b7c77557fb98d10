package expect

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"reflect"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"

	"github.com/vitalvas/routeprobe/action"
	"github.com/vitalvas/routeprobe/dispatch"
	"github.com/vitalvas/routeprobe/pipeline"
)

// ParseError reports an expectation that cannot be built: an unknown
// handler, a wrong number of arguments or a malformed expression.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("expect: %s: %s", e.Input, e.Reason)
}

// ArgKind tells how an expected argument is compared.
type ArgKind int

const (
	// ArgLiteral compares the bound value with Value.
	ArgLiteral ArgKind = iota
	// ArgAny only checks that a value of Type was bound.
	ArgAny
	argIgnore
)

func (k ArgKind) String() string {
	switch k {
	case ArgLiteral:
		return "literal"
	case ArgAny:
		return "any"
	}
	return "ignore"
}

// Arg is one expected argument.
type Arg struct {
	Name  string
	Kind  ArgKind
	Value any
	Type  reflect.Type
	Param action.Param
}

// ExpectedCall is the handler and arguments a request should dispatch to.
// It is immutable; WithRouteValue returns a copy.
type ExpectedCall struct {
	handler     action.Identity
	entry       pipeline.Entry
	args        []Arg
	fixed       map[string]string
	routeValues map[string]string
}

// Handler returns the effective identity of the expected handler.
func (c *ExpectedCall) Handler() action.Identity {
	return c.handler
}

// Entry returns the route table entry of the expected handler.
func (c *ExpectedCall) Entry() pipeline.Entry {
	return c.entry
}

// Arguments returns the compared arguments in parameter order. Ignored
// arguments are left out.
func (c *ExpectedCall) Arguments() []Arg {
	out := make([]Arg, 0, len(c.args))
	for _, a := range c.args {
		if a.Kind != argIgnore {
			out = append(out, a)
		}
	}
	return out
}

// RouteValues returns the explicitly expected route values.
func (c *ExpectedCall) RouteValues() map[string]string {
	out := make(map[string]string, len(c.routeValues))
	maps.Copy(out, c.routeValues)
	return out
}

// WithRouteValue returns a copy that also expects the route value key. A
// fixed value the handler declares for key takes precedence over value.
func (c *ExpectedCall) WithRouteValue(key, value string) *ExpectedCall {
	out := *c
	out.args = append([]Arg(nil), c.args...)
	out.routeValues = c.RouteValues()
	if fixed, ok := c.fixed[key]; ok {
		value = fixed
	}
	out.routeValues[key] = value
	return &out
}

func (c *ExpectedCall) String() string {
	parts := make([]string, 0, len(c.args))
	for _, a := range c.args {
		switch a.Kind {
		case ArgLiteral:
			parts = append(parts, fmt.Sprintf("%s=%#v", a.Name, a.Value))
		case ArgAny:
			parts = append(parts, fmt.Sprintf("%s=any(%s)", a.Name, a.Type))
		default:
			parts = append(parts, a.Name+"=_")
		}
	}
	return fmt.Sprintf("%s(%s)", c.handler, strings.Join(parts, ", "))
}

// Call builds an expectation from a handler function or method value and
// positional arguments. Arguments are literals, Ignore(), AnyOf[T]() or
// Equal(v).
func Call(table *pipeline.Table, fn any, args ...any) (*ExpectedCall, error) {
	sym := action.FuncIdentity(fn)
	if sym.IsZero() {
		return nil, &ParseError{Input: fmt.Sprintf("%T", fn), Reason: "not a function"}
	}

	entries := table.LookupFunc(fn)
	if len(entries) == 0 {
		return nil, &ParseError{Input: sym.String(), Reason: "no route dispatches to this handler"}
	}
	return build(sym.String(), entries[0], args)
}

func build(input string, entry pipeline.Entry, args []any) (*ExpectedCall, error) {
	var params []action.Param
	fixed := map[string]string{}
	if entry.Action != nil {
		params = entry.Action.Params()
		fixed = entry.Action.RouteValues()
	}

	if len(args) != len(params) {
		return nil, &ParseError{
			Input:  input,
			Reason: fmt.Sprintf("%s takes %d arguments, %d given", entry.Handler, len(params), len(args)),
		}
	}

	call := &ExpectedCall{
		handler:     entry.Handler,
		entry:       entry,
		fixed:       fixed,
		routeValues: map[string]string{},
	}

	for i, p := range params {
		arg, err := newArg(p, args[i], fixed)
		if err != nil {
			return nil, &ParseError{Input: input, Reason: fmt.Sprintf("argument %s: %v", p.Name, err)}
		}
		call.args = append(call.args, arg)
	}

	return call, nil
}

func newArg(p action.Param, v any, fixed map[string]string) (Arg, error) {
	arg := Arg{Name: p.Name, Type: p.Type, Param: p}

	switch m := v.(type) {
	case ignoreMarker:
		arg.Kind = argIgnore
		return arg, nil
	case anyValue:
		arg.Kind = ArgAny
		arg.Type = m.typ
		if m.typ == nil {
			t, err := resolveType(m.name, p.Type)
			if err != nil {
				return Arg{}, err
			}
			arg.Type = t
		}
		return arg, nil
	case literal:
		v = m.v
	}

	if fv, ok := fixed[p.Name]; ok {
		v = fv
	}

	converted, err := action.ConvertValue(v, p.Type)
	if err != nil {
		return Arg{}, err
	}
	arg.Kind = ArgLiteral
	arg.Value = converted
	return arg, nil
}

// Request infers a request that should dispatch to the expected handler:
// the route's first method, its URL built from literal path arguments, and
// literal query, header, form and body arguments.
func (c *ExpectedCall) Request() (dispatch.Request, error) {
	route := c.entry.Route
	if route == nil {
		return dispatch.Request{}, errors.New("expect: expected call has no route")
	}

	literals := make(map[string]Arg)
	for _, a := range c.args {
		if a.Kind == ArgLiteral {
			literals[a.Param.Key] = a
		}
	}

	names, err := route.GetVarNames()
	if err != nil {
		return dispatch.Request{}, err
	}
	defaults := route.GetDefaults()
	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		value, ok := defaults[name]
		if a, found := literals[name]; found && isRouteSource(a.Param.Source) {
			s, err := toString(a.Value)
			if err != nil {
				return dispatch.Request{}, fmt.Errorf("expect: route variable %s: %w", name, err)
			}
			value, ok = s, true
		}
		if ok {
			pairs = append(pairs, name, value)
		}
	}

	u, err := route.URL(pairs...)
	if err != nil {
		return dispatch.Request{}, fmt.Errorf("expect: build url (route variables need literal values): %w", err)
	}

	method := "GET"
	if len(c.entry.Methods) > 0 {
		method = c.entry.Methods[0]
	}
	req := dispatch.NewRequest(method, u.String())

	form := url.Values{}
	for _, a := range c.args {
		if a.Kind != ArgLiteral {
			continue
		}
		switch a.Param.Source {
		case action.SourceQuery:
			values, err := queryValues(a)
			if err != nil {
				return dispatch.Request{}, err
			}
			for k, vs := range values {
				req = req.WithQuery(k, vs...)
			}
		case action.SourceRoute:
			if !slices.Contains(names, a.Param.Key) {
				s, err := toString(a.Value)
				if err != nil {
					return dispatch.Request{}, err
				}
				req = req.WithQuery(a.Param.Key, s)
			}
		case action.SourceHeader:
			s, err := toString(a.Value)
			if err != nil {
				return dispatch.Request{}, err
			}
			req = req.WithHeader(a.Param.Key, s)
		case action.SourceForm:
			vs, err := toStrings(a.Value)
			if err != nil {
				return dispatch.Request{}, err
			}
			form[a.Param.Key] = append(form[a.Param.Key], vs...)
		case action.SourceBody:
			switch b := a.Value.(type) {
			case string:
				req = req.WithBody("text/plain", []byte(b))
			case []byte:
				req = req.WithBody("application/octet-stream", b)
			default:
				req = req.WithJSON(b)
			}
		}
	}
	if len(form) > 0 {
		req = req.WithForm(form)
	}

	return req, nil
}

func isRouteSource(s action.Source) bool {
	return s == action.SourcePath || s == action.SourceRoute
}

func queryValues(a Arg) (url.Values, error) {
	rv := reflect.ValueOf(a.Value)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || isScalarStruct(rv.Type()) {
		vs, err := toStrings(a.Value)
		if err != nil {
			return nil, err
		}
		return url.Values{a.Param.Key: vs}, nil
	}

	fields := map[string]any{}
	if err := mapstructure.Decode(rv.Interface(), &fields); err != nil {
		return nil, fmt.Errorf("expect: query %s: %w", a.Name, err)
	}
	// mapstructure names fields by their Go name; remap to query tags.
	out := url.Values{}
	t := rv.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		key, _, _ := strings.Cut(f.Tag.Get("query"), ",")
		if key == "-" {
			continue
		}
		if key == "" {
			key = f.Name
		}
		vs, err := toStrings(fields[f.Name])
		if err != nil {
			return nil, fmt.Errorf("expect: query %s.%s: %w", a.Name, f.Name, err)
		}
		if len(vs) > 0 && !(len(vs) == 1 && rv.Field(i).IsZero()) {
			out[key] = vs
		}
	}
	return out, nil
}

func isScalarStruct(t reflect.Type) bool {
	_, ok := reflect.New(t).Interface().(interface{ MarshalText() ([]byte, error) })
	return ok
}

func toString(v any) (string, error) {
	if tm, ok := v.(interface{ MarshalText() ([]byte, error) }); ok {
		b, err := tm.MarshalText()
		return string(b), err
	}
	return cast.ToStringE(v)
}

func toStrings(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]string, 0, rv.Len())
		for i := range rv.Len() {
			s, err := toString(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}
	s, err := toString(v)
	if err != nil {
		return nil, err
	}
	return []string{s}, nil
}
