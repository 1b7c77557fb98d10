package action

import (
	"fmt"
	"reflect"
)

// Source is where the binder reads a parameter value from.
type Source int

const (
	// SourcePath reads a route variable, falling back to route defaults.
	SourcePath Source = iota
	// SourceQuery reads the query string. A struct parameter binds the
	// whole query string.
	SourceQuery
	// SourceHeader reads a request header.
	SourceHeader
	// SourceForm reads a form field from the body or the query string.
	SourceForm
	// SourceBody decodes the request body according to its content type.
	SourceBody
	// SourceRoute reads a route variable, then route defaults, then the
	// query string.
	SourceRoute
)

var sourceNames = map[Source]string{
	SourcePath:   "path",
	SourceQuery:  "query",
	SourceHeader: "header",
	SourceForm:   "form",
	SourceBody:   "body",
	SourceRoute:  "route",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// ParseSource returns the source with the given name.
func ParseSource(name string) (Source, error) {
	for s, n := range sourceNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("action: unknown parameter source %q", name)
}

// Param describes one handler argument.
type Param struct {
	// Name is the argument name used in bound arguments and expectations.
	Name string
	// Key is the request key the value is read from. Defaults to Name.
	Key string
	// Source is where the value is read from.
	Source Source
	// Type is the Go type of the argument.
	Type reflect.Type
	// Optional arguments bind their zero value when absent.
	Optional bool
	// Rules is a validator tag applied to the bound value.
	Rules string
	// Default is bound when the value is absent. It is converted to Type.
	Default any

	hasDefault bool
	binder     Binder
}

// HasDefault reports whether a default value was declared.
func (p Param) HasDefault() bool {
	return p.hasDefault
}

// ParamOption configures a Param.
type ParamOption func(*Param)

// From reads the parameter from key instead of its name.
func From(key string) ParamOption {
	return func(p *Param) {
		p.Key = key
	}
}

// Optional binds the zero value when the parameter is absent.
func Optional() ParamOption {
	return func(p *Param) {
		p.Optional = true
	}
}

// Validate applies validator rules such as "min=1,max=100" to the bound
// value.
func Validate(rules string) ParamOption {
	return func(p *Param) {
		p.Rules = rules
	}
}

// Default binds v when the parameter is absent.
func Default(v any) ParamOption {
	return func(p *Param) {
		p.Default = v
		p.hasDefault = true
	}
}

// Of declares the parameter type. For actions built with New the type comes
// from the function signature and Of must agree with it.
func Of[T any]() ParamOption {
	return OfType(reflect.TypeFor[T]())
}

// OfType is the reflect form of Of.
func OfType(t reflect.Type) ParamOption {
	return func(p *Param) {
		p.Type = t
	}
}

// BindWith binds the parameter with b instead of the request services'
// binder.
func BindWith(b Binder) ParamOption {
	return func(p *Param) {
		p.binder = b
	}
}

func newParam(name string, src Source, opts []ParamOption) Param {
	p := Param{Name: name, Key: name, Source: src}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Path declares a parameter bound from a route variable.
func Path(name string, opts ...ParamOption) Option {
	return withParam(newParam(name, SourcePath, opts))
}

// Query declares a parameter bound from the query string.
func Query(name string, opts ...ParamOption) Option {
	return withParam(newParam(name, SourceQuery, opts))
}

// Header declares a parameter bound from a request header.
func Header(name string, opts ...ParamOption) Option {
	return withParam(newParam(name, SourceHeader, opts))
}

// Form declares a parameter bound from a form field.
func Form(name string, opts ...ParamOption) Option {
	return withParam(newParam(name, SourceForm, opts))
}

// Body declares a parameter decoded from the request body.
func Body(name string, opts ...ParamOption) Option {
	return withParam(newParam(name, SourceBody, opts))
}

// Route declares a parameter bound from route values.
func Route(name string, opts ...ParamOption) Option {
	return withParam(newParam(name, SourceRoute, opts))
}

// Declared builds a parameter option from a complete description, as used
// when parameters come from a document rather than code.
func Declared(name string, src Source, opts ...ParamOption) Option {
	return withParam(newParam(name, src, opts))
}
