package action

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vitalvas/routeprobe/mux"
)

var (
	// ErrNotFunc is returned when New is given something other than a function.
	ErrNotFunc = errors.New("action: handler is not a function")

	// ErrParamCount is returned when the declared parameters do not match the
	// handler's arguments.
	ErrParamCount = errors.New("action: parameter count does not match handler signature")

	// ErrParamType is returned when a declared parameter type differs from the
	// handler argument type.
	ErrParamType = errors.New("action: parameter type does not match handler signature")

	// ErrNotImplemented is returned when calling a declared action that has no
	// handler function.
	ErrNotImplemented = errors.New("action: declared action has no handler")
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
	stringType  = reflect.TypeFor[string]()
)

// Validatable is implemented by bound values that validate themselves. A
// non-nil error is recorded in the model state under the parameter key.
type Validatable interface {
	Validate() error
}

// Option configures an Action.
type Option func(*Action)

func withParam(p Param) Option {
	return func(a *Action) {
		a.params = append(a.params, p)
	}
}

// Named overrides the externally visible controller and action names. An
// empty string keeps the name derived from the handler symbol.
func Named(controller, action string) Option {
	return func(a *Action) {
		a.rename = Identity{Controller: controller, Action: action}
	}
}

// RouteValue attaches a fixed route value. Fixed values take precedence over
// anything read from the request.
func RouteValue(key, value string) Option {
	return func(a *Action) {
		if a.fixed == nil {
			a.fixed = make(map[string]string)
		}
		a.fixed[key] = value
	}
}

// Filters appends filters run after binding and validation.
func Filters(filters ...Filter) Option {
	return func(a *Action) {
		a.filters = append(a.filters, filters...)
	}
}

// Action is a typed handler: a Go function together with a description of
// where each argument comes from. It implements http.Handler.
type Action struct {
	fn          reflect.Value
	withContext bool
	declared    bool

	symbol Identity
	rename Identity

	params  []Param
	fixed   map[string]string
	filters []Filter

	err error
}

// New describes the handler fn. Parameter options are matched positionally
// to fn's arguments after an optional leading context.Context. Mismatches
// are reported by Err and by every later Prepare.
func New(fn any, opts ...Option) *Action {
	a := &Action{}
	for _, opt := range opts {
		opt(a)
	}

	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		a.err = ErrNotFunc
		return a
	}
	a.fn = v
	a.symbol = FuncIdentity(fn)

	t := v.Type()
	offset := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		a.withContext = true
		offset = 1
	}

	if got := t.NumIn() - offset; got != len(a.params) {
		a.err = fmt.Errorf("%w: %s takes %d arguments, %d declared", ErrParamCount, a.symbol, got, len(a.params))
		return a
	}

	for i := range a.params {
		in := t.In(i + offset)
		p := &a.params[i]
		switch {
		case p.Type == nil:
			p.Type = in
		case p.Type != in:
			a.err = fmt.Errorf("%w: %s argument %s is %s, declared %s", ErrParamType, a.symbol, p.Name, in, p.Type)
			return a
		}
	}

	return a
}

// Declare describes an action without a handler function. Parameters
// without a type are strings. Serving a declared action answers 501.
func Declare(id Identity, opts ...Option) *Action {
	a := &Action{symbol: id, declared: true}
	for _, opt := range opts {
		opt(a)
	}
	for i := range a.params {
		if a.params[i].Type == nil {
			a.params[i].Type = stringType
		}
	}
	if id.IsZero() {
		a.err = errors.New("action: declared action has no name")
	}
	return a
}

// Symbol returns the identity derived from the handler symbol, before any
// rename.
func (a *Action) Symbol() Identity {
	return a.symbol
}

// Identity returns the externally visible identity.
func (a *Action) Identity() Identity {
	id := a.symbol
	if a.rename.Controller != "" {
		id.Controller = a.rename.Controller
	}
	if a.rename.Action != "" {
		id.Action = a.rename.Action
	}
	return id
}

// ActionIdentity implements Identifier.
func (a *Action) ActionIdentity() Identity {
	return a.Identity()
}

// Params returns a copy of the parameter descriptions in argument order.
func (a *Action) Params() []Param {
	out := make([]Param, len(a.params))
	copy(out, a.params)
	return out
}

// Param returns the parameter with the given name.
func (a *Action) Param(name string) (Param, bool) {
	for _, p := range a.params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// RouteValues returns the fixed route values: "controller" and "action"
// from the identity plus any RouteValue options.
func (a *Action) RouteValues() map[string]string {
	id := a.Identity()
	out := make(map[string]string, len(a.fixed)+2)
	if id.Controller != "" {
		out["controller"] = id.Controller
	}
	if id.Action != "" {
		out["action"] = id.Action
	}
	maps.Copy(out, a.fixed)
	return out
}

// Filters returns a copy of the action filters.
func (a *Action) Filters() []Filter {
	out := make([]Filter, len(a.filters))
	copy(out, a.filters)
	return out
}

// Err returns the configuration error, if any.
func (a *Action) Err() error {
	return a.err
}

// Declared reports whether the action was built by Declare.
func (a *Action) Declared() bool {
	return a.declared
}

// Invocation is a prepared call: bound arguments and their validation state.
type Invocation struct {
	Action     *Action
	Request    *http.Request
	Arguments  map[string]any
	ModelState *ModelState
}

// Prepare binds every parameter from r, validates the bound values and runs
// the action filters. It never calls the handler.
//
// Values that are missing or fail conversion are recorded in the model state
// and leave no argument. Any other binder error is returned, as is the first
// filter error; the partially prepared invocation accompanies a filter
// error.
func (a *Action) Prepare(r *http.Request) (*Invocation, error) {
	if a.err != nil {
		return nil, a.err
	}

	svc := ServicesFromContext(r.Context())
	inv := &Invocation{
		Action:     a,
		Request:    r,
		Arguments:  make(map[string]any, len(a.params)),
		ModelState: &ModelState{},
	}

	for _, p := range a.params {
		if err := bindParam(inv, svc, p); err != nil {
			return nil, err
		}
	}

	for _, p := range a.params {
		if v, ok := inv.Arguments[p.Name]; ok {
			validateParam(inv.ModelState, svc.Validator, p, v)
		}
	}

	for _, f := range a.filters {
		if err := f.Check(inv); err != nil {
			return inv, err
		}
	}

	return inv, nil
}

func bindParam(inv *Invocation, svc Services, p Param) error {
	binder := p.binder
	if binder == nil {
		binder = svc.Binder
	}

	v, err := binder.Bind(inv.Request, p)
	var convErr *ConversionError
	switch {
	case err == nil:
		inv.Arguments[p.Name] = v

	case errors.Is(err, ErrValueMissing):
		switch {
		case p.hasDefault:
			dv, err := ConvertValue(p.Default, p.Type)
			if err != nil {
				return fmt.Errorf("action: default for %s: %w", p.Name, err)
			}
			inv.Arguments[p.Name] = dv
		case p.Optional:
			inv.Arguments[p.Name] = reflect.Zero(p.Type).Interface()
		default:
			inv.ModelState.AddError(p.Key, "value is required")
		}

	case errors.As(err, &convErr):
		inv.ModelState.AddError(p.Key, convErr.Error())

	default:
		return fmt.Errorf("action: bind %s: %w", p.Name, err)
	}

	return nil
}

func validateParam(ms *ModelState, v *validator.Validate, p Param, value any) {
	if p.Rules != "" {
		addValidationErrors(ms, p.Key, v.Var(value, p.Rules))
	}

	if isStruct(p.Type) {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Pointer || !rv.IsNil() {
			addValidationErrors(ms, p.Key, v.Struct(value))
		}
	}

	if self, ok := value.(Validatable); ok {
		if err := self.Validate(); err != nil {
			ms.AddError(p.Key, err.Error())
		}
	}
}

func addValidationErrors(ms *ModelState, key string, err error) {
	if err == nil {
		return
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		ms.AddError(key, err.Error())
		return
	}

	for _, fe := range verrs {
		k := key
		// Struct namespaces start with the type name.
		if _, field, ok := strings.Cut(fe.Namespace(), "."); ok {
			k = key + "." + field
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		ms.AddError(k, fmt.Sprintf("failed on the '%s' rule", rule))
	}
}

// Call invokes the handler with the bound arguments. Missing arguments are
// passed as zero values. A trailing error result is returned as the error;
// the remaining results are returned in order.
func (inv *Invocation) Call() ([]any, error) {
	a := inv.Action
	if a.declared {
		return nil, ErrNotImplemented
	}
	if a.err != nil {
		return nil, a.err
	}

	in := make([]reflect.Value, 0, len(a.params)+1)
	if a.withContext {
		in = append(in, reflect.ValueOf(inv.Request.Context()))
	}
	for _, p := range a.params {
		v, ok := inv.Arguments[p.Name]
		if !ok || v == nil {
			in = append(in, reflect.Zero(p.Type))
			continue
		}
		in = append(in, reflect.ValueOf(v))
	}

	var out []reflect.Value
	if a.fn.Type().IsVariadic() {
		out = a.fn.CallSlice(in)
	} else {
		out = a.fn.Call(in)
	}

	if n := len(out); n > 0 && a.fn.Type().Out(n-1) == errorType {
		last := out[n-1]
		out = out[:n-1]
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}

	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, nil
}

// ServeHTTP binds, validates and calls the handler. Filter errors answer
// with their status, an invalid model with 400, and handler errors with 500.
// A handler without results answers 204; otherwise the results are encoded.
func (a *Action) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	inv, err := a.Prepare(r)

	var fe *FilterError
	switch {
	case errors.As(err, &fe):
		mux.ReportRejection(r, mux.Rejection{Filter: fe.Filter, Status: fe.Status, Reason: fe.Reason})
		respond(w, r, fe.Status, problem{Title: fe.Reason, Status: fe.Status})
		return
	case err != nil:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if !inv.ModelState.Valid() {
		respond(w, r, http.StatusBadRequest, problem{
			Title:  "invalid request",
			Status: http.StatusBadRequest,
			Errors: inv.ModelState.Errors(),
		})
		return
	}

	results, err := inv.Call()
	switch {
	case errors.Is(err, ErrNotImplemented):
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	case err != nil:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	switch len(results) {
	case 0:
		w.WriteHeader(http.StatusNoContent)
	case 1:
		respond(w, r, http.StatusOK, results[0])
	default:
		respond(w, r, http.StatusOK, results)
	}
}
