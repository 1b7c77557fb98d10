package action

import (
	"bytes"
	"context"
	"encoding"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"

	"github.com/vitalvas/routeprobe/mux"
)

// ErrValueMissing is returned by binders when the request carries no value
// for a parameter. The action then applies the parameter's default, its zero
// value when optional, or records a required-value error.
var ErrValueMissing = errors.New("action: value is missing")

// ConversionError reports a request value that cannot be converted to the
// parameter type. It is recorded in the model state rather than failing the
// invocation.
type ConversionError struct {
	Value string
	Type  reflect.Type
	Err   error
}

func (e *ConversionError) Error() string {
	if e.Value == "" && e.Err != nil {
		return fmt.Sprintf("value is not a valid %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("value %q is not a valid %s", e.Value, e.Type)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Binder produces the value of one parameter from a request. Errors other
// than ErrValueMissing and *ConversionError abort the invocation.
type Binder interface {
	Bind(r *http.Request, p Param) (any, error)
}

// BinderFunc adapts a function to the Binder interface.
type BinderFunc func(r *http.Request, p Param) (any, error)

// Bind implements Binder.
func (f BinderFunc) Bind(r *http.Request, p Param) (any, error) {
	return f(r, p)
}

// Services are the binder and validator an action resolves per request.
type Services struct {
	Binder    Binder
	Validator *validator.Validate
}

type servicesKey struct{}

var defaultValidator = sync.OnceValue(NewValidator)

// NewValidator returns a validator that reports struct fields by their JSON
// name.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

// DefaultServices returns the DefaultBinder and a shared validator.
func DefaultServices() Services {
	return Services{Binder: DefaultBinder{}, Validator: defaultValidator()}
}

// ContextWithServices returns a context carrying s. Zero fields of s are
// filled from DefaultServices.
func ContextWithServices(ctx context.Context, s Services) context.Context {
	def := DefaultServices()
	if s.Binder == nil {
		s.Binder = def.Binder
	}
	if s.Validator == nil {
		s.Validator = def.Validator
	}
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFromContext returns the services stored in ctx, or
// DefaultServices when there are none.
func ServicesFromContext(ctx context.Context) Services {
	if s, ok := ctx.Value(servicesKey{}).(Services); ok {
		return s
	}
	return DefaultServices()
}

// DefaultBinder reads parameters from the source they declare.
type DefaultBinder struct{}

// Bind implements Binder.
func (DefaultBinder) Bind(r *http.Request, p Param) (any, error) {
	if p.Type == nil {
		return nil, fmt.Errorf("action: parameter %s has no type", p.Name)
	}

	switch p.Source {
	case SourceBody:
		return bindBody(r, p)
	case SourceQuery:
		if isStruct(p.Type) {
			return bindQueryStruct(r, p)
		}
	}

	raw, err := lookup(r, p)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrValueMissing
	}

	v, err := convertStrings(raw, p.Type)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

func lookup(r *http.Request, p Param) ([]string, error) {
	switch p.Source {
	case SourcePath:
		return lookupRoute(r, p.Key, false), nil
	case SourceRoute:
		return lookupRoute(r, p.Key, true), nil
	case SourceQuery:
		return r.URL.Query()[p.Key], nil
	case SourceHeader:
		return r.Header.Values(p.Key), nil
	case SourceForm:
		form, err := formValues(r)
		if err != nil {
			return nil, err
		}
		return form[p.Key], nil
	}
	return nil, fmt.Errorf("action: unsupported source %s", p.Source)
}

func lookupRoute(r *http.Request, key string, withQuery bool) []string {
	if v, ok := mux.VarGet(r, key); ok {
		return []string{v}
	}
	if route := mux.CurrentRoute(r); route != nil {
		if v, ok := route.GetDefaults()[key]; ok {
			return []string{v}
		}
	}
	if withQuery {
		return r.URL.Query()[key]
	}
	return nil
}

// formValues merges an urlencoded body over the query string, leaving the
// body readable for later parameters.
func formValues(r *http.Request) (url.Values, error) {
	form := r.URL.Query()
	if mediaType(r) != "application/x-www-form-urlencoded" {
		return form, nil
	}

	body, err := peekBody(r)
	if err != nil {
		return nil, err
	}
	posted, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, &ConversionError{Value: string(body), Type: reflect.TypeFor[url.Values](), Err: err}
	}
	for k, vs := range posted {
		form[k] = append(vs, form[k]...)
	}
	return form, nil
}

func mediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mt
}

// peekBody reads the whole body and replaces it with an identical reader.
func peekBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("action: read body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func bindBody(r *http.Request, p Param) (any, error) {
	body, err := peekBody(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrValueMissing
	}

	switch p.Type {
	case reflect.TypeFor[[]byte]():
		return body, nil
	case reflect.TypeFor[string]():
		return string(body), nil
	}

	target := reflect.New(p.Type)
	defer func() { r.Body = io.NopCloser(bytes.NewReader(body)) }()

	switch mt := mediaType(r); {
	case mt == "application/xml" || mt == "text/xml" || strings.HasSuffix(mt, "+xml"):
		err = BindXML(r, target.Interface())
	default:
		err = BindJSON(r, target.Interface())
	}
	if err != nil {
		return nil, &ConversionError{Type: p.Type, Err: err}
	}
	return target.Elem().Interface(), nil
}

func bindQueryStruct(r *http.Request, p Param) (any, error) {
	input := make(map[string]any)
	for k, vs := range r.URL.Query() {
		if len(vs) == 1 {
			input[k] = vs[0]
		} else {
			input[k] = vs
		}
	}

	target := reflect.New(p.Type)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "query",
		WeaklyTypedInput: true,
		Result:           target.Interface(),
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("action: query decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return nil, &ConversionError{Type: p.Type, Err: err}
	}
	return target.Elem().Interface(), nil
}

// BindJSON decodes the request body as JSON into v.
// By default the decoder rejects unknown fields that do not map to exported
// struct fields. Pass false to allow unknown fields.
// Exactly one JSON value must be present in the body; trailing data is an error.
func BindJSON(r *http.Request, v any, allowUnknownFields ...bool) error {
	dec := json.NewDecoder(r.Body)

	if len(allowUnknownFields) == 0 || !allowUnknownFields[0] {
		dec.DisallowUnknownFields()
	}

	if err := dec.Decode(v); err != nil {
		return err
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing data after JSON value")
	}

	return nil
}

// BindXML decodes the request body as XML into v.
// Exactly one XML element must be present in the body; trailing data is an error.
func BindXML(r *http.Request, v any) error {
	dec := xml.NewDecoder(r.Body)

	if err := dec.Decode(v); err != nil {
		return err
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing data after XML value")
	}

	return nil
}

var (
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
	durationType        = reflect.TypeFor[time.Duration]()
	timeType            = reflect.TypeFor[time.Time]()
)

func isTextUnmarshaler(t reflect.Type) bool {
	return reflect.PointerTo(t).Implements(textUnmarshalerType)
}

func isStruct(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t != timeType && !isTextUnmarshaler(t)
}

// Convert converts raw request strings to t. Slices take every value; other
// types take the first.
func Convert(raw []string, t reflect.Type) (any, error) {
	v, err := convertStrings(raw, t)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

func convertStrings(raw []string, t reflect.Type) (reflect.Value, error) {
	if t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8 && !isTextUnmarshaler(t) {
		out := reflect.MakeSlice(t, 0, len(raw))
		for _, s := range raw {
			v, err := convertString(s, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, v)
		}
		return out, nil
	}

	if len(raw) == 0 {
		return reflect.Zero(t), nil
	}
	return convertString(raw[0], t)
}

func convertString(s string, t reflect.Type) (reflect.Value, error) {
	if t.Kind() == reflect.Pointer {
		v, err := convertString(s, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(v)
		return p, nil
	}

	fail := func(err error) (reflect.Value, error) {
		return reflect.Value{}, &ConversionError{Value: s, Type: t, Err: err}
	}

	if isTextUnmarshaler(t) {
		p := reflect.New(t)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return fail(err)
		}
		return p.Elem(), nil
	}

	if t == durationType {
		d, err := cast.ToDurationE(s)
		if err != nil {
			return fail(err)
		}
		return reflect.ValueOf(d), nil
	}

	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(s).Convert(t), nil

	case reflect.Bool:
		b, err := cast.ToBoolE(s)
		if err != nil {
			return fail(err)
		}
		return reflect.ValueOf(b).Convert(t), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(s)
		if err != nil {
			return fail(err)
		}
		if reflect.Zero(t).OverflowInt(n) {
			return fail(errors.New("value out of range"))
		}
		return reflect.ValueOf(n).Convert(t), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if strings.HasPrefix(s, "-") {
			return fail(errors.New("negative value"))
		}
		n, err := cast.ToUint64E(s)
		if err != nil {
			return fail(err)
		}
		if reflect.Zero(t).OverflowUint(n) {
			return fail(errors.New("value out of range"))
		}
		return reflect.ValueOf(n).Convert(t), nil

	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(s)
		if err != nil {
			return fail(err)
		}
		if reflect.Zero(t).OverflowFloat(f) {
			return fail(errors.New("value out of range"))
		}
		return reflect.ValueOf(f).Convert(t), nil
	}

	return reflect.Value{}, fmt.Errorf("action: unsupported parameter type %s", t)
}

// ConvertValue converts an arbitrary Go value, such as a declared default or
// an expected literal, to t. Strings are parsed like request values; other
// values are converted or decoded with weak typing.
func ConvertValue(v any, t reflect.Type) (any, error) {
	if v == nil {
		return reflect.Zero(t).Interface(), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type() == t {
		return v, nil
	}

	switch x := v.(type) {
	case string:
		return Convert([]string{x}, t)
	case []string:
		return Convert(x, t)
	}

	if rv.Type().ConvertibleTo(t) && rv.Kind() != reflect.String && t.Kind() != reflect.String {
		return rv.Convert(t).Interface(), nil
	}

	target := reflect.New(t)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           target.Interface(),
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v); err != nil {
		return nil, &ConversionError{Value: fmt.Sprint(v), Type: t, Err: err}
	}
	return target.Elem().Interface(), nil
}
