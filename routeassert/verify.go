package routeassert

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/vitalvas/routeprobe/action"
	"github.com/vitalvas/routeprobe/dispatch"
	"github.com/vitalvas/routeprobe/expect"
)

// Verify checks that actual is the call expected describes. It stops at
// the first difference, checking in order: resolution, package and
// controller, action, every expected argument, then the expected route
// values.
func Verify(actual dispatch.ActualCall, expected *expect.ExpectedCall) error {
	if expected == nil {
		return failf("resolved", "", nil, actual.Handler(), "no expected call given")
	}

	want := expected.Handler()
	if !actual.IsResolved() {
		return failf("resolved", "", want.String(), actual.UnresolvedReason(),
			"expected a call to %s, but the request was not resolved: %s", want, actual.UnresolvedReason())
	}

	got := actual.Handler()
	if got.Controller == want.Controller && got.Package != want.Package {
		return failf("controller", "", want.Qualified(), got.Qualified(),
			"expected controller %q from package %q, got package %q (handler %s)", want.Controller, want.Package, got.Package, got.Qualified())
	}
	if got.Controller != want.Controller {
		return failf("controller", "", want.Controller, got.Controller,
			"expected controller %q, got %q (handler %s)", want.Controller, got.Controller, got)
	}
	if got.Action != want.Action {
		return failf("action", "", want.Action, got.Action,
			"expected action %q, got %q (handler %s)", want.Action, got.Action, got)
	}

	bound := actual.BoundArguments()
	values := actual.RouteValues()
	for _, arg := range expected.Arguments() {
		if err := verifyArg(arg, bound, values); err != nil {
			return err
		}
	}

	overrides := expected.RouteValues()
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v, ok := values[k]
		if !ok {
			return failf("route value", k, overrides[k], nil,
				"route value %q is missing, expected %q", k, overrides[k])
		}
		if v != overrides[k] {
			return failf("route value", k, overrides[k], v,
				"route value %q: expected %q, got %q", k, overrides[k], v)
		}
	}

	return nil
}

func verifyArg(arg expect.Arg, bound map[string]any, values map[string]string) error {
	value, ok := bound[arg.Name]
	if !ok {
		rv, found := values[arg.Name]
		if !found {
			return failf("argument", arg.Name, arg.Value, nil,
				"expected argument %q was not bound and is not a route value", arg.Name)
		}
		value = rv
	}

	if arg.Kind == expect.ArgAny {
		if typeMatches(value, arg.Type) {
			return nil
		}
		return failf("argument", arg.Name, arg.Type, reflect.TypeOf(value),
			"argument %q: expected a value of type %s, got %T", arg.Name, arg.Type, value)
	}

	if ok, diff := equal(arg.Value, value); !ok {
		msg := fmt.Sprintf("argument %q: expected %#v, got %#v", arg.Name, arg.Value, value)
		if diff != "" {
			msg += "\n(-expected +actual):\n" + diff
		}
		return &Failure{Property: "argument", Key: arg.Name, Expected: arg.Value, Actual: value, Message: msg}
	}
	return nil
}

func typeMatches(value any, t reflect.Type) bool {
	if t == nil {
		return true
	}
	if value == nil {
		return false
	}
	vt := reflect.TypeOf(value)
	if vt == t || (t.Kind() == reflect.Interface && vt.Implements(t)) {
		return true
	}
	// Route values are text; accept them when they convert to t.
	if s, isText := value.(string); isText {
		_, err := action.ConvertValue(s, t)
		return err == nil
	}
	return false
}

// RouteValueCount checks the number of route values.
func RouteValueCount(actual dispatch.ActualCall, n int) error {
	return count("route value count", "route values", n, len(actual.RouteValues()))
}

// DataTokenCount checks the number of data tokens.
func DataTokenCount(actual dispatch.ActualCall, n int) error {
	return count("data token count", "data tokens", n, len(actual.DataTokens()))
}

// ArgumentCount checks the number of bound arguments.
func ArgumentCount(actual dispatch.ActualCall, n int) error {
	return count("argument count", "bound arguments", n, len(actual.BoundArguments()))
}

func count(property, noun string, want, got int) error {
	if want == got {
		return nil
	}
	return failf(property, "", want, got, "expected %d %s, got %d", want, noun, got)
}

// DataTokens checks that every expected data token is present and equal.
func DataTokens(actual dispatch.ActualCall, expected map[string]any) error {
	tokens := actual.DataTokens()

	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		v, ok := tokens[k]
		if !ok {
			return failf("data token", k, expected[k], nil, "data token %q is missing", k)
		}
		if same, diff := equal(expected[k], v); !same {
			msg := fmt.Sprintf("data token %q: expected %#v, got %#v", k, expected[k], v)
			if diff != "" {
				msg += "\n(-expected +actual):\n" + diff
			}
			return &Failure{Property: "data token", Key: k, Expected: expected[k], Actual: v, Message: msg}
		}
	}
	return nil
}

// Validation checks the valid flag and, when errs are given, that the
// validation errors are exactly errs in any order.
func Validation(actual dispatch.ActualCall, valid bool, errs ...action.FieldError) error {
	state := actual.Validation()
	if state.Valid != valid {
		return failf("valid", "", valid, state.Valid,
			"expected the model to be %s, got %s%s", validity(valid), validity(state.Valid), listErrors(state.Errors))
	}
	if len(errs) == 0 {
		return nil
	}

	want := sortErrors(errs)
	got := sortErrors(state.Errors)
	if !slices.Equal(want, got) {
		return failf("validation errors", "", want, got,
			"expected validation errors%s, got%s", listErrors(want), listErrors(got))
	}
	return nil
}

func validity(valid bool) string {
	if valid {
		return "valid"
	}
	return "invalid"
}

func sortErrors(errs []action.FieldError) []action.FieldError {
	out := slices.Clone(errs)
	slices.SortFunc(out, func(a, b action.FieldError) int {
		if c := strings.Compare(a.Key, b.Key); c != 0 {
			return c
		}
		return strings.Compare(a.Message, b.Message)
	})
	return out
}

func listErrors(errs []action.FieldError) string {
	if len(errs) == 0 {
		return " (no errors)"
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Key + ": " + e.Message
	}
	return " [" + strings.Join(parts, "; ") + "]"
}
