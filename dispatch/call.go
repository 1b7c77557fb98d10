package dispatch

import (
	"fmt"
	"maps"

	"github.com/vitalvas/routeprobe/action"
)

// ValidationState is the outcome of binding and validation.
type ValidationState struct {
	Valid  bool
	Errors []action.FieldError
}

// ActualCall is the outcome of one dispatch. It is either resolved, carrying
// the handler and everything bound for it, or unresolved, carrying only the
// reason. Accessors return copies.
type ActualCall struct {
	resolved    bool
	handler     action.Identity
	routeValues map[string]string
	arguments   map[string]any
	dataTokens  map[string]any
	validation  ValidationState
	reason      string
}

// Resolved returns a resolved call. The maps are copied.
func Resolved(handler action.Identity, routeValues map[string]string, arguments, dataTokens map[string]any, validation ValidationState) ActualCall {
	return ActualCall{
		resolved:    true,
		handler:     handler,
		routeValues: cloneMap(routeValues),
		arguments:   cloneMap(arguments),
		dataTokens:  cloneMap(dataTokens),
		validation: ValidationState{
			Valid:  validation.Valid,
			Errors: append([]action.FieldError(nil), validation.Errors...),
		},
	}
}

// Unresolved returns an unresolved call with the given reason.
func Unresolved(reason string) ActualCall {
	return ActualCall{reason: reason}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	maps.Copy(out, m)
	return out
}

// IsResolved reports whether a single handler was selected and bound.
func (c ActualCall) IsResolved() bool { return c.resolved }

// Handler returns the identity of the selected handler.
func (c ActualCall) Handler() action.Identity { return c.handler }

// RouteValues returns route defaults, query values, route variables and
// fixed action values, later sources overriding earlier ones.
func (c ActualCall) RouteValues() map[string]string { return cloneMap(c.routeValues) }

// BoundArguments returns the typed arguments keyed by parameter name.
// Parameters that failed to bind are absent.
func (c ActualCall) BoundArguments() map[string]any { return cloneMap(c.arguments) }

// DataTokens returns the route data tokens.
func (c ActualCall) DataTokens() map[string]any { return cloneMap(c.dataTokens) }

// Validation returns the validation state.
func (c ActualCall) Validation() ValidationState {
	return ValidationState{
		Valid:  c.validation.Valid,
		Errors: append([]action.FieldError(nil), c.validation.Errors...),
	}
}

// UnresolvedReason explains why no handler was resolved. It is empty for
// resolved calls.
func (c ActualCall) UnresolvedReason() string { return c.reason }

func (c ActualCall) String() string {
	if !c.resolved {
		return "unresolved: " + c.reason
	}
	return fmt.Sprintf("%s(%v) valid=%t", c.handler, c.arguments, c.validation.Valid)
}
