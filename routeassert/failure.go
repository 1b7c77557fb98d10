package routeassert

import "fmt"

// Failure is the error returned by every assertion.
type Failure struct {
	// Property names what was checked: "resolved", "controller",
	// "action", "argument", "route value", "data token", "valid",
	// "validation errors" or one of the counts.
	Property string
	// Key is the argument, route value or data token name, if any.
	Key      string
	Expected any
	Actual   any
	Message  string
}

func (f *Failure) Error() string {
	return f.Message
}

func failf(property, key string, expected, actual any, format string, args ...any) *Failure {
	return &Failure{
		Property: property,
		Key:      key,
		Expected: expected,
		Actual:   actual,
		Message:  fmt.Sprintf(format, args...),
	}
}
