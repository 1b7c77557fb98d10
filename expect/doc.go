// Package expect describes the handler call a request is expected to
// dispatch to.
//
// An expectation is built either from a handler function and positional
// arguments:
//
//	call, err := expect.Call(table, store.Show, 42)
//
// or from text, evaluated with expr:
//
//	call, err := expect.Parse(table, `Items.Show(42)`)
//
// Literal arguments are converted to the declared parameter types. Ignore
// skips an argument and AnyOf only checks the bound type. Fixed route
// values declared on the handler take precedence over the caller's values.
package expect
