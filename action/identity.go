package action

import (
	"net/http"
	"reflect"
	"runtime"
	"strings"
)

// Identity names the handler a route dispatches to. Two identities are equal
// when their package, controller and action match; Signature is
// informational.
type Identity struct {
	// Package is the import path of the package declaring the handler.
	Package string
	// Controller is the receiver type name for methods, empty for functions.
	Controller string
	// Action is the method or function name.
	Action string
	// Signature is the Go type of the handler function.
	Signature string
}

// String returns "Controller.Action", or just the action for functions.
func (id Identity) String() string {
	if id.Controller == "" {
		return id.Action
	}
	return id.Controller + "." + id.Action
}

// Equal reports whether id and o name the same handler of the same package.
func (id Identity) Equal(o Identity) bool {
	return id.Package == o.Package && id.Controller == o.Controller && id.Action == o.Action
}

// Qualified returns the identity prefixed with its package path, as in
// "example.com/shop.Items.Show".
func (id Identity) Qualified() string {
	if id.Package == "" {
		return id.String()
	}
	return id.Package + "." + id.String()
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id.Controller == "" && id.Action == ""
}

// Identifier is implemented by handlers that know their own identity.
type Identifier interface {
	ActionIdentity() Identity
}

// IdentityOf returns the identity of an arbitrary handler. Actions and other
// Identifier implementations report their own; http.HandlerFunc values are
// named after the wrapped function; any other handler is named after its
// type with "ServeHTTP" as action.
func IdentityOf(h http.Handler) Identity {
	switch v := h.(type) {
	case nil:
		return Identity{}
	case Identifier:
		return v.ActionIdentity()
	case http.HandlerFunc:
		return FuncIdentity(v)
	}

	t := reflect.TypeOf(h)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return Identity{
		Package:    t.PkgPath(),
		Controller: t.Name(),
		Action:     "ServeHTTP",
		Signature:  "func(http.ResponseWriter, *http.Request)",
	}
}

// FuncIdentity derives an identity from a function or method value using
// the runtime symbol table. Method values such as items.Show yield the
// receiver type as controller.
func FuncIdentity(fn any) Identity {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return Identity{}
	}

	id := parseSymbol(runtime.FuncForPC(v.Pointer()).Name())
	id.Signature = v.Type().String()
	return id
}

// parseSymbol splits a runtime symbol such as
// "example.com/app/items.(*Store).Show-fm" into package, controller and
// action.
func parseSymbol(sym string) Identity {
	sym = strings.TrimSuffix(sym, "-fm")

	// Generic instantiations carry "[...]" which may contain dots.
	if i := strings.Index(sym, "["); i >= 0 {
		if j := strings.LastIndex(sym, "]"); j > i {
			sym = sym[:i] + sym[j+1:]
		}
	}

	pkgEnd := 0
	if slash := strings.LastIndex(sym, "/"); slash >= 0 {
		pkgEnd = slash
	}
	dot := strings.Index(sym[pkgEnd:], ".")
	if dot < 0 {
		return Identity{Action: sym}
	}
	dot += pkgEnd

	id := Identity{Package: sym[:dot]}
	rest := sym[dot+1:]

	if i := strings.LastIndex(rest, "."); i >= 0 {
		recv := strings.TrimSuffix(strings.TrimPrefix(rest[:i], "(*"), ")")
		id.Controller = recv
		id.Action = rest[i+1:]
		return id
	}

	id.Action = rest
	return id
}
