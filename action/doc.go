// Package action describes typed HTTP handlers: a Go function or method
// value together with the source of each argument.
//
//	show := action.New(store.Show,
//	    action.Path("id", action.Validate("min=1")),
//	    action.Query("expand", action.Optional()),
//	)
//	r.Handle("/items/{id:int}", show).Methods(http.MethodGet)
//
// An Action serves requests itself, but its binding can also run alone.
// Prepare reads every argument from the request, converts it to the argument
// type, validates it and runs the action filters, then stops. The resulting
// Invocation holds the bound arguments and the model state without the
// handler ever being called.
//
// # Sources
//
// Path reads route variables and falls back to route defaults. Query reads
// the query string, binding a whole struct through "query" field tags when
// the argument is a struct. Header and Form read the matching request
// fields. Body decodes JSON or XML by content type. Route reads route
// variables, then defaults, then the query string.
//
// # Identity
//
// Every action has an Identity derived from the handler symbol: a method
// value store.Show on *Store is controller "Store", action "Show". Named
// changes the visible names without changing the symbol.
//
// # Model state
//
// Missing required values, conversion failures and validator rules are
// recorded in the ModelState. They never fail Prepare. Only binder errors
// and filter rejections do.
package action
