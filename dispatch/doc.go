// Package dispatch runs a request through an assembled route table without
// executing any handler.
//
// Match reports which routes a request selects. Invoke goes one step
// further: for a single candidate it runs the route's middleware chain with
// a terminal step that binds and validates the action's arguments, then
// returns an ActualCall describing the outcome.
//
//	call := dispatch.Dispatch(ctx, dispatch.Get("/items/42"), table)
//	if !call.IsResolved() {
//	    t.Fatal(call.UnresolvedReason())
//	}
//	fmt.Println(call.Handler(), call.BoundArguments()["id"])
//
// A call is unresolved when no route matches, when several routes tie for
// the best rank, when middleware or an action filter refuses the request,
// or when binding fails with an error rather than a model error. The reason
// names the request, the handlers involved and the innermost error.
//
// Routing and binding succeed independently: a request that matches a route
// but carries a value the argument type cannot hold is resolved, with the
// argument missing and the validation state invalid.
package dispatch
