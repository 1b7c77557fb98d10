// Package routeassert compares the outcome of a dispatch with an expected
// handler call and reports the first difference as a *Failure.
//
//	call := expect.MustParse(table, `Items.Show(42)`)
//	routeassert.Routes(t, table, dispatch.Get("/items/42"), call)
package routeassert
