// Package pipeline assembles a route table from an application's pipeline
// configuration.
//
// The configuration callback receives a Builder and registers components in
// order, much like composing middleware around a router:
//
//	table, err := pipeline.Assemble(func(b *pipeline.Builder) {
//	    b.Use(muxhandlers.RequestIDMiddleware(muxhandlers.RequestIDConfig{}))
//	    b.Use(pipeline.RegistrarFunc(func(r *mux.Router) {
//	        r.Handle("/items/{id:int}", action.New(store.Show, action.Path("id"))).
//	            Methods(http.MethodGet)
//	    }))
//	})
//
// Middleware wraps every route registered after it and none registered
// before it. Route registrars are the reliable way to contribute routes.
// A *mux.Router is mounted as is, and components an Introspector
// understands, such as chi routers, are copied route by route on a best
// effort basis. Any other component contributes no routes. Such components
// are logged at debug level and reported by Table.Stages with kind
// KindOpaque so callers can detect them.
//
// A Configuration memoizes the table across tests and rebuilds it on
// demand.
package pipeline
