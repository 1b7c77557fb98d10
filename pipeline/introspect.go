package pipeline

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vitalvas/routeprobe/mux"
)

type chiRoute struct {
	method      string
	pattern     string
	handler     http.Handler
	middlewares []func(http.Handler) http.Handler
}

// ChiIntrospector copies the routes of a chi router into r. Patterns ending
// in "/*" become prefix routes and chi middleware runs ahead of each
// handler. Route order follows chi's routing tree, not registration order.
func ChiIntrospector(component any, r *mux.Router) (bool, error) {
	routes, ok := component.(chi.Routes)
	if !ok {
		return false, nil
	}

	var (
		found []chiRoute
		seen  = make(map[string]int)
	)
	err := chi.Walk(routes, func(method, pattern string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		if _, ok := seen[pattern]; !ok {
			seen[pattern] = len(seen)
		}
		found = append(found, chiRoute{method: method, pattern: pattern, handler: handler, middlewares: middlewares})
		return nil
	})
	if err != nil {
		return false, err
	}

	// chi keeps methods in a map; sort them within each pattern.
	slices.SortStableFunc(found, func(a, b chiRoute) int {
		if d := seen[a.pattern] - seen[b.pattern]; d != 0 {
			return d
		}
		return strings.Compare(a.method, b.method)
	})

	for _, cr := range found {
		target := r
		if len(cr.middlewares) > 0 {
			target = r.NewRoute().Subrouter()
			for _, mw := range cr.middlewares {
				target.Use(mw)
			}
		}

		route := target.NewRoute()
		if prefix, ok := strings.CutSuffix(cr.pattern, "*"); ok {
			route.PathPrefix(prefix)
		} else {
			route.Path(cr.pattern)
		}
		route.Methods(cr.method).Handler(cr.handler)

		if err := route.GetError(); err != nil {
			return false, err
		}
	}

	return true, nil
}
