package mux

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Router registers routes to be matched and dispatches a handler.
//
// Unlike a first-match router, every route is tried and the best ranked
// match wins; see Specificity. Two routes that tie for the best rank make
// the request ambiguous.
//
//	r := mux.NewRouter()
//	r.HandleFunc("/", handler)
//	http.ListenAndServe(":8080", r)
type Router struct {
	// NotFoundHandler is called when no route matches.
	// If nil, http.NotFoundHandler() is used.
	NotFoundHandler http.Handler

	// MethodNotAllowedHandler is called when a route matches the path
	// but not the method. If nil, a default 405 handler is used.
	// The Allow header is always set before this handler is invoked.
	MethodNotAllowedHandler http.Handler

	// AmbiguousHandler is called when several routes tie for the best
	// rank. If nil, a default 500 handler is used.
	AmbiguousHandler http.Handler

	parent      parentRoute
	routes      []*Route
	namedRoutes map[string]*Route
	middlewares []MiddlewareFunc

	// handlerCache caches the middleware-wrapped handler per route.
	handlerCache sync.Map // map[*Route]http.Handler

	skipClean      bool
	useEncodedPath bool
}

var (
	defaultNotFoundHandler         = http.NotFoundHandler()
	defaultMethodNotAllowedHandler = methodNotAllowedHandler()
	defaultAmbiguousHandler        = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, ErrAmbiguousRoute.Error(), http.StatusInternalServerError)
	})
)

// NewRouter returns a new router instance.
func NewRouter() *Router {
	return &Router{
		namedRoutes: make(map[string]*Route),
	}
}

// ServeHTTP dispatches the handler registered in the matched route.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	req = r.Prepare(req)

	var match RouteMatch
	var handler http.Handler

	if r.Match(req, &match) {
		handler = match.Handler
		if handler == nil {
			handler = defaultNotFoundHandler
		}
		req = WithMatch(req, &match)
	} else {
		switch {
		case match.methodNotAllowed:
			w.Header().Set("Allow", strings.Join(r.AllowedMethods(req), ", "))
			handler = r.MethodNotAllowedHandler
			if handler == nil {
				handler = defaultMethodNotAllowedHandler
			}
		case match.MatchErr == ErrAmbiguousRoute:
			handler = r.AmbiguousHandler
			if handler == nil {
				handler = defaultAmbiguousHandler
			}
		default:
			handler = r.NotFoundHandler
			if handler == nil {
				handler = defaultNotFoundHandler
			}
		}
	}

	handler.ServeHTTP(w, req)
}

// Prepare returns the request the router matches against: the path is
// cleaned of dot segments unless SkipClean is enabled.
func (r *Router) Prepare(req *http.Request) *http.Request {
	if r.skipClean {
		return req
	}
	path := req.URL.Path
	if r.useEncodedPath {
		path = requestURIPath(req.URL)
	}
	cleaned := cleanPath(path)
	if cleaned == path {
		return req
	}
	u := *req.URL
	u.Path = cleaned
	u.RawPath = ""
	req = req.Clone(req.Context())
	req.URL = &u
	return req
}

// candidate is a leaf route that matched a request, with the middleware
// collected on the way down from the root router.
type candidate struct {
	route      *Route
	vars       map[string]string
	middleware []MiddlewareFunc
}

// Match matches the request against every route and keeps the best ranked
// one. It distinguishes a method mismatch (ErrMethodMismatch), a tie
// between equally ranked routes (ErrAmbiguousRoute) and no match at all
// (ErrNotFound).
func (r *Router) Match(req *http.Request, match *RouteMatch) bool {
	cands, methodNotAllowed := r.collect(req, match.getQuery(req))

	if len(cands) == 0 {
		match.Route = nil
		match.Handler = nil
		match.Candidates = nil
		if methodNotAllowed {
			match.MatchErr = ErrMethodMismatch
			match.methodNotAllowed = true
			return false
		}
		match.MatchErr = ErrNotFound
		return false
	}

	best := topRanked(cands)
	if len(best) > 1 {
		match.Route = nil
		match.Handler = nil
		match.Candidates = make([]*Route, len(best))
		for i, c := range best {
			match.Candidates[i] = c.route
		}
		match.MatchErr = ErrAmbiguousRoute
		return false
	}

	c := best[0]
	match.Route = c.route
	match.Vars = c.vars
	match.Middleware = c.middleware
	match.Candidates = []*Route{c.route}
	match.MatchErr = nil
	match.methodNotAllowed = false
	match.Handler = r.wrappedHandler(c)
	return true
}

// Candidates returns every route that matches the request, in
// registration order, regardless of rank.
func (r *Router) Candidates(req *http.Request) []*Route {
	cands, _ := r.collect(req, req.URL.Query())
	out := make([]*Route, len(cands))
	for i, c := range cands {
		out[i] = c.route
	}
	return out
}

func (r *Router) collect(req *http.Request, query url.Values) ([]candidate, bool) {
	var (
		cands            []candidate
		methodNotAllowed bool
	)

	for _, route := range r.routes {
		m := RouteMatch{parsedQuery: query}
		if !route.matchSelf(req, &m) {
			if m.MatchErr == ErrMethodMismatch {
				methodNotAllowed = true
			}
			continue
		}

		if sub, ok := route.handler.(*Router); ok {
			subCands, subMethodNotAllowed := sub.collect(req, query)
			methodNotAllowed = methodNotAllowed || subMethodNotAllowed
			for _, c := range subCands {
				c.middleware = append(append([]MiddlewareFunc(nil), r.middlewares...), c.middleware...)
				cands = append(cands, c)
			}
			continue
		}

		route.regexp.setMatch(req, &m)
		cands = append(cands, candidate{
			route:      route,
			vars:       m.Vars,
			middleware: append([]MiddlewareFunc(nil), r.middlewares...),
		})
	}

	return cands, methodNotAllowed
}

// topRanked returns the candidates sharing the best rank, in registration
// order.
func topRanked(cands []candidate) []candidate {
	best := []candidate{cands[0]}
	bestRank := cands[0].route.Specificity()
	for _, c := range cands[1:] {
		switch cmp := c.route.Specificity().Compare(bestRank); {
		case cmp > 0:
			best = []candidate{c}
			bestRank = c.route.Specificity()
		case cmp == 0:
			best = append(best, c)
		}
	}
	return best
}

func (r *Router) wrappedHandler(c candidate) http.Handler {
	if c.route.handler == nil || len(c.middleware) == 0 {
		return c.route.handler
	}
	if cached, ok := r.handlerCache.Load(c.route); ok {
		return cached.(http.Handler)
	}
	h := c.route.handler
	for i := len(c.middleware) - 1; i >= 0; i-- {
		h = c.middleware[i].Middleware(h)
	}
	r.handlerCache.Store(c.route, h)
	return h
}

// SkipClean defines the path cleaning behavior for new routes.
func (r *Router) SkipClean(value bool) *Router {
	r.skipClean = value
	return r
}

// UseEncodedPath tells the router to match the percent-encoded original path
// to the routes, instead of the decoded path.
func (r *Router) UseEncodedPath() *Router {
	r.useEncodedPath = true
	return r
}

// --- Route factory methods ---

// NewRoute creates an empty route for configuration.
func (r *Router) NewRoute() *Route {
	route := &Route{
		parent:         r,
		namedRoutes:    r.namedRoutes,
		skipClean:      r.skipClean,
		useEncodedPath: r.useEncodedPath,
	}
	r.routes = append(r.routes, route)
	return route
}

// Handle registers a new route with a matcher for the URL path and handler.
func (r *Router) Handle(path string, handler http.Handler) *Route {
	return r.NewRoute().Path(path).Handler(handler)
}

// HandleFunc registers a new route with a matcher for the URL path and
// handler function.
func (r *Router) HandleFunc(path string, f func(http.ResponseWriter, *http.Request)) *Route {
	return r.NewRoute().Path(path).HandlerFunc(f)
}

// Mount registers a route without matchers whose handler is sub. Matching
// descends into sub, so its routes and middleware take part in ranking.
func (r *Router) Mount(sub *Router) *Route {
	return r.NewRoute().Handler(sub)
}

// Path registers a new route with a matcher for the URL path.
func (r *Router) Path(tpl string) *Route {
	return r.NewRoute().Path(tpl)
}

// PathPrefix registers a new route with a matcher for the URL path prefix.
func (r *Router) PathPrefix(tpl string) *Route {
	return r.NewRoute().PathPrefix(tpl)
}

// Host registers a new route with a matcher for the URL host.
func (r *Router) Host(tpl string) *Route {
	return r.NewRoute().Host(tpl)
}

// Methods registers a new route with a matcher for HTTP methods.
func (r *Router) Methods(methods ...string) *Route {
	return r.NewRoute().Methods(methods...)
}

// Schemes registers a new route with a matcher for URL schemes.
func (r *Router) Schemes(schemes ...string) *Route {
	return r.NewRoute().Schemes(schemes...)
}

// Headers registers a new route with a matcher for request header values.
func (r *Router) Headers(pairs ...string) *Route {
	return r.NewRoute().Headers(pairs...)
}

// Queries registers a new route with a matcher for URL query values.
func (r *Router) Queries(pairs ...string) *Route {
	return r.NewRoute().Queries(pairs...)
}

// MatcherFunc registers a new route with a custom matcher function.
func (r *Router) MatcherFunc(f MatcherFunc) *Route {
	return r.NewRoute().MatcherFunc(f)
}

// Name registers a new route with the given name.
func (r *Router) Name(name string) *Route {
	return r.NewRoute().Name(name)
}

// Get returns a route registered with the given name.
func (r *Router) Get(name string) *Route {
	return r.namedRoutes[name]
}

// Walk walks the router and all its subrouters, calling walkFn for each route
// in the tree.
func (r *Router) Walk(walkFn WalkFunc) error {
	return r.walk(walkFn, nil)
}

func (r *Router) walk(walkFn WalkFunc, ancestors []*Route) error {
	for _, route := range r.routes {
		err := walkFn(route, r, ancestors)
		if err == SkipRouter {
			continue
		}
		if err != nil {
			return err
		}
		if sr, ok := route.handler.(*Router); ok {
			if err := sr.walk(walkFn, append(ancestors, route)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Use appends middleware to the chain. Middleware is applied to matched
// handlers only.
func (r *Router) Use(mwf ...MiddlewareFunc) {
	r.middlewares = append(r.middlewares, mwf...)
}

// Middlewares returns a copy of the router's own middleware chain.
func (r *Router) Middlewares() []MiddlewareFunc {
	return append([]MiddlewareFunc(nil), r.middlewares...)
}

// --- parentRoute interface implementation ---

func (r *Router) getNamedRoutes() map[string]*Route {
	return r.namedRoutes
}

func (r *Router) getRegexpGroup() *routeRegexpGroup {
	if r.parent != nil {
		return r.parent.getRegexpGroup()
	}
	return nil
}

func (r *Router) getDefaults() map[string]string {
	if r.parent != nil {
		return r.parent.getDefaults()
	}
	return nil
}

func (r *Router) getDataTokens() map[string]any {
	if r.parent != nil {
		return r.parent.getDataTokens()
	}
	return nil
}
