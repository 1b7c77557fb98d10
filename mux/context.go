package mux

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
)

type routeContextKey struct{}

type rejectionKey struct{}

// routeContext holds the matched route and extracted variables.
type routeContext struct {
	route *Route
	vars  map[string]string
}

// Vars returns the route variables for the current request, if any.
func Vars(r *http.Request) map[string]string {
	if rc, ok := r.Context().Value(routeContextKey{}).(*routeContext); ok {
		return rc.vars
	}
	return nil
}

// VarGet returns the value of a single route variable by name and a boolean
// indicating whether the variable exists.
func VarGet(r *http.Request, name string) (string, bool) {
	if rc, ok := r.Context().Value(routeContextKey{}).(*routeContext); ok && rc.vars != nil {
		val, exists := rc.vars[name]
		return val, exists
	}
	return "", false
}

// CurrentRoute returns the matched route for the current request, if any.
func CurrentRoute(r *http.Request) *Route {
	if rc, ok := r.Context().Value(routeContextKey{}).(*routeContext); ok {
		return rc.route
	}
	return nil
}

// SetURLVars sets the URL variables for the given request, returning the
// modified request. This is intended for testing route handlers.
func SetURLVars(r *http.Request, val map[string]string) *http.Request {
	return setRouteContext(r, CurrentRoute(r), val)
}

// WithMatch stores the route and variables of match in the request context,
// exactly as ServeHTTP does before calling the matched handler.
func WithMatch(r *http.Request, match *RouteMatch) *http.Request {
	return setRouteContext(r, match.Route, match.Vars)
}

func setRouteContext(r *http.Request, route *Route, vars map[string]string) *http.Request {
	ctx := context.WithValue(r.Context(), routeContextKey{}, &routeContext{route: route, vars: vars})
	return r.WithContext(ctx)
}

// RouteMatch stores information about a matched route.
type RouteMatch struct {
	// Route is the matched route, if any.
	Route *Route

	// Handler is the matched handler wrapped with every middleware on the
	// path from the root router to the route.
	Handler http.Handler

	// Vars contains the extracted variables from the matched route.
	Vars map[string]string

	// Candidates lists the routes that tied for the best rank. It holds the
	// single matched route on success and every tied route when MatchErr is
	// ErrAmbiguousRoute.
	Candidates []*Route

	// Middleware is the chain applied to the matched route, outermost first.
	Middleware []MiddlewareFunc

	// MatchErr is ErrMethodMismatch when only the method failed to match,
	// ErrAmbiguousRoute when several routes tied, and ErrNotFound otherwise.
	MatchErr error

	methodNotAllowed bool

	parsedQuery url.Values
}

// Wrap applies the match's middleware chain to h. It lets callers replace
// the terminal handler while keeping the pipeline the router would run.
func (m *RouteMatch) Wrap(h http.Handler) http.Handler {
	for i := len(m.Middleware) - 1; i >= 0; i-- {
		h = m.Middleware[i].Middleware(h)
	}
	return h
}

func (m *RouteMatch) getQuery(req *http.Request) url.Values {
	if m.parsedQuery == nil {
		m.parsedQuery = req.URL.Query()
	}
	return m.parsedQuery
}

// MatcherFunc is the function signature used by custom matchers.
type MatcherFunc func(*http.Request, *RouteMatch) bool

// Match implements the matcher interface.
func (m MatcherFunc) Match(r *http.Request, match *RouteMatch) bool {
	return m(r, match)
}

// MiddlewareFunc is a function which receives an http.Handler and returns
// another http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Middleware allows MiddlewareFunc to implement the Middleware interface.
func (mw MiddlewareFunc) Middleware(handler http.Handler) http.Handler {
	return mw(handler)
}

// WalkFunc is the type of the function called for each route visited by Walk.
type WalkFunc func(route *Route, router *Router, ancestors []*Route) error

// Rejection describes a middleware refusing to pass a request on.
type Rejection struct {
	// Filter names the middleware, e.g. "basic-auth".
	Filter string
	// Status is the HTTP status written to the client.
	Status int
	// Reason is a short human-readable explanation.
	Reason string
}

// RejectionRecorder collects rejections reported while a request travels
// through a middleware chain.
type RejectionRecorder struct {
	mu         sync.Mutex
	rejections []Rejection
}

// Rejections returns the recorded rejections in report order.
func (rr *RejectionRecorder) Rejections() []Rejection {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	out := make([]Rejection, len(rr.rejections))
	copy(out, rr.rejections)
	return out
}

// WithRejectionRecorder returns a copy of r carrying a fresh recorder.
func WithRejectionRecorder(r *http.Request) (*http.Request, *RejectionRecorder) {
	rr := &RejectionRecorder{}
	return r.WithContext(context.WithValue(r.Context(), rejectionKey{}, rr)), rr
}

// ReportRejection records rej on the request's recorder, if one is present.
// Middleware call it right before writing their error response.
func ReportRejection(r *http.Request, rej Rejection) {
	rr, ok := r.Context().Value(rejectionKey{}).(*RejectionRecorder)
	if !ok {
		return
	}
	rr.mu.Lock()
	rr.rejections = append(rr.rejections, rej)
	rr.mu.Unlock()
}

// ErrMethodMismatch is returned when the method in the request does not match
// the method defined against the route.
var ErrMethodMismatch = errors.New("method is not allowed")

// ErrNotFound is returned when no route match is found.
var ErrNotFound = errors.New("no matching route was found")

// ErrAmbiguousRoute is returned when two or more routes match a request with
// the same order and specificity.
var ErrAmbiguousRoute = errors.New("multiple routes matched with equal rank")

// SkipRouter is used as a return value from WalkFunc to indicate that the
// router that walk is about to descend into should be skipped.
var SkipRouter = errors.New("skip this router") //nolint:revive,staticcheck // gorilla/mux API compatibility
