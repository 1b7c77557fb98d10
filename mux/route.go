package mux

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// matcher is the interface implemented by route matchers.
type matcher interface {
	Match(*http.Request, *RouteMatch) bool
}

// parentRoute is the interface implemented by types that can serve as
// a route's parent (Router or Route via subrouter).
type parentRoute interface {
	getNamedRoutes() map[string]*Route
	getRegexpGroup() *routeRegexpGroup
	getDefaults() map[string]string
	getDataTokens() map[string]any
}

// Route stores information to match a request and build URLs.
type Route struct {
	parent      parentRoute
	handler     http.Handler
	matchers    []matcher
	regexp      routeRegexpGroup
	name        string
	err         error
	namedRoutes map[string]*Route

	skipClean      bool
	useEncodedPath bool
	buildScheme    string

	order      int
	defaults   map[string]string
	dataTokens map[string]any
}

// Match matches this route against the request. For a route holding a
// subrouter the match is delegated to the subrouter.
func (r *Route) Match(req *http.Request, match *RouteMatch) bool {
	if !r.matchSelf(req, match) {
		return false
	}

	if router, ok := r.handler.(*Router); ok {
		return router.Match(req, match)
	}

	match.Route = r
	match.Handler = r.handler
	r.regexp.setMatch(req, match)

	return true
}

// matchSelf checks the route's own matchers and templates. When everything
// but the method matched, MatchErr is set to ErrMethodMismatch.
func (r *Route) matchSelf(req *http.Request, match *RouteMatch) bool {
	if r.err != nil {
		return false
	}

	var methodMismatch bool

	for _, m := range r.matchers {
		if m.Match(req, match) {
			continue
		}
		if _, ok := m.(methodMatcher); ok {
			methodMismatch = true
			continue
		}
		return false
	}

	if r.regexp.host != nil && !r.regexp.host.Match(req, match) {
		return false
	}
	if r.regexp.path != nil && !r.regexp.path.Match(req, match) {
		return false
	}
	for _, q := range r.regexp.queries {
		if !q.Match(req, match) {
			return false
		}
	}

	if methodMismatch {
		match.MatchErr = ErrMethodMismatch
		return false
	}

	return true
}

// Specificity ranks routes that match the same request. Ranks are compared
// field by field in declaration order.
type Specificity struct {
	// Order is the explicit route order; lower values win.
	Order int
	// Exact is true for full path templates and false for prefixes.
	Exact bool
	// Literals is the number of template segments without variables.
	Literals int
	// Constrained is the number of variables with an explicit pattern.
	Constrained int
	// Matchers is the number of method, header, scheme, host, query and
	// custom matchers.
	Matchers int
}

// Compare returns a positive number when s outranks o, a negative number
// when o outranks s, and zero when they tie.
func (s Specificity) Compare(o Specificity) int {
	switch {
	case s.Order != o.Order:
		return o.Order - s.Order
	case s.Exact != o.Exact:
		if s.Exact {
			return 1
		}
		return -1
	case s.Literals != o.Literals:
		return s.Literals - o.Literals
	case s.Constrained != o.Constrained:
		return s.Constrained - o.Constrained
	default:
		return s.Matchers - o.Matchers
	}
}

func (s Specificity) String() string {
	return fmt.Sprintf("order=%d exact=%t literals=%d constrained=%d matchers=%d",
		s.Order, s.Exact, s.Literals, s.Constrained, s.Matchers)
}

// Specificity returns the rank of the route.
func (r *Route) Specificity() Specificity {
	s := Specificity{
		Order:    r.order,
		Exact:    true,
		Matchers: len(r.matchers) + len(r.regexp.queries),
	}
	if p := r.regexp.path; p != nil {
		s.Exact = !p.wildcard
		s.Literals = p.literals
		s.Constrained = p.constrained
	}
	if h := r.regexp.host; h != nil {
		s.Matchers++
		s.Constrained += h.constrained
	}
	for _, q := range r.regexp.queries {
		s.Constrained += q.constrained
	}
	return s
}

// --- Configuration ---

func (r *Route) addMatcher(m matcher) *Route {
	if r.err == nil {
		r.matchers = append(r.matchers, m)
	}
	return r
}

func (r *Route) addRegexpMatcher(tpl string, typ regexpType) error {
	if r.err != nil {
		return r.err
	}

	if typ == regexpTypePath || typ == regexpTypePrefix {
		if len(tpl) > 0 && tpl[0] != '/' {
			return fmt.Errorf("mux: path must start with a slash, got %q", tpl)
		}
		if r.parent != nil {
			if g := r.parent.getRegexpGroup(); g != nil && g.path != nil {
				tpl = strings.TrimRight(g.path.template, "/") + tpl
			}
		}
	}

	if typ == regexpTypeHost && r.parent != nil {
		if g := r.parent.getRegexpGroup(); g != nil && g.host != nil {
			tpl = tpl + "." + g.host.template
		}
	}

	rr, err := newRouteRegexp(tpl, typ, routeRegexpOptions{useEncodedPath: r.useEncodedPath})
	if err != nil {
		return err
	}

	switch typ {
	case regexpTypePath, regexpTypePrefix:
		if r.regexp.host != nil {
			if err := uniqueVars(rr.varsN, r.regexp.host.varsN); err != nil {
				return err
			}
		}
		r.regexp.path = rr
	case regexpTypeHost:
		if r.regexp.path != nil {
			if err := uniqueVars(rr.varsN, r.regexp.path.varsN); err != nil {
				return err
			}
		}
		r.regexp.host = rr
	case regexpTypeQuery:
		r.regexp.queries = append(r.regexp.queries, rr)
	}
	return nil
}

// Handler sets a handler for the route.
func (r *Route) Handler(handler http.Handler) *Route {
	if r.err == nil {
		r.handler = handler
	}
	return r
}

// HandlerFunc sets a handler function for the route.
func (r *Route) HandlerFunc(f func(http.ResponseWriter, *http.Request)) *Route {
	return r.Handler(http.HandlerFunc(f))
}

// GetHandler returns the handler for the route, if any.
func (r *Route) GetHandler() http.Handler {
	return r.handler
}

// Name sets the name for the route, used to build URLs.
func (r *Route) Name(name string) *Route {
	if r.name != "" {
		r.err = fmt.Errorf("mux: route already has name %q, can't set %q", r.name, name)
		return r
	}
	if r.err == nil {
		r.name = name
		if r.namedRoutes != nil {
			r.namedRoutes[name] = r
		}
	}
	return r
}

// GetName returns the name for the route, if any.
func (r *Route) GetName() string {
	return r.name
}

// Path adds a path matcher to the route.
func (r *Route) Path(tpl string) *Route {
	r.err = r.addRegexpMatcher(tpl, regexpTypePath)
	return r
}

// PathPrefix adds a path prefix matcher to the route.
func (r *Route) PathPrefix(tpl string) *Route {
	r.err = r.addRegexpMatcher(tpl, regexpTypePrefix)
	return r
}

// Host adds a host matcher to the route.
func (r *Route) Host(tpl string) *Route {
	r.err = r.addRegexpMatcher(tpl, regexpTypeHost)
	return r
}

// Methods adds a method matcher to the route. Calling Methods again
// replaces the previous method matcher.
func (r *Route) Methods(methods ...string) *Route {
	upper := make([]string, len(methods))
	for i, m := range methods {
		upper[i] = strings.ToUpper(m)
	}
	filtered := r.matchers[:0]
	for _, m := range r.matchers {
		if _, ok := m.(methodMatcher); !ok {
			filtered = append(filtered, m)
		}
	}
	r.matchers = filtered
	return r.addMatcher(methodMatcher(upper))
}

// Headers adds a matcher for request header values. An empty value only
// checks for the header presence.
func (r *Route) Headers(pairs ...string) *Route {
	if r.err != nil {
		return r
	}
	m, err := mapFromPairsToString(pairs...)
	if err != nil {
		r.err = err
		return r
	}
	return r.addMatcher(headerMatcher(m))
}

// HeadersRegexp adds a matcher for request header values using regexps.
func (r *Route) HeadersRegexp(pairs ...string) *Route {
	if r.err != nil {
		return r
	}
	m, err := mapFromPairsToRegex(pairs...)
	if err != nil {
		r.err = err
		return r
	}
	return r.addMatcher(headerRegexMatcher(m))
}

// Queries adds matchers for URL query values.
func (r *Route) Queries(pairs ...string) *Route {
	length, err := checkPairs(pairs...)
	if err != nil {
		r.err = err
		return r
	}
	for i := 0; i < length; i++ {
		if r.err = r.addRegexpMatcher(pairs[i*2]+"="+pairs[i*2+1], regexpTypeQuery); r.err != nil {
			return r
		}
	}
	return r
}

// Schemes adds a matcher for URL schemes.
func (r *Route) Schemes(schemes ...string) *Route {
	lower := make([]string, len(schemes))
	for i, s := range schemes {
		lower[i] = strings.ToLower(s)
	}
	if len(lower) > 0 {
		r.buildScheme = lower[0]
	}
	return r.addMatcher(schemeMatcher(lower))
}

// MatcherFunc adds a custom matcher function to the route.
func (r *Route) MatcherFunc(f MatcherFunc) *Route {
	return r.addMatcher(f)
}

// Subrouter creates a new Router for the route.
func (r *Route) Subrouter() *Router {
	router := &Router{
		parent:         r,
		namedRoutes:    r.namedRoutes,
		skipClean:      r.skipClean,
		useEncodedPath: r.useEncodedPath,
	}
	r.handler = router
	return router
}

// SkipClean reports whether the path cleaning is disabled for this route.
func (r *Route) SkipClean() bool {
	return r.skipClean
}

// Order sets the explicit order of the route. Among matching routes the
// lowest order wins before specificity is considered. The default is 0.
func (r *Route) Order(order int) *Route {
	r.order = order
	return r
}

// GetOrder returns the explicit order of the route.
func (r *Route) GetOrder() int {
	return r.order
}

// Defaults sets default route values as key/value pairs. Defaults are
// reported with the matched variables and fill missing variables when
// building URLs.
func (r *Route) Defaults(pairs ...string) *Route {
	if r.err != nil {
		return r
	}
	m, err := mapFromPairsToString(pairs...)
	if err != nil {
		r.err = err
		return r
	}
	if r.defaults == nil {
		r.defaults = make(map[string]string, len(m))
	}
	maps.Copy(r.defaults, m)
	return r
}

// GetDefaults returns the route defaults merged with those of its parents.
func (r *Route) GetDefaults() map[string]string {
	return r.getDefaults()
}

// DataToken attaches out-of-band metadata to the route. Data tokens never
// take part in matching.
func (r *Route) DataToken(key string, value any) *Route {
	if r.dataTokens == nil {
		r.dataTokens = make(map[string]any)
	}
	r.dataTokens[key] = value
	return r
}

// GetDataTokens returns the route data tokens merged with those of its
// parents.
func (r *Route) GetDataTokens() map[string]any {
	return r.getDataTokens()
}

// --- URL Building ---

// URL builds a URL for the route from key/value pairs of route variables.
func (r *Route) URL(pairs ...string) (*url.URL, error) {
	if r.err != nil {
		return nil, r.err
	}
	values, err := r.prepareVars(pairs...)
	if err != nil {
		return nil, err
	}
	var scheme, host, path string
	if r.regexp.host != nil {
		if host, err = r.regexp.host.url(values); err != nil {
			return nil, err
		}
		scheme = "http"
		if r.buildScheme != "" {
			scheme = r.buildScheme
		}
	}
	if r.regexp.path != nil {
		if path, err = r.regexp.path.url(values); err != nil {
			return nil, err
		}
	}
	return &url.URL{Scheme: scheme, Host: host, Path: path}, nil
}

// URLPath builds the path part of the URL.
func (r *Route) URLPath(pairs ...string) (*url.URL, error) {
	if r.err != nil {
		return nil, r.err
	}
	values, err := r.prepareVars(pairs...)
	if err != nil {
		return nil, err
	}
	if r.regexp.path == nil {
		return nil, errors.New("mux: route doesn't have a path")
	}
	path, err := r.regexp.path.url(values)
	if err != nil {
		return nil, err
	}
	return &url.URL{Path: path}, nil
}

func (r *Route) prepareVars(pairs ...string) (map[string]string, error) {
	m, err := mapFromPairsToString(pairs...)
	if err != nil {
		return nil, err
	}
	for k, v := range r.getDefaults() {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return m, nil
}

// --- Inspection ---

// GetPathTemplate returns the template for the route path, if defined.
func (r *Route) GetPathTemplate() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if r.regexp.path == nil {
		return "", errors.New("mux: route doesn't have a path")
	}
	return r.regexp.path.template, nil
}

// IsPathPrefix reports whether the route path matches as a prefix.
func (r *Route) IsPathPrefix() bool {
	return r.regexp.path != nil && r.regexp.path.wildcard
}

// GetHostTemplate returns the template for the route host, if defined.
func (r *Route) GetHostTemplate() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if r.regexp.host == nil {
		return "", errors.New("mux: route doesn't have a host")
	}
	return r.regexp.host.template, nil
}

// GetMethods returns the methods the route matches against.
func (r *Route) GetMethods() ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, m := range r.matchers {
		if methods, ok := m.(methodMatcher); ok {
			return append([]string(nil), methods...), nil
		}
	}
	return nil, errors.New("mux: route doesn't have methods")
}

// GetQueriesTemplates returns the query templates for the route.
func (r *Route) GetQueriesTemplates() ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	if len(r.regexp.queries) == 0 {
		return nil, errors.New("mux: route doesn't have queries")
	}
	templates := make([]string, len(r.regexp.queries))
	for i, q := range r.regexp.queries {
		templates[i] = q.queryKey + "=" + q.template
	}
	return templates, nil
}

// GetHeaders returns the exact-value header constraints of the route.
func (r *Route) GetHeaders() map[string]string {
	out := make(map[string]string)
	for _, m := range r.matchers {
		if h, ok := m.(headerMatcher); ok {
			maps.Copy(out, h)
		}
	}
	return out
}

// GetVarNames returns the variable names for the route.
func (r *Route) GetVarNames() ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	var varNames []string
	if r.regexp.host != nil {
		varNames = append(varNames, r.regexp.host.varsN...)
	}
	if r.regexp.path != nil {
		varNames = append(varNames, r.regexp.path.varsN...)
	}
	for _, q := range r.regexp.queries {
		varNames = append(varNames, q.varsN...)
	}
	return varNames, nil
}

// GetVarPatterns returns the declared pattern of every variable. Variables
// without an explicit pattern map to an empty string.
func (r *Route) GetVarPatterns() map[string]string {
	out := make(map[string]string, r.regexp.varCount())
	collect := func(rr *routeRegexp) {
		if rr == nil {
			return
		}
		for i, name := range rr.varsN {
			out[name] = rr.varsP[i]
		}
	}
	collect(r.regexp.host)
	collect(r.regexp.path)
	for _, q := range r.regexp.queries {
		collect(q)
	}
	return out
}

// GetError returns any error that was set on the route.
func (r *Route) GetError() error {
	return r.err
}

// --- parentRoute interface implementation ---

func (r *Route) getNamedRoutes() map[string]*Route {
	return r.namedRoutes
}

func (r *Route) getRegexpGroup() *routeRegexpGroup {
	return &r.regexp
}

func (r *Route) getDefaults() map[string]string {
	out := make(map[string]string)
	if r.parent != nil {
		maps.Copy(out, r.parent.getDefaults())
	}
	maps.Copy(out, r.defaults)
	return out
}

func (r *Route) getDataTokens() map[string]any {
	out := make(map[string]any)
	if r.parent != nil {
		maps.Copy(out, r.parent.getDataTokens())
	}
	maps.Copy(out, r.dataTokens)
	return out
}

// --- Internal matchers ---

// methodMatcher matches the request method against a list of allowed methods.
type methodMatcher []string

func (m methodMatcher) Match(r *http.Request, _ *RouteMatch) bool {
	return slices.Contains([]string(m), r.Method)
}

// headerMatcher matches request headers against expected values.
type headerMatcher map[string]string

func (m headerMatcher) Match(r *http.Request, _ *RouteMatch) bool {
	return matchMapWithString(map[string]string(m), map[string][]string(r.Header), true)
}

// headerRegexMatcher matches request headers against regexp patterns.
type headerRegexMatcher map[string]*regexp.Regexp

func (m headerRegexMatcher) Match(r *http.Request, _ *RouteMatch) bool {
	return matchMapWithRegex(map[string]*regexp.Regexp(m), map[string][]string(r.Header), true)
}

// schemeMatcher matches the request URL scheme, inferring it from the TLS
// state when the URL carries none.
type schemeMatcher []string

func (m schemeMatcher) Match(r *http.Request, _ *RouteMatch) bool {
	scheme := r.URL.Scheme
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return slices.Contains([]string(m), scheme)
}
