// Package mux implements the route table the resolution engine matches
// requests against.
//
// The API follows gorilla/mux: routes are registered on a Router with path,
// host, method, header, query and custom matchers, and grouped with
// subrouters. Matching differs in one important way. Every route is tried
// and the best ranked route wins, so registration order only breaks ties
// that ranking cannot.
//
// # Router
//
//	r := mux.NewRouter()
//	r.HandleFunc("/articles/{category}/{id:int}", ArticleHandler)
//	r.HandleFunc("/products/{key}", ProductHandler)
//	http.Handle("/", r)
//
// # Ranking
//
// Routes that match the same request are compared by Specificity, field by
// field:
//
//	Order        explicit route order, lower wins (Route.Order)
//	Exact        a full path template beats a PathPrefix
//	Literals     more segments without variables wins
//	Constrained  more variables with a pattern wins
//	Matchers     more method, host, header, query or custom matchers wins
//
// When two or more routes tie at the top, Router.Match fails with
// ErrAmbiguousRoute and RouteMatch.Candidates lists the tied routes.
// ServeHTTP answers an ambiguous request with the AmbiguousHandler, a 500 by
// default.
//
// # Path Variables
//
// Variables are enclosed in curly braces, optionally followed by a colon and
// a pattern:
//
//	r.HandleFunc("/articles/{category}/{id:[0-9]+}", handler)
//	vars := mux.Vars(req)
//
// # Pattern Macros
//
// Named macros may replace the pattern:
//
//	uuid     RFC 4122 UUID
//	int      signed integer
//	uint     unsigned integer
//	float    decimal number
//	bool     true or false, any case
//	slug     URL-safe slug
//	alpha    alphabetic characters
//	alphanum alphanumeric characters
//	date     ISO 8601 date
//	hex      hexadecimal string
//	domain   domain name per RFC 1123
//
// Any other text after the colon is compiled as a regular expression.
//
// # Defaults and Data Tokens
//
// Defaults supply route values that the request does not carry. They are
// merged with those of parent routes and fill missing variables when
// building URLs:
//
//	r.HandleFunc("/blog/{page:int}", handler).Defaults("page", "1", "section", "blog")
//
// Data tokens are metadata that never take part in matching:
//
//	r.HandleFunc("/users", handler).DataToken("operationId", "listUsers")
//
// # Matching Without Dispatch
//
//	var match mux.RouteMatch
//	if r.Match(req, &match) {
//	    h := match.Wrap(myTerminal) // run the route middleware around another handler
//	}
//
// MatchErr is ErrMethodMismatch for a 405, ErrAmbiguousRoute for a tie and
// ErrNotFound otherwise. Router.AllowedMethods lists the methods that would
// have matched.
//
// # Middleware and Rejections
//
// Middleware added with Use wraps matched handlers; subrouter middleware runs
// inside parent middleware. Middleware that refuses a request should call
// ReportRejection before writing its response so that callers holding a
// RejectionRecorder learn which filter blocked the request.
//
// # Path Cleaning
//
// Request paths are cleaned of dot segments per RFC 3986 Section 5.2.4
// unless SkipClean is set. UseEncodedPath matches the percent-encoded path.
package mux
