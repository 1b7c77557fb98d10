package mux

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteMatch(t *testing.T) {
	t.Run("extracts host path and query variables", func(t *testing.T) {
		r := NewRouter()
		route := r.Host("{tenant}.example.com").
			Path("/users/{id:int}").
			Queries("sort", "{sort}").
			HandlerFunc(named("user"))

		var match RouteMatch
		req := httptest.NewRequest(http.MethodGet, "http://acme.example.com/users/5?sort=asc", nil)
		require.True(t, route.Match(req, &match))
		assert.Equal(t, map[string]string{"tenant": "acme", "id": "5", "sort": "asc"}, match.Vars)
	})

	t.Run("keeps variable values when patterns contain groups", func(t *testing.T) {
		r := NewRouter()
		route := r.HandleFunc("/{kind:(cat|dog)}/{name}", named("pet"))

		var match RouteMatch
		req := httptest.NewRequest(http.MethodGet, "/dog/rex", nil)
		require.True(t, route.Match(req, &match))
		assert.Equal(t, map[string]string{"kind": "dog", "name": "rex"}, match.Vars)
	})

	t.Run("delegates to subrouter", func(t *testing.T) {
		r := NewRouter()
		s := r.PathPrefix("/api").Subrouter()
		leaf := s.HandleFunc("/users", named("users"))

		var match RouteMatch
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		require.True(t, r.routes[0].Match(req, &match))
		assert.Same(t, leaf, match.Route)
	})

	t.Run("sets method mismatch", func(t *testing.T) {
		r := NewRouter()
		route := r.HandleFunc("/users", named("users")).Methods(http.MethodPost)

		var match RouteMatch
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		assert.False(t, route.Match(req, &match))
		assert.ErrorIs(t, match.MatchErr, ErrMethodMismatch)
	})

	t.Run("path mismatch wins over method mismatch", func(t *testing.T) {
		r := NewRouter()
		route := r.HandleFunc("/users", named("users")).Methods(http.MethodPost)

		var match RouteMatch
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		assert.False(t, route.Match(req, &match))
		assert.NoError(t, match.MatchErr)
	})

	t.Run("bare query key checks presence", func(t *testing.T) {
		r := NewRouter()
		route := r.HandleFunc("/search", named("search")).Queries("debug", "")

		var match RouteMatch
		assert.True(t, route.Match(httptest.NewRequest(http.MethodGet, "/search?debug", nil), &match))
		assert.False(t, route.Match(httptest.NewRequest(http.MethodGet, "/search", nil), &match))
	})

	t.Run("header matcher", func(t *testing.T) {
		r := NewRouter()
		route := r.HandleFunc("/", named("h")).Headers("content-type", "application/json")

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		var match RouteMatch
		assert.False(t, route.Match(req, &match))

		req.Header.Set("Content-Type", "application/json")
		assert.True(t, route.Match(req, &match))
	})

	t.Run("header regexp matcher", func(t *testing.T) {
		r := NewRouter()
		route := r.HandleFunc("/", named("h")).HeadersRegexp("Accept", `^application/(json|xml)$`)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept", "application/xml")
		var match RouteMatch
		assert.True(t, route.Match(req, &match))
	})

	t.Run("scheme inferred from TLS", func(t *testing.T) {
		r := NewRouter()
		route := r.HandleFunc("/", named("h")).Schemes("HTTPS")

		var match RouteMatch
		assert.False(t, route.Match(httptest.NewRequest(http.MethodGet, "/", nil), &match))
		assert.True(t, route.Match(httptest.NewRequest(http.MethodGet, "https://example.com/", nil), &match))
	})
}

func TestRouteConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(r *Router) *Route
	}{
		{"path without leading slash", func(r *Router) *Route { return r.Path("users") }},
		{"unbalanced braces", func(r *Router) *Route { return r.Path("/users/{id") }},
		{"missing variable name", func(r *Router) *Route { return r.Path("/users/{:int}") }},
		{"duplicated variable", func(r *Router) *Route { return r.Path("/{id}/{id}") }},
		{"duplicated host and path variable", func(r *Router) *Route { return r.Host("{id}.example.com").Path("/{id}") }},
		{"odd header pairs", func(r *Router) *Route { return r.Headers("X-Only") }},
		{"odd query pairs", func(r *Router) *Route { return r.Queries("q") }},
		{"invalid header regexp", func(r *Router) *Route { return r.NewRoute().HeadersRegexp("X", "(") }},
		{"invalid variable pattern", func(r *Router) *Route { return r.Path("/{id:(}") }},
		{"odd defaults", func(r *Router) *Route { return r.Path("/").Defaults("page") }},
		{"second name", func(r *Router) *Route { return r.Name("a").Name("b") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route := tt.build(NewRouter())
			assert.Error(t, route.GetError())
		})
	}

	t.Run("later configuration keeps the first error", func(t *testing.T) {
		route := NewRouter().Path("/{id").Handler(named("x"))
		assert.Error(t, route.GetError())
		assert.Nil(t, route.GetHandler())
	})
}

func TestRouteSpecificity(t *testing.T) {
	t.Run("computes rank fields", func(t *testing.T) {
		r := NewRouter()
		route := r.Host("{sub}.example.com").
			Path("/users/{id:int}/posts/{slug}").
			Methods(http.MethodGet).
			Queries("page", "{page:int}")

		assert.Equal(t, Specificity{
			Order:       0,
			Exact:       true,
			Literals:    2,
			Constrained: 2,
			Matchers:    3,
		}, route.Specificity())
	})

	t.Run("prefix is not exact", func(t *testing.T) {
		route := NewRouter().PathPrefix("/static")
		assert.False(t, route.Specificity().Exact)
		assert.True(t, route.IsPathPrefix())
	})

	t.Run("compares field by field", func(t *testing.T) {
		base := Specificity{Exact: true, Literals: 1}

		assert.Zero(t, base.Compare(base))
		assert.Positive(t, base.Compare(Specificity{Order: 1, Exact: true, Literals: 5}))
		assert.Positive(t, base.Compare(Specificity{Literals: 3}))
		assert.Negative(t, base.Compare(Specificity{Exact: true, Literals: 2}))
		assert.Negative(t, base.Compare(Specificity{Exact: true, Literals: 1, Constrained: 1}))
		assert.Negative(t, base.Compare(Specificity{Exact: true, Literals: 1, Matchers: 1}))
	})

	t.Run("formats as string", func(t *testing.T) {
		s := Specificity{Order: 1, Exact: true, Literals: 2}
		assert.Equal(t, "order=1 exact=true literals=2 constrained=0 matchers=0", s.String())
	})
}

func TestRouteMethods(t *testing.T) {
	t.Run("uppercases and copies input", func(t *testing.T) {
		methods := []string{"get", "post"}
		route := NewRouter().Path("/").Methods(methods...)
		methods[0] = "delete"

		got, err := route.GetMethods()
		require.NoError(t, err)
		assert.Equal(t, []string{"GET", "POST"}, got)
	})

	t.Run("second call replaces methods", func(t *testing.T) {
		route := NewRouter().Path("/").Methods(http.MethodGet).Methods(http.MethodPut)

		got, err := route.GetMethods()
		require.NoError(t, err)
		assert.Equal(t, []string{"PUT"}, got)
		assert.Equal(t, 1, route.Specificity().Matchers)
	})

	t.Run("GetMethods returns a copy", func(t *testing.T) {
		route := NewRouter().Path("/").Methods(http.MethodGet)
		got, _ := route.GetMethods()
		got[0] = "X"

		again, _ := route.GetMethods()
		assert.Equal(t, []string{"GET"}, again)
	})

	t.Run("errors when route has no methods", func(t *testing.T) {
		_, err := NewRouter().Path("/").GetMethods()
		assert.Error(t, err)
	})
}

func TestRouteDefaultsAndDataTokens(t *testing.T) {
	t.Run("merges defaults with parents", func(t *testing.T) {
		r := NewRouter()
		parent := r.PathPrefix("/blog").Defaults("section", "blog", "page", "1")
		s := parent.Subrouter()
		route := s.HandleFunc("/{page:int}", named("page")).Defaults("page", "2")

		assert.Equal(t, map[string]string{"section": "blog", "page": "2"}, route.GetDefaults())
	})

	t.Run("merges data tokens with parents", func(t *testing.T) {
		r := NewRouter()
		s := r.PathPrefix("/api").DataToken("area", "api").Subrouter()
		route := s.HandleFunc("/users", named("users")).DataToken("operationId", "listUsers")

		assert.Equal(t, map[string]any{"area": "api", "operationId": "listUsers"}, route.GetDataTokens())
	})

	t.Run("returns empty maps when unset", func(t *testing.T) {
		route := NewRouter().Path("/")
		assert.Empty(t, route.GetDefaults())
		assert.Empty(t, route.GetDataTokens())
	})

	t.Run("mutating result does not change the route", func(t *testing.T) {
		route := NewRouter().Path("/").Defaults("a", "1")
		route.GetDefaults()["a"] = "2"
		assert.Equal(t, "1", route.GetDefaults()["a"])
	})
}

func TestRouteURL(t *testing.T) {
	t.Run("builds host and path", func(t *testing.T) {
		route := NewRouter().Host("{sub}.example.com").Path("/users/{id:int}").Schemes("https")

		u, err := route.URL("sub", "api", "id", "42")
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com/users/42", u.String())
	})

	t.Run("URLPath escapes variables", func(t *testing.T) {
		route := NewRouter().Path("/files/{name}")

		u, err := route.URLPath("name", "a b")
		require.NoError(t, err)
		assert.Equal(t, "/files/a b", u.Path)
		assert.Equal(t, "/files/a%20b", u.EscapedPath())
	})

	t.Run("fills missing variables from defaults", func(t *testing.T) {
		route := NewRouter().Path("/blog/{page:int}").Defaults("page", "1")

		u, err := route.URLPath()
		require.NoError(t, err)
		assert.Equal(t, "/blog/1", u.Path)
	})

	t.Run("rejects value not matching pattern", func(t *testing.T) {
		route := NewRouter().Path("/users/{id:int}")
		_, err := route.URLPath("id", "abc")
		assert.Error(t, err)
	})

	t.Run("rejects missing variable", func(t *testing.T) {
		route := NewRouter().Path("/users/{id}")
		_, err := route.URLPath()
		assert.Error(t, err)
	})

	t.Run("URLPath requires a path", func(t *testing.T) {
		_, err := NewRouter().Host("example.com").URLPath()
		assert.Error(t, err)
	})

	t.Run("returns route error", func(t *testing.T) {
		_, err := NewRouter().Path("/{id").URL()
		assert.Error(t, err)
	})
}

func TestRouteInspection(t *testing.T) {
	r := NewRouter()
	route := r.Host("{sub}.example.com").
		Path("/users/{id:int}/{name}").
		Queries("q", "{q}").
		Headers("X-Api", "1").
		Name("user")

	t.Run("templates", func(t *testing.T) {
		path, err := route.GetPathTemplate()
		require.NoError(t, err)
		assert.Equal(t, "/users/{id:int}/{name}", path)

		host, err := route.GetHostTemplate()
		require.NoError(t, err)
		assert.Equal(t, "{sub}.example.com", host)

		queries, err := route.GetQueriesTemplates()
		require.NoError(t, err)
		assert.Equal(t, []string{"q={q}"}, queries)
	})

	t.Run("variables", func(t *testing.T) {
		names, err := route.GetVarNames()
		require.NoError(t, err)
		assert.Equal(t, []string{"sub", "id", "name", "q"}, names)
		assert.Equal(t, map[string]string{"sub": "", "id": "int", "name": "", "q": ""}, route.GetVarPatterns())
	})

	t.Run("headers and name", func(t *testing.T) {
		assert.Equal(t, map[string]string{"X-Api": "1"}, route.GetHeaders())
		assert.Equal(t, "user", route.GetName())
	})

	t.Run("missing parts return errors", func(t *testing.T) {
		bare := NewRouter().NewRoute()
		_, err := bare.GetPathTemplate()
		assert.Error(t, err)
		_, err = bare.GetHostTemplate()
		assert.Error(t, err)
		_, err = bare.GetQueriesTemplates()
		assert.Error(t, err)
	})

	t.Run("order accessors", func(t *testing.T) {
		route := NewRouter().Path("/").Order(5)
		assert.Equal(t, 5, route.GetOrder())
		assert.Equal(t, 5, route.Specificity().Order)
	})
}
