package mux

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, name)
	}
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	t.Run("creates router with initialized namedRoutes", func(t *testing.T) {
		r := NewRouter()
		require.NotNil(t, r)
		assert.NotNil(t, r.namedRoutes)
	})
}

func TestRouterServeHTTP(t *testing.T) {
	t.Run("dispatches to matched handler", func(t *testing.T) {
		r := NewRouter()
		r.HandleFunc("/hello", named("world"))

		w := serve(r, http.MethodGet, "/hello")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "world", w.Body.String())
	})

	t.Run("returns 404 for unmatched path", func(t *testing.T) {
		r := NewRouter()
		r.HandleFunc("/hello", named("world"))

		w := serve(r, http.MethodGet, "/notfound")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("uses custom NotFoundHandler", func(t *testing.T) {
		r := NewRouter()
		r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, "custom 404")
		})

		w := serve(r, http.MethodGet, "/notfound")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "custom 404", w.Body.String())
	})

	t.Run("sets Vars and CurrentRoute in request context", func(t *testing.T) {
		r := NewRouter()
		var (
			vars  map[string]string
			route *Route
		)
		expected := r.HandleFunc("/users/{id}", func(_ http.ResponseWriter, req *http.Request) {
			vars = Vars(req)
			route = CurrentRoute(req)
		})

		serve(r, http.MethodGet, "/users/42")
		assert.Equal(t, map[string]string{"id": "42"}, vars)
		assert.Same(t, expected, route)
	})

	t.Run("returns 405 with Allow header on method mismatch", func(t *testing.T) {
		r := NewRouter()
		r.HandleFunc("/users", named("list")).Methods(http.MethodGet)
		r.HandleFunc("/users", named("create")).Methods(http.MethodPost)

		w := serve(r, http.MethodDelete, "/users")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Equal(t, "GET, POST", w.Header().Get("Allow"))
	})

	t.Run("uses custom MethodNotAllowedHandler", func(t *testing.T) {
		r := NewRouter()
		r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
		r.HandleFunc("/users", named("list")).Methods(http.MethodGet)

		w := serve(r, http.MethodPut, "/users")
		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Equal(t, "GET", w.Header().Get("Allow"))
	})

	t.Run("returns 500 for ambiguous routes", func(t *testing.T) {
		r := NewRouter()
		r.HandleFunc("/a/{x}", named("x"))
		r.HandleFunc("/a/{y}", named("y"))

		w := serve(r, http.MethodGet, "/a/1")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), ErrAmbiguousRoute.Error())
	})

	t.Run("uses custom AmbiguousHandler", func(t *testing.T) {
		r := NewRouter()
		r.AmbiguousHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
		})
		r.HandleFunc("/a/{x}", named("x"))
		r.HandleFunc("/a/{y}", named("y"))

		w := serve(r, http.MethodGet, "/a/1")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("route without handler answers 404", func(t *testing.T) {
		r := NewRouter()
		r.Path("/empty")

		w := serve(r, http.MethodGet, "/empty")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRouterRanking(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *Router)
		target   string
		expected string
	}{
		{
			name: "literal segment beats variable",
			setup: func(r *Router) {
				r.HandleFunc("/users/{id}", named("by-id"))
				r.HandleFunc("/users/new", named("new"))
			},
			target:   "/users/new",
			expected: "new",
		},
		{
			name: "constrained variable beats unconstrained",
			setup: func(r *Router) {
				r.HandleFunc("/items/{name}", named("by-name"))
				r.HandleFunc("/items/{id:int}", named("by-id"))
			},
			target:   "/items/42",
			expected: "by-id",
		},
		{
			name: "unconstrained variable still matches when constraint fails",
			setup: func(r *Router) {
				r.HandleFunc("/items/{name}", named("by-name"))
				r.HandleFunc("/items/{id:int}", named("by-id"))
			},
			target:   "/items/abc",
			expected: "by-name",
		},
		{
			name: "exact path beats prefix",
			setup: func(r *Router) {
				r.PathPrefix("/static/").HandlerFunc(named("prefix"))
				r.HandleFunc("/static/app.js", named("exact"))
			},
			target:   "/static/app.js",
			expected: "exact",
		},
		{
			name: "more matchers win",
			setup: func(r *Router) {
				r.HandleFunc("/x", named("any"))
				r.HandleFunc("/x", named("get")).Methods(http.MethodGet)
			},
			target:   "/x",
			expected: "get",
		},
		{
			name: "lower order wins over specificity",
			setup: func(r *Router) {
				r.HandleFunc("/users/new", named("new"))
				r.HandleFunc("/users/{id}", named("by-id")).Order(-1)
			},
			target:   "/users/new",
			expected: "by-id",
		},
		{
			name: "subrouter routes take part in ranking",
			setup: func(r *Router) {
				r.HandleFunc("/api/{rest}", named("root"))
				s := r.PathPrefix("/api").Subrouter()
				s.HandleFunc("/status", named("sub"))
			},
			target:   "/api/status",
			expected: "sub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter()
			tt.setup(r)

			w := serve(r, http.MethodGet, tt.target)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.expected, w.Body.String())
		})
	}
}

func TestRouterMatch(t *testing.T) {
	t.Run("populates route vars and candidates", func(t *testing.T) {
		r := NewRouter()
		route := r.HandleFunc("/users/{id}", named("user"))

		var match RouteMatch
		req := httptest.NewRequest(http.MethodGet, "/users/7", nil)
		require.True(t, r.Match(req, &match))
		assert.Same(t, route, match.Route)
		assert.Equal(t, map[string]string{"id": "7"}, match.Vars)
		assert.Equal(t, []*Route{route}, match.Candidates)
		assert.NoError(t, match.MatchErr)
		assert.NotNil(t, match.Handler)
	})

	t.Run("reports not found", func(t *testing.T) {
		r := NewRouter()
		r.HandleFunc("/users", named("users"))

		var match RouteMatch
		req := httptest.NewRequest(http.MethodGet, "/other", nil)
		assert.False(t, r.Match(req, &match))
		assert.ErrorIs(t, match.MatchErr, ErrNotFound)
		assert.Empty(t, match.Candidates)
	})

	t.Run("reports method mismatch", func(t *testing.T) {
		r := NewRouter()
		r.HandleFunc("/users", named("users")).Methods(http.MethodPost)

		var match RouteMatch
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		assert.False(t, r.Match(req, &match))
		assert.ErrorIs(t, match.MatchErr, ErrMethodMismatch)
	})

	t.Run("method mismatch does not hide a matching route", func(t *testing.T) {
		r := NewRouter()
		r.HandleFunc("/users", named("create")).Methods(http.MethodPost)
		list := r.HandleFunc("/users", named("list")).Methods(http.MethodGet)

		var match RouteMatch
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		require.True(t, r.Match(req, &match))
		assert.Same(t, list, match.Route)
	})

	t.Run("reports ambiguous candidates in registration order", func(t *testing.T) {
		r := NewRouter()
		first := r.HandleFunc("/a/{x}", named("x"))
		second := r.HandleFunc("/a/{y}", named("y"))

		var match RouteMatch
		req := httptest.NewRequest(http.MethodGet, "/a/1", nil)
		assert.False(t, r.Match(req, &match))
		assert.ErrorIs(t, match.MatchErr, ErrAmbiguousRoute)
		assert.Equal(t, []*Route{first, second}, match.Candidates)
		assert.Nil(t, match.Route)
	})

	t.Run("less specific candidates are not ambiguous", func(t *testing.T) {
		r := NewRouter()
		r.HandleFunc("/a/{x}", named("x"))
		r.HandleFunc("/a/{y}", named("y"))
		exact := r.HandleFunc("/a/1", named("one"))

		var match RouteMatch
		req := httptest.NewRequest(http.MethodGet, "/a/1", nil)
		require.True(t, r.Match(req, &match))
		assert.Same(t, exact, match.Route)
	})

	t.Run("skips routes with build errors", func(t *testing.T) {
		r := NewRouter()
		broken := r.HandleFunc("/a/{x", named("broken"))
		require.Error(t, broken.GetError())

		var match RouteMatch
		req := httptest.NewRequest(http.MethodGet, "/a/1", nil)
		assert.False(t, r.Match(req, &match))
	})
}

func TestRouterCandidates(t *testing.T) {
	t.Run("lists every matching route regardless of rank", func(t *testing.T) {
		r := NewRouter()
		byID := r.HandleFunc("/users/{id}", named("by-id"))
		r.HandleFunc("/orders/{id}", named("orders"))
		literal := r.HandleFunc("/users/new", named("new"))

		cands := r.Candidates(httptest.NewRequest(http.MethodGet, "/users/new", nil))
		assert.Equal(t, []*Route{byID, literal}, cands)
	})
}

func TestRouterMiddleware(t *testing.T) {
	record := func(trace *[]string, name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				*trace = append(*trace, name)
				next.ServeHTTP(w, req)
			})
		}
	}

	t.Run("applies parent middleware before subrouter middleware", func(t *testing.T) {
		var trace []string
		r := NewRouter()
		r.Use(record(&trace, "root"))
		s := r.PathPrefix("/api").Subrouter()
		s.Use(record(&trace, "api"))
		s.HandleFunc("/ping", func(_ http.ResponseWriter, _ *http.Request) {
			trace = append(trace, "handler")
		})

		serve(r, http.MethodGet, "/api/ping")
		assert.Equal(t, []string{"root", "api", "handler"}, trace)
	})

	t.Run("does not run middleware for unmatched requests", func(t *testing.T) {
		var trace []string
		r := NewRouter()
		r.Use(record(&trace, "root"))
		r.HandleFunc("/ping", named("pong"))

		serve(r, http.MethodGet, "/missing")
		assert.Empty(t, trace)
	})

	t.Run("match exposes the chain outermost first", func(t *testing.T) {
		var trace []string
		r := NewRouter()
		r.Use(record(&trace, "one"), record(&trace, "two"))
		r.HandleFunc("/ping", named("pong"))

		var match RouteMatch
		require.True(t, r.Match(httptest.NewRequest(http.MethodGet, "/ping", nil), &match))
		require.Len(t, match.Middleware, 2)

		terminal := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			trace = append(trace, "terminal")
		})
		match.Wrap(terminal).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, []string{"one", "two", "terminal"}, trace)
	})

	t.Run("Middlewares returns a copy", func(t *testing.T) {
		var trace []string
		r := NewRouter()
		r.Use(record(&trace, "one"))

		mws := r.Middlewares()
		mws[0] = nil
		assert.NotNil(t, r.Middlewares()[0])
	})
}

func TestRouterMount(t *testing.T) {
	t.Run("matches routes of a mounted router", func(t *testing.T) {
		other := NewRouter()
		other.HandleFunc("/health", named("ok"))

		r := NewRouter()
		r.Mount(other)

		w := serve(r, http.MethodGet, "/health")
		assert.Equal(t, "ok", w.Body.String())
	})

	t.Run("mounted routes compete with local ones", func(t *testing.T) {
		other := NewRouter()
		other.HandleFunc("/users/{id}", named("mounted"))

		r := NewRouter()
		r.Mount(other)
		r.HandleFunc("/users/me", named("local"))

		assert.Equal(t, "local", serve(r, http.MethodGet, "/users/me").Body.String())
		assert.Equal(t, "mounted", serve(r, http.MethodGet, "/users/9").Body.String())
	})
}

func TestRouterPrepare(t *testing.T) {
	t.Run("cleans dot segments", func(t *testing.T) {
		r := NewRouter()
		req := httptest.NewRequest(http.MethodGet, "/a/../b/./c", nil)
		assert.Equal(t, "/b/c", r.Prepare(req).URL.Path)
		assert.Equal(t, "/a/../b/./c", req.URL.Path)
	})

	t.Run("keeps trailing slash", func(t *testing.T) {
		r := NewRouter()
		req := httptest.NewRequest(http.MethodGet, "/a//b/", nil)
		assert.Equal(t, "/a/b/", r.Prepare(req).URL.Path)
	})

	t.Run("returns request unchanged with SkipClean", func(t *testing.T) {
		r := NewRouter().SkipClean(true)
		req := httptest.NewRequest(http.MethodGet, "/a/../b", nil)
		assert.Same(t, req, r.Prepare(req))
	})

	t.Run("ServeHTTP matches cleaned path", func(t *testing.T) {
		r := NewRouter()
		r.HandleFunc("/b", named("b"))

		assert.Equal(t, "b", serve(r, http.MethodGet, "/a/../b").Body.String())
	})
}

func TestRouterUseEncodedPath(t *testing.T) {
	t.Run("matches encoded slash inside a variable", func(t *testing.T) {
		r := NewRouter().UseEncodedPath()
		var got string
		r.HandleFunc("/files/{name}", func(_ http.ResponseWriter, req *http.Request) {
			got = Vars(req)["name"]
		})

		w := serve(r, http.MethodGet, "/files/a%2Fb")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "a/b", got)
	})
}

func TestRouterAllowedMethods(t *testing.T) {
	t.Run("lists methods with a matching route", func(t *testing.T) {
		r := NewRouter()
		r.HandleFunc("/users", named("list")).Methods(http.MethodGet, http.MethodHead)
		r.HandleFunc("/users", named("create")).Methods(http.MethodPost)
		r.HandleFunc("/orders", named("orders")).Methods(http.MethodPut)

		req := httptest.NewRequest(http.MethodDelete, "/users", nil)
		assert.Equal(t, []string{"GET", "HEAD", "POST"}, r.AllowedMethods(req))
	})

	t.Run("counts ambiguous matches as allowed", func(t *testing.T) {
		r := NewRouter()
		r.HandleFunc("/a/{x}", named("x")).Methods(http.MethodGet)
		r.HandleFunc("/a/{y}", named("y")).Methods(http.MethodGet)

		req := httptest.NewRequest(http.MethodPost, "/a/1", nil)
		assert.Equal(t, []string{"GET"}, r.AllowedMethods(req))
	})

	t.Run("returns nothing for unknown path", func(t *testing.T) {
		r := NewRouter()
		r.HandleFunc("/users", named("list")).Methods(http.MethodGet)

		assert.Empty(t, r.AllowedMethods(httptest.NewRequest(http.MethodGet, "/nope", nil)))
	})
}

func TestRouterGet(t *testing.T) {
	t.Run("returns named route", func(t *testing.T) {
		r := NewRouter()
		route := r.HandleFunc("/users", named("users")).Name("users")
		assert.Same(t, route, r.Get("users"))
	})

	t.Run("finds routes named in subrouters", func(t *testing.T) {
		r := NewRouter()
		s := r.PathPrefix("/api").Subrouter()
		route := s.HandleFunc("/users", named("users")).Name("api-users")
		assert.Same(t, route, r.Get("api-users"))
	})

	t.Run("returns nil for unknown name", func(t *testing.T) {
		assert.Nil(t, NewRouter().Get("missing"))
	})
}

func TestRouterWalk(t *testing.T) {
	build := func() *Router {
		r := NewRouter()
		r.HandleFunc("/", named("home"))
		s := r.PathPrefix("/api").Subrouter()
		s.HandleFunc("/users", named("users"))
		s.HandleFunc("/orders", named("orders"))
		return r
	}

	t.Run("visits every route with ancestors", func(t *testing.T) {
		var visited []string
		err := build().Walk(func(route *Route, _ *Router, ancestors []*Route) error {
			tpl, err := route.GetPathTemplate()
			require.NoError(t, err)
			visited = append(visited, fmt.Sprintf("%s:%d", tpl, len(ancestors)))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"/:0", "/api:0", "/api/users:1", "/api/orders:1"}, visited)
	})

	t.Run("SkipRouter skips a subrouter", func(t *testing.T) {
		var visited []string
		err := build().Walk(func(route *Route, _ *Router, _ []*Route) error {
			tpl, _ := route.GetPathTemplate()
			visited = append(visited, tpl)
			if strings.HasPrefix(tpl, "/api") {
				return SkipRouter
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"/", "/api"}, visited)
	})

	t.Run("stops on error", func(t *testing.T) {
		stop := errors.New("stop")
		count := 0
		err := build().Walk(func(_ *Route, _ *Router, _ []*Route) error {
			count++
			if count == 3 {
				return stop
			}
			return nil
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 3, count)
	})
}

func TestRouterRouteFactoryMethods(t *testing.T) {
	tests := []struct {
		name  string
		build func(r *Router) *Route
		req   func() *http.Request
	}{
		{
			name:  "Path",
			build: func(r *Router) *Route { return r.Path("/p") },
			req:   func() *http.Request { return httptest.NewRequest(http.MethodGet, "/p", nil) },
		},
		{
			name:  "PathPrefix",
			build: func(r *Router) *Route { return r.PathPrefix("/p") },
			req:   func() *http.Request { return httptest.NewRequest(http.MethodGet, "/p/deep", nil) },
		},
		{
			name:  "Host",
			build: func(r *Router) *Route { return r.Host("{sub}.example.com") },
			req:   func() *http.Request { return httptest.NewRequest(http.MethodGet, "http://api.example.com/", nil) },
		},
		{
			name:  "Methods",
			build: func(r *Router) *Route { return r.Methods(http.MethodPatch) },
			req:   func() *http.Request { return httptest.NewRequest(http.MethodPatch, "/", nil) },
		},
		{
			name:  "Schemes",
			build: func(r *Router) *Route { return r.Schemes("https") },
			req:   func() *http.Request { return httptest.NewRequest(http.MethodGet, "https://example.com/", nil) },
		},
		{
			name:  "Headers",
			build: func(r *Router) *Route { return r.Headers("X-Api", "1") },
			req: func() *http.Request {
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				req.Header.Set("X-Api", "1")
				return req
			},
		},
		{
			name:  "Queries",
			build: func(r *Router) *Route { return r.Queries("page", "{page:int}") },
			req:   func() *http.Request { return httptest.NewRequest(http.MethodGet, "/?page=2", nil) },
		},
		{
			name: "MatcherFunc",
			build: func(r *Router) *Route {
				return r.MatcherFunc(func(req *http.Request, _ *RouteMatch) bool {
					return req.Header.Get("X-Custom") != ""
				})
			},
			req: func() *http.Request {
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				req.Header.Set("X-Custom", "yes")
				return req
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter()
			route := tt.build(r).HandlerFunc(named(tt.name))

			var match RouteMatch
			require.True(t, r.Match(tt.req(), &match))
			assert.Same(t, route, match.Route)
		})
	}
}
