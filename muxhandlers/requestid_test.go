package muxhandlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vitalvas/routeprobe/mux"
)

var (
	uuidV4Regex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	uuidV7Regex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
)

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		config         RequestIDConfig
		incomingHeader string
		wantHeader     string
		wantGenerated  bool
	}{
		{
			name:          "generates UUID v4 by default",
			config:        RequestIDConfig{},
			wantGenerated: true,
		},
		{
			name:           "does not trust incoming by default",
			config:         RequestIDConfig{},
			incomingHeader: "existing-id",
			wantGenerated:  true,
		},
		{
			name:           "trusts incoming when configured",
			config:         RequestIDConfig{TrustIncoming: true},
			incomingHeader: "existing-id",
			wantHeader:     "existing-id",
		},
		{
			name:          "generates when trust incoming but no header",
			config:        RequestIDConfig{TrustIncoming: true},
			wantGenerated: true,
		},
		{
			name:       "custom generate func",
			config:     RequestIDConfig{GenerateFunc: func(_ *http.Request) string { return "custom-id" }},
			wantHeader: "custom-id",
		},
		{
			name:       "custom header name",
			config:     RequestIDConfig{HeaderName: "X-Trace-ID", GenerateFunc: func(_ *http.Request) string { return "trace-123" }},
			wantHeader: "trace-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedRequestHeader string

			headerName := tt.config.HeaderName
			if headerName == "" {
				headerName = "X-Request-ID"
			}

			r := mux.NewRouter()
			r.HandleFunc("/test", func(_ http.ResponseWriter, req *http.Request) {
				capturedRequestHeader = req.Header.Get(headerName)
			}).Methods(http.MethodGet)
			r.Use(RequestIDMiddleware(tt.config))

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.incomingHeader != "" {
				req.Header.Set(headerName, tt.incomingHeader)
			}
			r.ServeHTTP(w, req)

			responseHeader := w.Header().Get(headerName)

			if tt.wantGenerated {
				assert.Regexp(t, uuidV4Regex, responseHeader)
				assert.Regexp(t, uuidV4Regex, capturedRequestHeader)
			} else {
				assert.Equal(t, tt.wantHeader, responseHeader)
				assert.Equal(t, tt.wantHeader, capturedRequestHeader)
			}

			assert.Equal(t, capturedRequestHeader, responseHeader)
		})
	}

	t.Run("each request gets unique ID", func(t *testing.T) {
		r := mux.NewRouter()
		r.HandleFunc("/test", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}).Methods(http.MethodGet)
		r.Use(RequestIDMiddleware(RequestIDConfig{}))

		w1 := httptest.NewRecorder()
		r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/test", nil))

		w2 := httptest.NewRecorder()
		r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/test", nil))

		id1 := w1.Header().Get("X-Request-ID")
		id2 := w2.Header().Get("X-Request-ID")

		assert.NotEmpty(t, id1)
		assert.NotEmpty(t, id2)
		assert.NotEqual(t, id1, id2)
	})

	t.Run("generate func receives request", func(t *testing.T) {
		var capturedPath string

		r := mux.NewRouter()
		r.HandleFunc("/test", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}).Methods(http.MethodGet)
		r.Use(RequestIDMiddleware(RequestIDConfig{
			GenerateFunc: func(r *http.Request) string {
				capturedPath = r.URL.Path
				return "path-based-id"
			},
		}))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, "/test", capturedPath)
		assert.Equal(t, "path-based-id", w.Header().Get("X-Request-ID"))
	})

	t.Run("empty id does not set headers", func(t *testing.T) {
		var capturedRequestHeader string

		r := mux.NewRouter()
		r.HandleFunc("/test", func(_ http.ResponseWriter, req *http.Request) {
			capturedRequestHeader = req.Header.Get("X-Request-ID")
		}).Methods(http.MethodGet)
		r.Use(RequestIDMiddleware(RequestIDConfig{
			GenerateFunc: func(_ *http.Request) string { return "" },
		}))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Empty(t, capturedRequestHeader)
		assert.Empty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("id available via context", func(t *testing.T) {
		var capturedCtxID string

		r := mux.NewRouter()
		r.HandleFunc("/test", func(_ http.ResponseWriter, req *http.Request) {
			capturedCtxID = RequestIDFromContext(req.Context())
		}).Methods(http.MethodGet)
		r.Use(RequestIDMiddleware(RequestIDConfig{}))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.NotEmpty(t, capturedCtxID)
		assert.Equal(t, w.Header().Get("X-Request-ID"), capturedCtxID)
	})

	t.Run("empty id not in context", func(t *testing.T) {
		var capturedCtxID string

		r := mux.NewRouter()
		r.HandleFunc("/test", func(_ http.ResponseWriter, req *http.Request) {
			capturedCtxID = RequestIDFromContext(req.Context())
		}).Methods(http.MethodGet)
		r.Use(RequestIDMiddleware(RequestIDConfig{
			GenerateFunc: func(_ *http.Request) string { return "" },
		}))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Empty(t, capturedCtxID)
	})
}

func TestRequestIDMiddlewareRequire(t *testing.T) {
	tests := []struct {
		name       string
		config     RequestIDConfig
		incoming   string
		wantCode   int
		wantReason string
	}{
		{
			name:       "missing required id",
			config:     RequestIDConfig{Require: true},
			wantCode:   http.StatusBadRequest,
			wantReason: "missing X-Request-ID header",
		},
		{
			name:     "required id present",
			config:   RequestIDConfig{Require: true},
			incoming: "abc",
			wantCode: http.StatusOK,
		},
		{
			name:     "valid uuid",
			config:   RequestIDConfig{TrustIncoming: true, RequireUUID: true},
			incoming: "550e8400-e29b-41d4-a716-446655440000",
			wantCode: http.StatusOK,
		},
		{
			name:     "invalid uuid",
			config:   RequestIDConfig{TrustIncoming: true, RequireUUID: true},
			incoming: "not-a-uuid",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "generated id skips uuid check",
			config:   RequestIDConfig{RequireUUID: true, GenerateFunc: func(*http.Request) string { return "gen" }},
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			req, rec := mux.WithRejectionRecorder(req)

			next := &okHandler{}
			w := httptest.NewRecorder()
			RequestIDMiddleware(tt.config)(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantCode == http.StatusOK, next.called)
			if tt.wantCode == http.StatusOK {
				assert.Empty(t, rec.Rejections())
				return
			}
			if assert.Len(t, rec.Rejections(), 1) {
				assert.Equal(t, FilterRequestID, rec.Rejections()[0].Filter)
				if tt.wantReason != "" {
					assert.Equal(t, tt.wantReason, rec.Rejections()[0].Reason)
				}
			}
		})
	}
}

func TestRequestIDFromContext(t *testing.T) {
	t.Run("returns empty for bare context", func(t *testing.T) {
		assert.Empty(t, RequestIDFromContext(context.Background()))
	})
}

func TestGenerateUUIDv4(t *testing.T) {
	t.Run("format", func(t *testing.T) {
		id := GenerateUUIDv4(nil)
		assert.Regexp(t, uuidV4Regex, id)
		assert.Len(t, id, 36)
	})

	t.Run("uniqueness", func(t *testing.T) {
		seen := make(map[string]struct{}, 100)
		for range 100 {
			id := GenerateUUIDv4(nil)
			_, exists := seen[id]
			assert.False(t, exists, "duplicate UUID generated: %s", id)
			seen[id] = struct{}{}
		}
	})
}
