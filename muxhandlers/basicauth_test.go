package muxhandlers

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/routeprobe/mux"
)

func basicAuthHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// okHandler records whether it ran and the request it saw.
type okHandler struct {
	called bool
	req    *http.Request
}

func (h *okHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.req = r
	w.WriteHeader(http.StatusOK)
}

func TestBasicAuth(t *testing.T) {
	t.Run("config error no auth source", func(t *testing.T) {
		_, err := BasicAuthMiddleware(BasicAuthConfig{})
		assert.ErrorIs(t, err, ErrNoAuthSource)
	})

	tests := []struct {
		name       string
		config     BasicAuthConfig
		authHeader string
		wantCode   int
		wantReason string
	}{
		{
			name:       "valid credentials via ValidateFunc",
			config:     BasicAuthConfig{ValidateFunc: func(u, p string) bool { return u == "admin" && p == "secret" }},
			authHeader: basicAuthHeader("admin", "secret"),
			wantCode:   http.StatusOK,
		},
		{
			name:       "valid credentials via Credentials map",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			authHeader: basicAuthHeader("admin", "secret"),
			wantCode:   http.StatusOK,
		},
		{
			name:       "invalid password",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			authHeader: basicAuthHeader("admin", "wrong"),
			wantCode:   http.StatusUnauthorized,
			wantReason: "invalid credentials",
		},
		{
			name:       "unknown username",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			authHeader: basicAuthHeader("unknown", "secret"),
			wantCode:   http.StatusUnauthorized,
			wantReason: "invalid credentials",
		},
		{
			name:       "missing Authorization header",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			wantCode:   http.StatusUnauthorized,
			wantReason: "missing basic credentials",
		},
		{
			name:       "bearer scheme is not basic",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			authHeader: "Bearer some-token",
			wantCode:   http.StatusUnauthorized,
			wantReason: "missing basic credentials",
		},
		{
			name:       "password with colons",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "a:b:c"}},
			authHeader: basicAuthHeader("admin", "a:b:c"),
			wantCode:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw, err := BasicAuthMiddleware(tt.config)
			require.NoError(t, err)

			next := &okHandler{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			req, rec := mux.WithRejectionRecorder(req)

			w := httptest.NewRecorder()
			mw(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantCode == http.StatusOK, next.called)

			if tt.wantReason == "" {
				assert.Empty(t, rec.Rejections())
				return
			}

			assert.Equal(t, `Basic realm="Restricted"`, w.Header().Get("WWW-Authenticate"))
			require.Len(t, rec.Rejections(), 1)
			rej := rec.Rejections()[0]
			assert.Equal(t, FilterBasicAuth, rej.Filter)
			assert.Equal(t, http.StatusUnauthorized, rej.Status)
			assert.Equal(t, tt.wantReason, rej.Reason)
		})
	}

	t.Run("custom realm", func(t *testing.T) {
		mw, err := BasicAuthMiddleware(BasicAuthConfig{Realm: "Admin", Credentials: map[string]string{"a": "b"}})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		mw(&okHandler{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, `Basic realm="Admin"`, w.Header().Get("WWW-Authenticate"))
	})

	t.Run("stores authenticated user", func(t *testing.T) {
		mw, err := BasicAuthMiddleware(BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}})
		require.NoError(t, err)

		next := &okHandler{}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", basicAuthHeader("admin", "secret"))
		mw(next).ServeHTTP(httptest.NewRecorder(), req)

		user, ok := BasicAuthUser(next.req.Context())
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
	})
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, constantTimeEqual("secret", "secret"))
	assert.False(t, constantTimeEqual("secret", "secreT"))
	assert.False(t, constantTimeEqual("short", "much-longer-value"))
}
