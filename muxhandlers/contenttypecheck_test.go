package muxhandlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/routeprobe/mux"
)

func TestContentTypeCheckMiddleware(t *testing.T) {
	t.Run("config error no allowed types", func(t *testing.T) {
		_, err := ContentTypeCheckMiddleware(ContentTypeCheckConfig{})
		assert.ErrorIs(t, err, ErrNoAllowedTypes)
	})

	tests := []struct {
		name        string
		config      ContentTypeCheckConfig
		method      string
		contentType string
		wantCode    int
		wantReason  string
	}{
		{
			name:        "allowed type passes",
			config:      ContentTypeCheckConfig{AllowedTypes: []string{"application/json"}},
			method:      http.MethodPost,
			contentType: "application/json",
			wantCode:    http.StatusOK,
		},
		{
			name:        "parameters and case are ignored",
			config:      ContentTypeCheckConfig{AllowedTypes: []string{" Application/JSON "}},
			method:      http.MethodPut,
			contentType: "application/json; charset=utf-8",
			wantCode:    http.StatusOK,
		},
		{
			name:        "unchecked method passes without header",
			config:      ContentTypeCheckConfig{AllowedTypes: []string{"application/json"}},
			method:      http.MethodGet,
			wantCode:    http.StatusOK,
		},
		{
			name:       "missing content type",
			config:     ContentTypeCheckConfig{AllowedTypes: []string{"application/json"}},
			method:     http.MethodPost,
			wantCode:   http.StatusUnsupportedMediaType,
			wantReason: "missing content type",
		},
		{
			name:        "malformed content type",
			config:      ContentTypeCheckConfig{AllowedTypes: []string{"application/json"}},
			method:      http.MethodPatch,
			contentType: "application/",
			wantCode:    http.StatusUnsupportedMediaType,
			wantReason:  "malformed content type",
		},
		{
			name:        "unlisted content type",
			config:      ContentTypeCheckConfig{AllowedTypes: []string{"application/json"}},
			method:      http.MethodPost,
			contentType: "text/plain",
			wantCode:    http.StatusUnsupportedMediaType,
			wantReason:  "content type text/plain is not allowed",
		},
		{
			name:        "custom methods",
			config:      ContentTypeCheckConfig{AllowedTypes: []string{"application/json"}, Methods: []string{"delete"}},
			method:      http.MethodDelete,
			contentType: "text/plain",
			wantCode:    http.StatusUnsupportedMediaType,
			wantReason:  "content type text/plain is not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw, err := ContentTypeCheckMiddleware(tt.config)
			require.NoError(t, err)

			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			req, rec := mux.WithRejectionRecorder(req)

			next := &okHandler{}
			w := httptest.NewRecorder()
			mw(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantCode == http.StatusOK, next.called)
			if tt.wantReason == "" {
				assert.Empty(t, rec.Rejections())
				return
			}
			require.Len(t, rec.Rejections(), 1)
			assert.Equal(t, mux.Rejection{
				Filter: FilterContentTypeCheck,
				Status: http.StatusUnsupportedMediaType,
				Reason: tt.wantReason,
			}, rec.Rejections()[0])
		})
	}
}
