package muxhandlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/vitalvas/routeprobe/mux"
)

type requestIDKey struct{}

// RequestIDFromContext returns the request ID stored in the context by
// RequestIDMiddleware. Returns an empty string if no ID is present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}

	return ""
}

// RequestIDConfig configures the Request ID middleware behaviour.
type RequestIDConfig struct {
	// HeaderName overrides the header used to propagate the request ID.
	// Defaults to "X-Request-ID" when empty.
	HeaderName string

	// GenerateFunc returns a new unique ID. Defaults to GenerateUUIDv4.
	GenerateFunc func(r *http.Request) string

	// TrustIncoming reuses an existing request ID from the incoming
	// request header instead of generating a new one.
	TrustIncoming bool

	// Require rejects requests that carry no ID with 400. It implies
	// TrustIncoming.
	Require bool

	// RequireUUID rejects incoming IDs that are not valid UUIDs with 400.
	RequireUUID bool
}

// RequestIDMiddleware returns a middleware that generates or propagates a
// request ID header. The ID is set on both the request and the response.
// When Require or RequireUUID are set, requests with a missing or invalid ID
// are reported as a FilterRequestID rejection.
func RequestIDMiddleware(cfg RequestIDConfig) mux.MiddlewareFunc {
	headerName := cfg.HeaderName
	if headerName == "" {
		headerName = "X-Request-ID"
	}

	generate := cfg.GenerateFunc
	if generate == nil {
		generate = GenerateUUIDv4
	}

	trustIncoming := cfg.TrustIncoming || cfg.Require

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if trustIncoming {
				id = r.Header.Get(headerName)
			}

			if id == "" && cfg.Require {
				reject(w, r, FilterRequestID, http.StatusBadRequest, "missing "+headerName+" header")
				return
			}

			if id != "" && cfg.RequireUUID {
				if _, err := uuid.Parse(id); err != nil {
					reject(w, r, FilterRequestID, http.StatusBadRequest, "invalid "+headerName+" header: "+err.Error())
					return
				}
			}

			if id == "" {
				id = generate(r)
			}

			if id != "" {
				r.Header.Set(headerName, id)
				w.Header().Set(headerName, id)
				r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GenerateUUIDv4 returns a new UUID v4 string.
func GenerateUUIDv4(_ *http.Request) string {
	return uuid.New().String()
}
