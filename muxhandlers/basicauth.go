package muxhandlers

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/vitalvas/routeprobe/mux"
)

// ErrNoAuthSource is returned when BasicAuthConfig has neither ValidateFunc
// nor Credentials configured.
var ErrNoAuthSource = errors.New("basic auth: at least one of ValidateFunc or Credentials must be set")

type basicAuthUserKey struct{}

// BasicAuthUser returns the user name authenticated by BasicAuthMiddleware.
func BasicAuthUser(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(basicAuthUserKey{}).(string)
	return user, ok
}

// BasicAuthConfig configures the Basic Auth middleware behaviour.
//
// See https://www.rfc-editor.org/rfc/rfc7617
type BasicAuthConfig struct {
	// Realm is the authentication realm sent in the WWW-Authenticate header.
	// Defaults to "Restricted" when empty.
	Realm string

	// ValidateFunc is called to validate credentials dynamically.
	// Takes priority over Credentials when both are set.
	ValidateFunc func(username, password string) bool

	// Credentials is a static map of username -> password pairs, compared
	// in constant time over SHA-256 digests.
	Credentials map[string]string
}

// BasicAuthMiddleware returns a middleware that implements HTTP Basic
// Authentication per RFC 7617. Missing or invalid credentials are answered
// with 401 and reported as a FilterBasicAuth rejection. The authenticated
// user name is available downstream through BasicAuthUser.
//
// It returns ErrNoAuthSource if both ValidateFunc and Credentials are empty.
func BasicAuthMiddleware(cfg BasicAuthConfig) (mux.MiddlewareFunc, error) {
	if cfg.ValidateFunc == nil && len(cfg.Credentials) == 0 {
		return nil, ErrNoAuthSource
	}

	realm := cfg.Realm
	if realm == "" {
		realm = "Restricted"
	}

	wwwAuthenticate := fmt.Sprintf("Basic realm=%q", realm)

	validate := cfg.ValidateFunc
	if validate == nil {
		credentials := cfg.Credentials
		validate = func(username, password string) bool {
			expected, exists := credentials[username]
			// Compare even for unknown users so timing does not reveal them.
			match := constantTimeEqual(password, expected)
			return exists && match
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", wwwAuthenticate)
				reject(w, r, FilterBasicAuth, http.StatusUnauthorized, "missing basic credentials")
				return
			}

			if !validate(username, password) {
				w.Header().Set("WWW-Authenticate", wwwAuthenticate)
				reject(w, r, FilterBasicAuth, http.StatusUnauthorized, "invalid credentials")
				return
			}

			ctx := context.WithValue(r.Context(), basicAuthUserKey{}, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

func constantTimeEqual(a, b string) bool {
	aHash := sha256.Sum256([]byte(a))
	bHash := sha256.Sum256([]byte(b))

	return subtle.ConstantTimeCompare(aHash[:], bHash[:]) == 1
}
